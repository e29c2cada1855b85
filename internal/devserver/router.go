package devserver

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/cheongchun/chatcore/internal/api"
	"github.com/cheongchun/chatcore/internal/middleware"
	"github.com/cheongchun/chatcore/internal/store"
	"github.com/cheongchun/chatcore/internal/summary"
)

// Deps are the collaborators of the development backend.
type Deps struct {
	Repo           store.Repository
	Summarizer     summary.Summarizer
	Chat           *ChatHandler
	AllowedOrigins []string
}

// NewRouter wires every development backend route.
func NewRouter(d Deps) chi.Router {
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	if d.Summarizer == nil {
		d.Summarizer = Analyzer{}
	}

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(origins))

	base := api.NewHandler(d.Repo, d.Summarizer)
	api.NewHealthHandler(base).RegisterHealth(r)
	api.NewConversationHandler(base).RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat/{userId}", d.Chat.ServeHTTP)

	return r
}

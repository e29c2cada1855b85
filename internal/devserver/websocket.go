package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/cheongchun/chatcore/internal/auth"
	"github.com/cheongchun/chatcore/internal/protocol"
)

const (
	malformedReply   = "메시지를 이해하지 못했습니다. 다시 보내주세요."
	rateLimitedReply = "요청이 너무 많습니다. 잠시 후 다시 시도해주세요."
)

// ChatHandler serves the streaming chat WebSocket.
type ChatHandler struct {
	sm            *SessionManager
	responder     Responder
	chunkRunes    int
	chunkDelay    time.Duration
	allowedOrigin string
	isDev         bool
	now           func() time.Time
}

// ChatOption configures a ChatHandler.
type ChatOption func(*ChatHandler)

// WithChunkDelay pauses between streamed chunks.
func WithChunkDelay(d time.Duration) ChatOption {
	return func(h *ChatHandler) { h.chunkDelay = d }
}

// WithChunkRunes sets the chunk size.
func WithChunkRunes(n int) ChatOption {
	return func(h *ChatHandler) { h.chunkRunes = n }
}

// WithAllowedOrigin restricts browser origins outside development.
func WithAllowedOrigin(origin string, isDev bool) ChatOption {
	return func(h *ChatHandler) {
		h.allowedOrigin = origin
		h.isDev = isDev
	}
}

// NewChatHandler creates a new WebSocket chat handler.
func NewChatHandler(sm *SessionManager, responder Responder, opts ...ChatOption) *ChatHandler {
	h := &ChatHandler{
		sm:         sm,
		responder:  responder,
		chunkRunes: DefaultChunkRunes,
		isDev:      true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	slog.Info("WebSocket connection request", "user_id", userID, "ip", r.RemoteAddr)

	if !auth.ValidUserID(userID) {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, ws)
	defer h.sm.Unregister(userID, ws)

	h.serve(r.Context(), ws, userID)
	slog.Info("Chat session ended", "user_id", userID)
}

func (h *ChatHandler) serve(ctx context.Context, ws *websocket.Conn, userID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID, "code", websocket.CloseStatus(err))
			} else if !errors.Is(err, context.Canceled) {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var frame protocol.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil || strings.TrimSpace(frame.Message) == "" {
			slog.Warn("Malformed chat frame", "user_id", userID, "error", err)
			if err := h.writeFrame(ctx, ws, protocol.FrameError, malformedReply); err != nil {
				return
			}
			continue
		}

		if !h.sm.Allow(userID) {
			slog.Warn("Chat rate limit exceeded", "user_id", userID)
			if err := h.writeFrame(ctx, ws, protocol.FrameError, rateLimitedReply); err != nil {
				return
			}
			continue
		}

		if err := h.stream(ctx, ws, h.responder.Reply(frame.Message, frame.History)); err != nil {
			slog.Debug("Failed to stream reply", "error", err, "user_id", userID)
			return
		}
	}
}

// stream sends reply as chunk frames followed by one complete frame.
func (h *ChatHandler) stream(ctx context.Context, ws *websocket.Conn, reply string) error {
	for _, chunk := range Chunks(reply, h.chunkRunes) {
		if err := h.writeFrame(ctx, ws, protocol.FrameChunk, chunk); err != nil {
			return err
		}
		if h.chunkDelay > 0 {
			select {
			case <-time.After(h.chunkDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return h.writeFrame(ctx, ws, protocol.FrameComplete, reply)
}

func (h *ChatHandler) writeFrame(ctx context.Context, ws *websocket.Conn, typ protocol.FrameType, content string) error {
	data, err := json.Marshal(protocol.ServerFrame{
		Type:      typ,
		Content:   content,
		Timestamp: protocol.FormatTimestamp(h.now()),
	})
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func (h *ChatHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

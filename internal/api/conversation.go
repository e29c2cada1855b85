package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cheongchun/chatcore/internal/auth"
	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/persistence"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ConversationHandler serves summarization and conversation history.
type ConversationHandler struct {
	*Handler
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(base *Handler) *ConversationHandler {
	return &ConversationHandler{Handler: base}
}

// RegisterRoutes registers conversation routes. History routes require a
// bearer token.
func (h *ConversationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/conversation/summary", h.Summarize)

	r.Route("/ai", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Post("/conversation", h.SaveConversation)
		r.Get("/conversations", h.ListConversations)
	})
}

// Summarize returns structured insights for a transcript.
func (h *ConversationHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req domain.SummaryRequest
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationText) == "" {
		Error(w, http.StatusBadRequest, "conversation_text is required")
		return
	}

	result, err := h.summarizer.Summarize(r.Context(), req)
	if err != nil {
		slog.Error("Conversation summary failed", "error", err, "user_id", req.UserID)
		Error(w, http.StatusInternalServerError, "summary failed")
		return
	}

	slog.Info("Conversation summarized", "user_id", req.UserID, "total_messages", req.TotalMessages, "topics", result.MainTopics)
	JSON(w, http.StatusOK, result)
}

// SaveConversation stores a summarized conversation.
func (h *ConversationHandler) SaveConversation(w http.ResponseWriter, r *http.Request) {
	var rec domain.ConversationRecord
	if err := decodeBody(w, r, &rec); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rec.UserID <= 0 {
		Error(w, http.StatusBadRequest, "userId is required")
		return
	}
	if rec.StressLevel < 0 || rec.StressLevel > domain.MaxStressLevel {
		Error(w, http.StatusBadRequest, "stressLevel must be between 0 and 10")
		return
	}

	stored, err := h.repo.SaveConversation(r.Context(), rec)
	if err != nil {
		slog.Error("Failed to save conversation", "error", err, "user_id", rec.UserID)
		Error(w, http.StatusInternalServerError, "failed to save conversation")
		return
	}

	slog.Info("Conversation saved", "id", stored.ID, "user_id", rec.UserID, "session_title", rec.SessionTitle)
	JSON(w, http.StatusCreated, stored)
}

// ListConversations returns one page of the caller's conversations, newest
// first.
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.Header.Get(persistence.UserIDHeader), 10, 64)
	if err != nil || userID <= 0 {
		Error(w, http.StatusBadRequest, "missing or invalid "+persistence.UserIDHeader)
		return
	}

	page, size, err := pageParams(r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	convs, err := h.repo.ListConversations(r.Context(), userID, size, page*size)
	if err != nil {
		slog.Error("Failed to list conversations", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	JSON(w, http.StatusOK, convs)
}

func pageParams(r *http.Request) (page, size int, err error) {
	q := r.URL.Query()
	size = defaultPageSize
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 0 {
			return 0, 0, errors.New("page must be a non-negative integer")
		}
	}
	if v := q.Get("size"); v != "" {
		if size, err = strconv.Atoi(v); err != nil || size <= 0 {
			return 0, 0, errors.New("size must be a positive integer")
		}
	}
	return page, min(size, maxPageSize), nil
}

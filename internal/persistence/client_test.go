package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheongchun/chatcore/internal/auth"
	"github.com/cheongchun/chatcore/internal/domain"
)

func TestSaveConversationSendsBearerAndCamelCase(t *testing.T) {
	var body map[string]any
	var authz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/conversation", r.URL.Path)
		authz = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL, auth.Static{UserID: "42", Token: "jwt"}, time.Second)
	err := c.SaveConversation(context.Background(), domain.ConversationRecord{
		UserID:            42,
		SessionTitle:      "혈압",
		ConcernsDiscussed: []string{},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer jwt", authz)
	assert.Equal(t, float64(42), body["userId"])
	assert.Equal(t, []any{}, body["concernsDiscussed"])
}

func TestSaveConversationStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New(srv.URL, nil, time.Second).SaveConversation(context.Background(), domain.ConversationRecord{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestSaveConversationMissingIdentity(t *testing.T) {
	c := New("http://127.0.0.1:0", auth.Static{}, time.Second)
	err := c.SaveConversation(context.Background(), domain.ConversationRecord{})
	assert.ErrorIs(t, err, auth.ErrMissing)
}

func TestListConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		assert.Equal(t, "42", r.Header.Get(UserIDHeader))
		_, _ = w.Write([]byte(`[{"id":"c1","createdAt":"2025-03-01T09:00:00Z","userId":42,"sessionTitle":"산책","totalMessages":4}]`))
	}))
	defer srv.Close()

	convs, err := New(srv.URL, auth.Static{UserID: "42", Token: "jwt"}, time.Second).ListConversations(context.Background(), 0, 5)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
	assert.Equal(t, "산책", convs[0].SessionTitle)
	assert.Equal(t, 4, convs[0].TotalMessages)
}

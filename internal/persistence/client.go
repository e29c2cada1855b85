// Package persistence is a client for the backend's conversation history API.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cheongchun/chatcore/internal/auth"
	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/summary"
)

// UserIDHeader names the signed-in user on requests to the backend.
const UserIDHeader = "X-User-ID"

// Client talks to the backend REST API on behalf of the signed-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       auth.Provider
}

var _ summary.Persister = (*Client)(nil)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Body)
}

// New creates a client for baseURL.
func New(baseURL string, provider auth.Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		auth:       provider,
	}
}

// SaveConversation stores a summarized conversation.
func (c *Client) SaveConversation(ctx context.Context, rec domain.ConversationRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, "/ai/conversation", bytes.NewReader(body), nil)
}

// ListConversations returns one page of the user's stored conversations,
// newest first.
func (c *Client) ListConversations(ctx context.Context, page, size int) ([]domain.StoredConversation, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	var out []domain.StoredConversation
	if err := c.do(ctx, http.MethodGet, "/ai/conversations?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.auth != nil {
		id, err := c.auth.Identity(ctx)
		if err != nil {
			return fmt.Errorf("resolve identity: %w", err)
		}
		if id.HasToken() {
			req.Header.Set("Authorization", "Bearer "+id.Token)
		}
		req.Header.Set(UserIDHeader, id.UserID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	if result != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

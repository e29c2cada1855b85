// Package auth provides the identity the chat core acts on behalf of.
package auth

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/cheongchun/chatcore/internal/domain"
)

// ErrMissing is returned when no signed-in user is available.
var ErrMissing = errors.New("auth: no user identity available")

// Provider supplies the current user's identity.
type Provider interface {
	Identity(ctx context.Context) (domain.Identity, error)
}

// Static is a Provider backed by fixed values, typically from configuration.
type Static struct {
	UserID      string
	Token       string
	DisplayName string
}

// Identity returns the configured identity or ErrMissing if no user id is set.
func (s Static) Identity(_ context.Context) (domain.Identity, error) {
	id := strings.TrimSpace(s.UserID)
	if id == "" {
		return domain.Identity{}, ErrMissing
	}
	name := s.DisplayName
	if name == "" {
		name = deriveDisplayName(id)
	}
	return domain.Identity{UserID: id, Token: s.Token, DisplayName: name}, nil
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (domain.Identity, error)

// Identity calls f.
func (f ProviderFunc) Identity(ctx context.Context) (domain.Identity, error) {
	return f(ctx)
}

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ValidUserID reports whether id is safe to use as a path segment.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

func deriveDisplayName(userID string) string {
	if len(userID) > 8 {
		return "user-" + userID[len(userID)-8:]
	}
	return "user-" + userID
}

type contextKey int

const tokenKey contextKey = iota

// TokenFromContext extracts the bearer token from the request context.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithToken returns ctx carrying token.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Middleware requires an Authorization bearer token and stores it in the
// request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), token)))
	})
}

// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/cheongchun/chatcore/internal/domain"
)

// Repository defines the interface for persisting summarized conversations.
type Repository interface {
	// SaveConversation stores rec and returns it with its assigned id and
	// creation time.
	SaveConversation(ctx context.Context, rec domain.ConversationRecord) (*domain.StoredConversation, error)

	// ListConversations returns a user's conversations, newest first.
	ListConversations(ctx context.Context, userID int64, limit, offset int) ([]domain.StoredConversation, error)

	// DeleteConversationsBefore removes conversations created before t and
	// returns how many were removed.
	DeleteConversationsBefore(ctx context.Context, t time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

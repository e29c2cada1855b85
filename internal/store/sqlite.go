package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		session_title TEXT NOT NULL,
		total_messages INTEGER NOT NULL,
		duration_minutes INTEGER NOT NULL,
		conversation_text TEXT NOT NULL,
		main_topics_json TEXT NOT NULL,
		health_mentions_json TEXT NOT NULL,
		concerns_json TEXT NOT NULL,
		mood_analysis TEXT NOT NULL,
		stress_level INTEGER NOT NULL,
		conversation_summary TEXT NOT NULL,
		key_insights_json TEXT NOT NULL,
		recommendations_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveConversation inserts rec under a fresh id.
func (s *SQLiteStore) SaveConversation(ctx context.Context, rec domain.ConversationRecord) (*domain.StoredConversation, error) {
	stored := &domain.StoredConversation{
		ID:                 uuid.NewString(),
		CreatedAt:          time.Now().UTC().Truncate(time.Millisecond),
		ConversationRecord: rec,
	}

	lists, err := encodeLists(rec)
	if err != nil {
		return nil, err
	}

	query := `
	INSERT INTO conversations (
		id, user_id, session_title, total_messages, duration_minutes,
		conversation_text, main_topics_json, health_mentions_json, concerns_json,
		mood_analysis, stress_level, conversation_summary, key_insights_json,
		recommendations_json, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	err = withConflictRetry(ctx, "save conversation", func() error {
		_, err := s.db.ExecContext(ctx, query,
			stored.ID, rec.UserID, rec.SessionTitle, rec.TotalMessages, rec.DurationMinutes,
			rec.ConversationText, lists[0], lists[1], lists[2],
			rec.MoodAnalysis, rec.StressLevel, rec.ConversationSummary, lists[3],
			lists[4], stored.CreatedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return stored, nil
}

// ListConversations returns up to limit conversations of userID, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID int64, limit, offset int) ([]domain.StoredConversation, error) {
	query := `
		SELECT id, user_id, session_title, total_messages, duration_minutes,
		       conversation_text, main_topics_json, health_mentions_json, concerns_json,
		       mood_analysis, stress_level, conversation_summary, key_insights_json,
		       recommendations_json, created_at
		FROM conversations WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close conversation rows", "error", closeErr)
		}
	}()

	convs := []domain.StoredConversation{}
	for rows.Next() {
		var c domain.StoredConversation
		var topics, health, concerns, insights, recs string
		var createdAt int64

		if err := rows.Scan(
			&c.ID, &c.UserID, &c.SessionTitle, &c.TotalMessages, &c.DurationMinutes,
			&c.ConversationText, &topics, &health, &concerns,
			&c.MoodAnalysis, &c.StressLevel, &c.ConversationSummary, &insights,
			&recs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}

		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		for _, f := range []struct {
			raw string
			dst *[]string
		}{
			{topics, &c.MainTopics},
			{health, &c.HealthMentions},
			{concerns, &c.ConcernsDiscussed},
			{insights, &c.KeyInsights},
			{recs, &c.AIRecommendations},
		} {
			if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
				return nil, fmt.Errorf("decode conversation %s: %w", c.ID, err)
			}
		}
		convs = append(convs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return convs, nil
}

// DeleteConversationsBefore removes conversations created before t.
func (s *SQLiteStore) DeleteConversationsBefore(ctx context.Context, t time.Time) (int64, error) {
	var deleted int64
	err := withConflictRetry(ctx, "delete conversations", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE created_at < ?`, t.UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete old conversations: %w", err)
	}
	return deleted, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// encodeLists renders the list fields of rec in column order.
func encodeLists(rec domain.ConversationRecord) ([5]string, error) {
	var out [5]string
	for i, list := range [][]string{
		rec.MainTopics, rec.HealthMentions, rec.ConcernsDiscussed,
		rec.KeyInsights, rec.AIRecommendations,
	} {
		if list == nil {
			list = []string{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return out, fmt.Errorf("encode conversation lists: %w", err)
		}
		out[i] = string(data)
	}
	return out, nil
}

// withConflictRetry runs fn, retrying SQLITE_BUSY and locked errors with
// exponential backoff: 50ms, 100ms.
func withConflictRetry(ctx context.Context, op string, fn func() error) error {
	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !shared.IsSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("SQLite conflict, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

var _ Repository = (*SQLiteStore)(nil)

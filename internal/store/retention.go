package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetentionInterval is how often the retention worker sweeps.
const DefaultRetentionInterval = time.Hour

// StartRetentionWorker runs a background goroutine that periodically deletes
// conversations older than retention. It stops when ctx is cancelled.
func StartRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration) {
	if retention <= 0 {
		slog.Info("Retention worker disabled")
		return
	}
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				pruneConversations(ctx, repo, retention)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func pruneConversations(ctx context.Context, repo Repository, retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	deleted, err := repo.DeleteConversationsBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() != nil {
			slog.Debug("Retention worker: context canceled during prune", "error", err)
			return
		}
		slog.Error("Retention worker failed to prune conversations", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned conversations", "count", deleted, "cutoff", cutoff)
	}
}

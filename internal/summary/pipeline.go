// Package summary turns a finished chat session into structured insights and
// forwards them to the persistence API.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/metrics"
	"github.com/cheongchun/chatcore/internal/session"
)

// DefaultGracePeriod bounds one background run.
const DefaultGracePeriod = 2 * time.Minute

var (
	// ErrSummarization wraps failures of the summarization call.
	ErrSummarization = errors.New("summary: summarization failed")
	// ErrPersistence wraps failures of the save-conversation call.
	ErrPersistence = errors.New("summary: persistence failed")
	// ErrInvalidUserID is returned when the user id is not numeric.
	ErrInvalidUserID = errors.New("summary: user id is not numeric")
)

// Summarizer converts a transcript into structured insights.
type Summarizer interface {
	Summarize(ctx context.Context, req domain.SummaryRequest) (*domain.SummaryResult, error)
}

// Persister stores a summarized conversation.
type Persister interface {
	SaveConversation(ctx context.Context, rec domain.ConversationRecord) error
}

// Pipeline runs summarization then persistence for finished sessions.
type Pipeline struct {
	summarizer  Summarizer
	persister   Persister
	gracePeriod time.Duration
	now         func() time.Time
	metrics     metrics.Recorder
	logger      *slog.Logger

	wg sync.WaitGroup
}

var _ session.Sink = (*Pipeline)(nil)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGracePeriod bounds each background run.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.gracePeriod = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithMetrics counts failures and successes.
func WithMetrics(m metrics.Recorder) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline creates a pipeline.
func NewPipeline(s Summarizer, p Persister, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	pl := &Pipeline{
		summarizer:  s,
		persister:   p,
		gracePeriod: DefaultGracePeriod,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Submit runs the pipeline for rec in the background, detached from the
// session that produced it. The run is abandoned after the grace period.
func (p *Pipeline) Submit(rec session.Record) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.gracePeriod)
		defer cancel()
		// Failures are logged and counted inside Run.
		_ = p.Run(ctx, rec)
	}()
}

// Wait blocks until all submitted runs have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Run summarizes rec and persists the result. A summarization failure stops
// the pipeline before persistence. Nothing is retried.
func (p *Pipeline) Run(ctx context.Context, rec session.Record) error {
	req, err := BuildRequest(rec, p.now())
	if err != nil {
		p.logger.Warn("summary skipped", "user_id", rec.UserID, "error", err)
		metrics.Record(p.metrics, metrics.EventSummaryFailed)
		return err
	}

	start := time.Now()
	result, err := p.summarizer.Summarize(ctx, req)
	if err != nil {
		p.logger.Error("conversation summary failed",
			"user_id", rec.UserID,
			"turns", rec.TurnCount,
			"error", err,
		)
		metrics.Record(p.metrics, metrics.EventSummaryFailed)
		return fmt.Errorf("%w: %w", ErrSummarization, err)
	}
	p.logger.Debug("conversation summarized", "user_id", rec.UserID, "duration_ms", time.Since(start).Milliseconds())

	conv := BuildConversation(req, result)
	if err := p.persister.SaveConversation(ctx, conv); err != nil {
		p.logger.Error("conversation save failed",
			"user_id", rec.UserID,
			"session_title", conv.SessionTitle,
			"error", err,
		)
		metrics.Record(p.metrics, metrics.EventPersistFailed)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	p.logger.Info("conversation saved",
		"user_id", rec.UserID,
		"session_title", conv.SessionTitle,
		"total_messages", conv.TotalMessages,
		"duration_minutes", conv.DurationMinutes,
	)
	metrics.Record(p.metrics, metrics.EventPersistSucceeded)
	return nil
}

// BuildRequest derives the summarization request for rec as of now.
func BuildRequest(rec session.Record, now time.Time) (domain.SummaryRequest, error) {
	userID, err := strconv.ParseInt(rec.UserID, 10, 64)
	if err != nil {
		return domain.SummaryRequest{}, fmt.Errorf("%w: %q", ErrInvalidUserID, rec.UserID)
	}
	text := ConversationText(rec.Turns)
	return domain.SummaryRequest{
		ConversationText: text,
		UserID:           userID,
		SessionTitle:     Title(rec.Turns),
		TotalMessages:    rec.TurnCount,
		DurationMinutes:  int(math.Round(now.Sub(rec.StartTime).Minutes())),
		Topics:           Topics(text),
	}, nil
}

// BuildConversation combines the request fields with the summarizer's result.
func BuildConversation(req domain.SummaryRequest, result *domain.SummaryResult) domain.ConversationRecord {
	mood := result.MoodAnalysis
	if mood == "" {
		mood = domain.DefaultMood
	}
	return domain.ConversationRecord{
		UserID:              req.UserID,
		SessionTitle:        req.SessionTitle,
		TotalMessages:       req.TotalMessages,
		DurationMinutes:     req.DurationMinutes,
		ConversationText:    req.ConversationText,
		MainTopics:          nonNil(result.MainTopics),
		HealthMentions:      nonNil(result.HealthMentions),
		ConcernsDiscussed:   []string{},
		MoodAnalysis:        mood,
		StressLevel:         min(max(result.StressLevel, 0), domain.MaxStressLevel),
		ConversationSummary: result.ConversationSummary,
		KeyInsights:         nonNil(result.KeyInsights),
		AIRecommendations:   nonNil(result.AIRecommendations),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

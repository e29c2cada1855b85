// Package session records the transcript of one open-to-close chat session.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/metrics"
)

// DefaultMinTurns is the smallest session worth summarizing.
const DefaultMinTurns = 2

// Record is a finished session handed to a Sink.
type Record struct {
	UserID    string
	StartTime time.Time
	TurnCount int
	Turns     []domain.Turn
}

// Sink receives finished sessions. Submit must not block the caller.
type Sink interface {
	Submit(rec Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(rec Record)

// Submit calls f.
func (f SinkFunc) Submit(rec Record) { f(rec) }

// Recorder accumulates the in-memory transcript of the current session.
// The transcript is never exposed to the UI.
type Recorder struct {
	sink     Sink
	minTurns int
	now      func() time.Time
	metrics  metrics.Recorder
	logger   *slog.Logger

	mu        sync.Mutex
	active    bool
	userID    string
	startTime time.Time
	turnCount int
	turns     []domain.Turn
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMinTurns sets the flush threshold.
func WithMinTurns(n int) Option {
	return func(r *Recorder) { r.minTurns = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithMetrics records discarded sessions.
func WithMetrics(m metrics.Recorder) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a recorder that flushes finished sessions to sink.
func NewRecorder(sink Sink, logger *slog.Logger, opts ...Option) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:     sink,
		minTurns: DefaultMinTurns,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnOpen starts a fresh session for userID. A session still open from a
// previous connection is closed first.
func (r *Recorder) OnOpen(userID string) {
	r.OnClose()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = true
	r.userID = userID
	r.startTime = r.now()
	r.turnCount = 0
	r.turns = nil
}

// OnUserSend appends a user turn stamped now.
func (r *Recorder) OnUserSend(text string) {
	r.append(domain.Turn{Role: domain.RoleUser, Content: text, Timestamp: r.now()})
}

// OnAssistantComplete appends an assistant turn with the server timestamp.
func (r *Recorder) OnAssistantComplete(text string, ts time.Time) {
	r.append(domain.Turn{Role: domain.RoleAssistant, Content: text, Timestamp: ts})
}

func (r *Recorder) append(turn domain.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.turns = append(r.turns, turn)
	r.turnCount++
}

// TurnCount returns the number of turns in the current session.
func (r *Recorder) TurnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnCount
}

// Active reports whether a session is being recorded.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// OnClose ends the session. Sessions with at least the minimum number of
// turns are handed to the sink; shorter ones are discarded. It returns true if
// the session was handed off.
func (r *Recorder) OnClose() bool {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return false
	}
	rec := Record{
		UserID:    r.userID,
		StartTime: r.startTime,
		TurnCount: r.turnCount,
		Turns:     r.turns,
	}
	r.active = false
	r.turnCount = 0
	r.turns = nil
	r.mu.Unlock()

	if rec.TurnCount < r.minTurns || r.sink == nil {
		r.logger.Debug("session discarded", "user_id", rec.UserID, "turns", rec.TurnCount, "min_turns", r.minTurns)
		metrics.Record(r.metrics, metrics.EventSessionDiscarded)
		return false
	}

	r.logger.Info("session finished, handing off for summary", "user_id", rec.UserID, "turns", rec.TurnCount)
	r.sink.Submit(rec)
	return true
}

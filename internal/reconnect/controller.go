// Package reconnect keeps the chat connection alive by reopening it after
// abnormal closures.
package reconnect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/metrics"
	"github.com/cheongchun/chatcore/internal/transport"
)

// DefaultDelay is the fixed wait before reopening after an abnormal close.
const DefaultDelay = 3 * time.Second

// Connector is the part of the transport channel the controller drives.
type Connector interface {
	Open(ctx context.Context, userID string) error
	Close(code int, reason string) error
}

// Controller owns the connection state machine:
//
//	Disconnected → Connecting → Connected → (closed) → Reconnecting → Connecting → ...
//
// A normal closure (1000) ends in Disconnected; any other code schedules one
// reopen after the fixed delay. Retries are unbounded.
type Controller struct {
	conn    Connector
	clock   Clock
	delay   time.Duration
	metrics metrics.Recorder
	logger  *slog.Logger

	mu       sync.Mutex
	state    domain.ConnectionState
	userID   string
	timer    Timer
	stopped  bool
	ctx      context.Context
	cancel   context.CancelFunc
	onChange func(domain.ConnectionState)
}

// Option configures a Controller.
type Option func(*Controller)

// WithDelay overrides the reconnect delay.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithClock overrides the scheduling clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithMetrics counts scheduled reconnects.
func WithMetrics(m metrics.Recorder) Option {
	return func(c *Controller) { c.metrics = m }
}

// New creates a controller driving conn.
func New(conn Connector, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		conn:   conn,
		clock:  RealClock,
		delay:  DefaultDelay,
		logger: logger,
		state:  domain.Disconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnStateChange registers fn to be called after every state transition.
func (c *Controller) OnStateChange(fn func(domain.ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// State returns the current connection state.
func (c *Controller) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins connecting on behalf of userID.
func (c *Controller) Start(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.stopped = false
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.stopTimerLocked()
	notify := c.setStateLocked(domain.Connecting)
	ctx := c.ctx
	c.mu.Unlock()

	notify()
	go c.open(ctx, userID)
}

// Reconnect reopens the connection immediately, skipping any pending delay.
func (c *Controller) Reconnect() {
	c.mu.Lock()
	userID := c.userID
	if userID == "" {
		c.mu.Unlock()
		c.logger.Warn("reconnect requested before start")
		return
	}
	if c.stopped || c.ctx == nil {
		c.stopped = false
		c.ctx, c.cancel = context.WithCancel(context.Background())
	}
	c.stopTimerLocked()
	notify := c.setStateLocked(domain.Connecting)
	ctx := c.ctx
	c.mu.Unlock()

	notify()
	c.logger.Info("manual reconnect", "user_id", userID)
	go c.open(ctx, userID)
}

// Stop cancels any pending reopen and closes the connection normally.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
	}
	notify := c.setStateLocked(domain.Disconnected)
	c.mu.Unlock()

	notify()
	if err := c.conn.Close(transport.CodeNormalClosure, "client closed"); err != nil {
		c.logger.Debug("close on stop failed", "error", err)
	}
}

// HandleEvent advances the state machine for a transport event.
func (c *Controller) HandleEvent(ev transport.Event) {
	switch ev.Type {
	case transport.EventOpened:
		c.mu.Lock()
		if c.stopped {
			c.mu.Unlock()
			_ = c.conn.Close(transport.CodeNormalClosure, "client closed")
			return
		}
		notify := c.setStateLocked(domain.Connected)
		c.mu.Unlock()
		notify()

	case transport.EventClosed:
		c.handleClosed(ev.Code)
	}
}

func (c *Controller) handleClosed(code int) {
	c.mu.Lock()
	if c.stopped || code == transport.CodeNormalClosure {
		c.stopTimerLocked()
		notify := c.setStateLocked(domain.Disconnected)
		c.mu.Unlock()
		notify()
		c.logger.Info("chat connection ended", "code", code, "user_id", c.userIDSnapshot())
		return
	}

	c.stopTimerLocked()
	userID := c.userID
	ctx := c.ctx
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(ctx, userID) })
	notify := c.setStateLocked(domain.Reconnecting)
	c.mu.Unlock()

	notify()
	metrics.Record(c.metrics, metrics.EventReconnectScheduled)
	c.logger.Warn("chat connection lost, reconnect scheduled", "code", code, "delay", c.delay, "user_id", userID)
}

func (c *Controller) fire(ctx context.Context, userID string) {
	c.mu.Lock()
	if c.stopped || c.state != domain.Reconnecting || c.userID != userID {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	notify := c.setStateLocked(domain.Connecting)
	c.mu.Unlock()

	notify()
	c.open(ctx, userID)
}

func (c *Controller) open(ctx context.Context, userID string) {
	// Failures surface as Error/Closed events through HandleEvent.
	if err := c.conn.Open(ctx, userID); err != nil {
		c.logger.Debug("open attempt failed", "user_id", userID, "error", err)
	}
}

func (c *Controller) userIDSnapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// setStateLocked records s and returns the notification to run after the
// lock is released.
func (c *Controller) setStateLocked(s domain.ConnectionState) func() {
	if c.state == s {
		return func() {}
	}
	c.state = s
	fn := c.onChange
	if fn == nil {
		return func() {}
	}
	return func() { fn(s) }
}

// Package transport owns the duplex streaming connection to the chat backend.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Close codes used by the chat protocol.
const (
	CodeNormalClosure   = 1000
	CodeGoingAway       = 1001
	CodeAbnormalClosure = 1006
	CodeInternalError   = 1011
)

var (
	// ErrNotConnected is returned by Send when no connection is open.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrDial wraps connection failures.
	ErrDial = errors.New("transport: dial failed")
	// ErrSuperseded is returned by Open when a newer Open replaced it mid-dial.
	ErrSuperseded = errors.New("transport: superseded by a newer connection")
)

// State is the lifecycle state of a Channel.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// EventType discriminates Event.
type EventType int

const (
	EventOpened EventType = iota
	EventMessage
	EventError
	EventClosed
)

// Event is delivered to the channel's observer.
type Event struct {
	Type EventType
	Data []byte
	Err  error
	Code int
}

// Observer receives channel events. Events of one connection are delivered
// sequentially.
type Observer func(Event)

// CloseError is returned by Conn.Read when the peer closed the connection.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("connection closed: code=%d reason=%q", e.Code, e.Reason)
}

// Conn is one established duplex connection.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, p []byte) error
	Close(code int, reason string) error
}

// Dialer establishes connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Channel owns at most one live connection to the chat backend.
type Channel struct {
	dialer Dialer
	host   string
	logger *slog.Logger

	mu         sync.Mutex
	observer   Observer
	state      State
	conn       Conn
	gen        uint64
	localCode  int
	cancelRead context.CancelFunc
}

// NewChannel creates a channel that dials host with dialer.
func NewChannel(dialer Dialer, host string, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		dialer: dialer,
		host:   host,
		logger: logger,
	}
}

// SetObserver registers the single observer of this channel.
func (c *Channel) SetObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

// State returns the current channel state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open dials the chat endpoint for userID. Any previous connection is closed
// first and its remaining events are dropped. On failure the observer sees an
// Error event followed by Closed with CodeAbnormalClosure.
func (c *Channel) Open(ctx context.Context, userID string) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	old := c.conn
	oldCancel := c.cancelRead
	c.conn = nil
	c.cancelRead = nil
	c.localCode = 0
	c.state = StateConnecting
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(CodeNormalClosure, "superseded"); err != nil {
			c.logger.Debug("failed to close superseded connection", "error", err, "user_id", userID)
		}
	}
	if oldCancel != nil {
		oldCancel()
	}

	url := EndpointURL(c.host, userID)
	conn, err := c.dialer.Dial(ctx, url)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close(CodeNormalClosure, "superseded")
		}
		return ErrSuperseded
	}
	if err != nil {
		c.state = StateIdle
		c.mu.Unlock()
		c.logger.Warn("chat connection failed", "url", url, "user_id", userID, "error", err)
		dialErr := fmt.Errorf("%w: %s: %v", ErrDial, url, err)
		c.emit(gen, Event{Type: EventError, Err: dialErr})
		c.emit(gen, Event{Type: EventClosed, Code: CodeAbnormalClosure})
		return dialErr
	}
	readCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancelRead = cancel
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("chat connection opened", "url", url, "user_id", userID)
	c.emit(gen, Event{Type: EventOpened})
	go c.readLoop(readCtx, gen, conn)
	return nil
}

// Send writes one text frame. It fails with ErrNotConnected unless the
// channel is connected.
func (c *Channel) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if conn == nil || state != StateConnected {
		return ErrNotConnected
	}
	if err := conn.Write(ctx, payload); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return nil
}

// Close closes the live connection with code. The resulting Closed event
// carries code. Close is a no-op when nothing is open.
func (c *Channel) Close(code int, reason string) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil || c.state == StateClosing {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.localCode = code
	c.mu.Unlock()

	if err := conn.Close(code, reason); err != nil {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}

func (c *Channel) readLoop(ctx context.Context, gen uint64, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			code := c.closeCode(gen, err)
			c.mu.Lock()
			if gen == c.gen {
				c.conn = nil
				c.state = StateIdle
				if c.cancelRead != nil {
					c.cancelRead()
					c.cancelRead = nil
				}
			}
			c.mu.Unlock()
			c.logger.Debug("chat connection closed", "code", code, "error", err)
			c.emit(gen, Event{Type: EventClosed, Code: code})
			return
		}
		c.emit(gen, Event{Type: EventMessage, Data: data})
	}
}

func (c *Channel) closeCode(gen uint64, err error) int {
	c.mu.Lock()
	local := c.localCode
	current := gen == c.gen
	c.mu.Unlock()
	if current && local != 0 {
		return local
	}
	var ce *CloseError
	if errors.As(err, &ce) && ce.Code > 0 {
		return ce.Code
	}
	return CodeAbnormalClosure
}

// emit delivers ev unless gen has been superseded.
func (c *Channel) emit(gen uint64, ev Event) {
	c.mu.Lock()
	obs := c.observer
	stale := gen != c.gen
	c.mu.Unlock()
	if stale || obs == nil {
		return
	}
	obs(ev)
}

// Package chat exposes the chat session to the UI layer as an observable
// view model.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cheongchun/chatcore/internal/auth"
	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/metrics"
	"github.com/cheongchun/chatcore/internal/protocol"
	"github.com/cheongchun/chatcore/internal/reconnect"
	"github.com/cheongchun/chatcore/internal/session"
	"github.com/cheongchun/chatcore/internal/transport"
)

const (
	// WelcomeID is the id of the greeting shown when a screen opens.
	WelcomeID = "welcome-message"
	// WelcomeText greets the user before the first exchange.
	WelcomeText = "안녕하세요! 😊\n\n저는 여러분을 도와드리는 AI 도우미입니다.\n\n• 건강 상담\n• 생활 정보\n• 취미 활동\n• 가족 관계\n\n편안하게 무엇이든 물어보세요!"
	// OfflineText is shown when the user sends while disconnected.
	OfflineText = "연결이 끊어졌습니다. 잠시 후 다시 시도해주세요."
)

// Channel is the transport the view model drives.
type Channel interface {
	SetObserver(o transport.Observer)
	State() transport.State
	Open(ctx context.Context, userID string) error
	Send(ctx context.Context, payload []byte) error
	Close(code int, reason string) error
}

// State is an immutable snapshot of what the UI renders.
type State struct {
	Messages      []domain.ChatMessage // newest first
	Connected     bool
	Typing        bool
	StreamingText string
	Connection    domain.ConnectionState
}

// ViewModel aggregates transport, reconnect, protocol and session recording
// into UI state. No error crosses this boundary; failures are logged and
// counted.
type ViewModel struct {
	channel      Channel
	provider     auth.Provider
	controller   *reconnect.Controller
	recorder     *session.Recorder
	metrics      metrics.Recorder
	logger       *slog.Logger
	now          func() time.Time
	historyLimit int

	mu          sync.Mutex
	identity    domain.Identity
	messages    []domain.ChatMessage
	typing      bool
	streaming   strings.Builder
	subscribers map[int]func(State)
	nextSub     int

	closeOnce sync.Once
}

type options struct {
	historyLimit   int
	reconnectDelay time.Duration
	minTurns       int
	clock          reconnect.Clock
	now            func() time.Time
	metrics        metrics.Recorder
}

// Option configures a ViewModel.
type Option func(*options)

// WithHistoryLimit sets how many prior messages accompany each send.
func WithHistoryLimit(n int) Option {
	return func(o *options) { o.historyLimit = n }
}

// WithReconnectDelay sets the wait before reopening after an abnormal close.
func WithReconnectDelay(d time.Duration) Option {
	return func(o *options) { o.reconnectDelay = d }
}

// WithMinTurns sets the smallest session handed to the summarizer.
func WithMinTurns(n int) Option {
	return func(o *options) { o.minTurns = n }
}

// WithClock overrides the reconnect scheduling clock.
func WithClock(c reconnect.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithNow overrides time.Now for message and turn timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMetrics injects the failure counter.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *options) { o.metrics = m }
}

// NewViewModel wires a view model over channel. Finished sessions go to sink.
func NewViewModel(channel Channel, provider auth.Provider, sink session.Sink, logger *slog.Logger, opts ...Option) *ViewModel {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{
		historyLimit:   protocol.DefaultHistoryLimit,
		reconnectDelay: reconnect.DefaultDelay,
		minTurns:       session.DefaultMinTurns,
		clock:          reconnect.RealClock,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	vm := &ViewModel{
		channel:      channel,
		provider:     provider,
		metrics:      o.metrics,
		logger:       logger,
		now:          o.now,
		historyLimit: o.historyLimit,
		subscribers:  make(map[int]func(State)),
	}
	vm.recorder = session.NewRecorder(sink, logger,
		session.WithMinTurns(o.minTurns),
		session.WithClock(o.now),
		session.WithMetrics(o.metrics),
	)
	vm.controller = reconnect.New(channel, logger,
		reconnect.WithDelay(o.reconnectDelay),
		reconnect.WithClock(o.clock),
		reconnect.WithMetrics(o.metrics),
	)
	vm.controller.OnStateChange(func(domain.ConnectionState) { vm.notify() })
	vm.messages = []domain.ChatMessage{{
		ID:          WelcomeID,
		Text:        WelcomeText,
		CreatedAt:   o.now(),
		SenderID:    domain.AssistantID,
		DisplayName: domain.AssistantName,
		Avatar:      domain.AssistantAvatar,
	}}
	channel.SetObserver(vm.handleEvent)
	return vm
}

// Connect resolves the current identity and opens the connection. Without an
// identity nothing is opened.
func (vm *ViewModel) Connect(ctx context.Context) {
	id, err := vm.provider.Identity(ctx)
	if err != nil {
		metrics.Record(vm.metrics, metrics.EventAuthMissing)
		if errors.Is(err, auth.ErrMissing) {
			vm.logger.Warn("chat connect skipped: no user identity")
		} else {
			vm.logger.Error("chat connect skipped: identity lookup failed", "error", err)
		}
		return
	}

	vm.mu.Lock()
	vm.identity = id
	vm.mu.Unlock()

	vm.logger.Info("chat connecting", "user_id", id.UserID)
	vm.controller.Start(id.UserID)
}

// Close stops reconnecting and closes the channel with a normal closure.
// The current session is flushed. Safe to call more than once.
func (vm *ViewModel) Close() {
	vm.closeOnce.Do(func() {
		// Flush before closing so the hand-off happens on this goroutine.
		vm.recorder.OnClose()
		vm.controller.Stop()
		vm.logger.Info("chat closed", "user_id", vm.userID())
	})
}

// Reconnect reopens the connection immediately. The current session ends
// here because the superseded connection reports no close.
func (vm *ViewModel) Reconnect() {
	vm.recorder.OnClose()
	vm.resetResponse()
	vm.controller.Reconnect()
}

// SendMessage sends text to the assistant. Blank text is ignored. While
// disconnected an offline notice is shown instead.
func (vm *ViewModel) SendMessage(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	now := vm.now()
	// Same source as IsConnected.
	if !vm.IsConnected() {
		metrics.Record(vm.metrics, metrics.EventSendOffline)
		vm.mu.Lock()
		vm.prependLocked(domain.ChatMessage{
			ID:          uuid.NewString(),
			Text:        OfflineText,
			CreatedAt:   now,
			SenderID:    domain.AssistantID,
			DisplayName: domain.AssistantName,
			Avatar:      domain.ErrorAvatar,
		})
		vm.mu.Unlock()
		vm.notify()
		return
	}

	vm.mu.Lock()
	history := protocol.TrimHistory(vm.messages, vm.historyLimit)
	vm.prependLocked(domain.ChatMessage{
		ID:          uuid.NewString(),
		Text:        text,
		CreatedAt:   now,
		SenderID:    vm.identity.UserID,
		DisplayName: vm.identity.DisplayName,
		Avatar:      domain.UserAvatar,
	})
	vm.mu.Unlock()
	vm.notify()

	payload, err := protocol.Encode(text, history, now)
	if err != nil {
		vm.logger.Error("encode chat message", "error", err)
		return
	}
	if err := vm.channel.Send(ctx, payload); err != nil {
		metrics.Record(vm.metrics, metrics.EventSendFailed)
		vm.logger.Warn("send chat message", "user_id", vm.userID(), "error", err)
		return
	}

	vm.recorder.OnUserSend(text)
	vm.mu.Lock()
	vm.typing = true
	vm.mu.Unlock()
	vm.notify()
}

func (vm *ViewModel) handleEvent(ev transport.Event) {
	switch ev.Type {
	case transport.EventOpened:
		userID := vm.userID()
		vm.recorder.OnOpen(userID)
		vm.controller.HandleEvent(ev)
		vm.logger.Info("chat connected", "user_id", userID)

	case transport.EventMessage:
		vm.handleFrame(ev.Data)

	case transport.EventError:
		if errors.Is(ev.Err, transport.ErrDial) {
			metrics.Record(vm.metrics, metrics.EventDialFailed)
		}
		vm.logger.Warn("chat transport error", "user_id", vm.userID(), "error", ev.Err)
		vm.resetResponse()

	case transport.EventClosed:
		vm.recorder.OnClose()
		vm.resetResponse()
		vm.controller.HandleEvent(ev)
	}
}

// resetResponse drops a partially streamed response.
func (vm *ViewModel) resetResponse() {
	vm.mu.Lock()
	changed := vm.typing || vm.streaming.Len() > 0
	vm.streaming.Reset()
	vm.typing = false
	vm.mu.Unlock()
	if changed {
		vm.notify()
	}
}

func (vm *ViewModel) handleFrame(data []byte) {
	frame, err := protocol.Decode(data, vm.now())
	if err != nil {
		metrics.Record(vm.metrics, metrics.EventFrameMalformed)
		vm.logger.Warn("dropping chat frame", "error", err)
		return
	}

	switch frame.Type {
	case protocol.FrameChunk:
		vm.mu.Lock()
		vm.streaming.WriteString(frame.Content)
		vm.typing = true
		vm.mu.Unlock()

	case protocol.FrameComplete:
		vm.mu.Lock()
		vm.prependLocked(domain.ChatMessage{
			ID:          uuid.NewString(),
			Text:        frame.Content,
			CreatedAt:   frame.Timestamp,
			SenderID:    domain.AssistantID,
			DisplayName: domain.AssistantName,
			Avatar:      domain.AssistantAvatar,
		})
		vm.streaming.Reset()
		vm.typing = false
		vm.mu.Unlock()
		vm.recorder.OnAssistantComplete(frame.Content, frame.Timestamp)

	case protocol.FrameError:
		metrics.Record(vm.metrics, metrics.EventFrameError)
		vm.logger.Warn("assistant reported an error", "user_id", vm.userID(), "content", frame.Content)
		vm.mu.Lock()
		vm.streaming.Reset()
		vm.typing = false
		vm.mu.Unlock()
	}
	vm.notify()
}

func (vm *ViewModel) prependLocked(msg domain.ChatMessage) {
	vm.messages = append([]domain.ChatMessage{msg}, vm.messages...)
}

func (vm *ViewModel) userID() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.identity.UserID
}

// Messages returns the displayed conversation, newest first.
func (vm *ViewModel) Messages() []domain.ChatMessage {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([]domain.ChatMessage(nil), vm.messages...)
}

// IsConnected reports whether the connection is open.
func (vm *ViewModel) IsConnected() bool {
	return vm.controller.State() == domain.Connected
}

// IsTyping reports whether an assistant response is in progress.
func (vm *ViewModel) IsTyping() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.typing
}

// CurrentStreamingText returns the chunks received for the response in
// progress.
func (vm *ViewModel) CurrentStreamingText() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.streaming.String()
}

// ConnectionState returns the reconnect state machine's state.
func (vm *ViewModel) ConnectionState() domain.ConnectionState {
	return vm.controller.State()
}

// Snapshot returns all observable state at once.
func (vm *ViewModel) Snapshot() State {
	conn := vm.controller.State()
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return State{
		Messages:      append([]domain.ChatMessage(nil), vm.messages...),
		Connected:     conn == domain.Connected,
		Typing:        vm.typing,
		StreamingText: vm.streaming.String(),
		Connection:    conn,
	}
}

// Subscribe registers fn to receive a snapshot after every state change.
// The returned function removes the subscription.
func (vm *ViewModel) Subscribe(fn func(State)) (cancel func()) {
	vm.mu.Lock()
	id := vm.nextSub
	vm.nextSub++
	vm.subscribers[id] = fn
	vm.mu.Unlock()

	return func() {
		vm.mu.Lock()
		delete(vm.subscribers, id)
		vm.mu.Unlock()
	}
}

func (vm *ViewModel) notify() {
	vm.mu.Lock()
	if len(vm.subscribers) == 0 {
		vm.mu.Unlock()
		return
	}
	subs := make([]func(State), 0, len(vm.subscribers))
	for _, fn := range vm.subscribers {
		subs = append(subs, fn)
	}
	vm.mu.Unlock()

	state := vm.Snapshot()
	for _, fn := range subs {
		fn(state)
	}
}

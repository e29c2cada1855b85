package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu         sync.Mutex
	written    [][]byte
	closeCode  int
	remoteCode int
	readErr    error
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case d := <-f.in:
		return d, nil
	case <-f.closed:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.readErr != nil {
			return nil, f.readErr
		}
		return nil, &CloseError{Code: f.remoteCode}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(_ context.Context, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, append([]byte(nil), p...))
	return nil
}

func (f *fakeConn) Close(code int, _ string) error {
	f.mu.Lock()
	f.closeCode = code
	f.remoteCode = code
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) drop(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
	f.once.Do(func() { close(f.closed) })
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	err   error
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func collect(ch *Channel) <-chan Event {
	events := make(chan Event, 32)
	ch.SetObserver(func(ev Event) { events <- ev })
	return events
}

func next(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestSendWhileIdle(t *testing.T) {
	ch := NewChannel(&fakeDialer{}, "localhost:8001", nil)
	err := ch.Send(context.Background(), []byte("hi"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestOpenMessageSendClose(t *testing.T) {
	dialer := &fakeDialer{}
	ch := NewChannel(dialer, "localhost:8001", nil)
	events := collect(ch)

	require.NoError(t, ch.Open(context.Background(), "42"))
	assert.Equal(t, EventOpened, next(t, events).Type)
	assert.Equal(t, StateConnected, ch.State())
	assert.Equal(t, []string{"ws://localhost:8001/ws/chat/42"}, dialer.urls)

	conn := dialer.conn(0)
	conn.in <- []byte(`{"type":"chunk"}`)
	ev := next(t, events)
	assert.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, `{"type":"chunk"}`, string(ev.Data))

	require.NoError(t, ch.Send(context.Background(), []byte("payload")))
	conn.mu.Lock()
	assert.Equal(t, [][]byte{[]byte("payload")}, conn.written)
	conn.mu.Unlock()

	require.NoError(t, ch.Close(CodeNormalClosure, "bye"))
	ev = next(t, events)
	assert.Equal(t, EventClosed, ev.Type)
	assert.Equal(t, CodeNormalClosure, ev.Code)
	assert.Equal(t, StateIdle, ch.State())

	assert.ErrorIs(t, ch.Send(context.Background(), []byte("late")), ErrNotConnected)
}

func TestRemoteDropIsAbnormal(t *testing.T) {
	dialer := &fakeDialer{}
	ch := NewChannel(dialer, "localhost:8001", nil)
	events := collect(ch)

	require.NoError(t, ch.Open(context.Background(), "42"))
	next(t, events)

	dialer.conn(0).drop(io.EOF)
	ev := next(t, events)
	assert.Equal(t, EventClosed, ev.Type)
	assert.Equal(t, CodeAbnormalClosure, ev.Code)
}

func TestDialFailureEmitsErrorThenClosed(t *testing.T) {
	ch := NewChannel(&fakeDialer{err: errors.New("connection refused")}, "localhost:8001", nil)
	events := collect(ch)

	err := ch.Open(context.Background(), "42")
	assert.ErrorIs(t, err, ErrDial)

	ev := next(t, events)
	assert.Equal(t, EventError, ev.Type)
	ev = next(t, events)
	assert.Equal(t, EventClosed, ev.Type)
	assert.Equal(t, CodeAbnormalClosure, ev.Code)
	assert.Equal(t, StateIdle, ch.State())
}

func TestReopenDropsStaleEvents(t *testing.T) {
	dialer := &fakeDialer{}
	ch := NewChannel(dialer, "localhost:8001", nil)
	events := collect(ch)

	require.NoError(t, ch.Open(context.Background(), "42"))
	assert.Equal(t, EventOpened, next(t, events).Type)

	require.NoError(t, ch.Open(context.Background(), "42"))
	assert.Equal(t, EventOpened, next(t, events).Type)

	first := dialer.conn(0)
	first.mu.Lock()
	assert.Equal(t, CodeNormalClosure, first.closeCode)
	first.mu.Unlock()

	select {
	case ev := <-events:
		t.Fatalf("unexpected event from superseded connection: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, StateConnected, ch.State())
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "ws://10.0.2.2:8001/ws/chat/7", EndpointURL("10.0.2.2:8001", "7"))
	assert.Equal(t, "ws://127.0.0.1:5555/ws/chat/7", EndpointURL("http://127.0.0.1:5555/", "7"))
	assert.Equal(t, "wss://chat.example.com/ws/chat/a%2Fb", EndpointURL("https://chat.example.com", "a/b"))
}

func TestWebSocketDialerRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		_ = ws.Write(ctx, websocket.MessageText, data)
		_ = ws.Close(websocket.StatusInternalError, "boom")
	}))
	defer srv.Close()

	ch := NewChannel(&WebSocketDialer{}, srv.URL, nil)
	events := collect(ch)

	require.NoError(t, ch.Open(context.Background(), "42"))
	assert.Equal(t, EventOpened, next(t, events).Type)

	require.NoError(t, ch.Send(context.Background(), []byte(`{"message":"hi"}`)))
	ev := next(t, events)
	require.Equal(t, EventMessage, ev.Type)
	assert.Equal(t, `{"message":"hi"}`, string(ev.Data))

	ev = next(t, events)
	assert.Equal(t, EventClosed, ev.Type)
	assert.Equal(t, CodeInternalError, ev.Code)
}

package devserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheongchun/chatcore/internal/auth"
	"github.com/cheongchun/chatcore/internal/chat"
	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/persistence"
	"github.com/cheongchun/chatcore/internal/protocol"
	"github.com/cheongchun/chatcore/internal/store"
	"github.com/cheongchun/chatcore/internal/summary"
	"github.com/cheongchun/chatcore/internal/transport"
)

type fakeSessionConn struct {
	code   websocket.StatusCode
	reason string
}

func (c *fakeSessionConn) Close(code websocket.StatusCode, reason string) error {
	c.code, c.reason = code, reason
	return nil
}

func TestSessionManagerReplacesPreviousSocket(t *testing.T) {
	sm := NewSessionManager(10)
	first, second := &fakeSessionConn{}, &fakeSessionConn{}

	sm.Register("42", first)
	sm.Register("42", second)

	assert.Equal(t, websocket.StatusNormalClosure, first.code)
	assert.Equal(t, "session replaced", first.reason)
	assert.Same(t, second, sm.GetActive("42"))

	sm.Unregister("42", first)
	assert.Equal(t, 1, sm.Count())
	sm.Unregister("42", second)
	assert.Equal(t, 0, sm.Count())
}

func TestSessionManagerRateLimit(t *testing.T) {
	sm := NewSessionManager(2)

	assert.True(t, sm.Allow("42"))
	assert.True(t, sm.Allow("42"))
	assert.False(t, sm.Allow("42"))
	assert.True(t, sm.Allow("7"), "limits are per user")
}

func TestSessionManagerCloseAll(t *testing.T) {
	sm := NewSessionManager(10)
	a, b := &fakeSessionConn{}, &fakeSessionConn{}
	sm.Register("1", a)
	sm.Register("2", b)

	sm.CloseAll("server shutting down")

	assert.Equal(t, websocket.StatusGoingAway, a.code)
	assert.Equal(t, websocket.StatusGoingAway, b.code)
	assert.Equal(t, 0, sm.Count())
}

func TestKeywordResponder(t *testing.T) {
	r := NewKeywordResponder()

	assert.Contains(t, r.Reply("안녕하세요", nil), "반갑습니다")
	assert.Contains(t, r.Reply("혈압이 높아요", nil), "건강")
	assert.Contains(t, r.Reply("오늘 산책했어요", nil), "운동")
	assert.Contains(t, r.Reply("그냥요", nil), "잘 들었습니다")
}

func TestChunks(t *testing.T) {
	assert.Equal(t, []string{"안녕하", "세요"}, Chunks("안녕하세요", 3))
	assert.Empty(t, Chunks("", 3))
	assert.Equal(t, strings.Repeat("가", 20), strings.Join(Chunks(strings.Repeat("가", 20), 0), ""))
}

func TestAnalyzer(t *testing.T) {
	res, err := Analyzer{}.Summarize(context.Background(), domain.SummaryRequest{
		ConversationText: "user: 요즘 무릎이 아파서 병원에 가요\nassistant: 병원에 가보세요\nuser: 손자가 보고 싶어요",
		TotalMessages:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"건강", "가족"}, res.MainTopics)
	assert.Equal(t, []string{"무릎"}, res.HealthMentions)
	assert.Equal(t, "concerned", res.MoodAnalysis)
	assert.Equal(t, 5, res.StressLevel)
	assert.Contains(t, res.ConversationSummary, "3개의 메시지")

	_, err = Analyzer{}.Summarize(context.Background(), domain.SummaryRequest{})
	assert.ErrorIs(t, err, ErrEmptyConversation)
}

func newTestServer(t *testing.T, perMinute int) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	handler := NewChatHandler(NewSessionManager(perMinute), NewKeywordResponder())
	srv := httptest.NewServer(NewRouter(Deps{Repo: repo, Chat: handler}))
	t.Cleanup(srv.Close)
	return srv, repo
}

func dialChat(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := transport.EndpointURL(srv.URL, userID)
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.CloseNow() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) protocol.ServerFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := ws.Read(ctx)
	require.NoError(t, err)
	var f protocol.ServerFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ready, err := http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	defer ready.Body.Close()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
}

func TestWebSocketStreamsChunksThenComplete(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	ws := dialChat(t, srv, "42")

	payload, err := protocol.Encode("안녕하세요", nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, ws.Write(context.Background(), websocket.MessageText, payload))

	var chunks strings.Builder
	for {
		f := readFrame(t, ws)
		if f.Type == protocol.FrameComplete {
			assert.Equal(t, chunks.String(), f.Content)
			assert.NotEmpty(t, f.Timestamp)
			break
		}
		require.Equal(t, protocol.FrameChunk, f.Type)
		chunks.WriteString(f.Content)
	}
	assert.Contains(t, chunks.String(), "반갑습니다")
}

func TestWebSocketMalformedFrame(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	ws := dialChat(t, srv, "42")

	require.NoError(t, ws.Write(context.Background(), websocket.MessageText, []byte("{oops")))

	f := readFrame(t, ws)
	assert.Equal(t, protocol.FrameError, f.Type)
	assert.Equal(t, malformedReply, f.Content)
}

func TestWebSocketRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, 1)
	ws := dialChat(t, srv, "42")

	payload, err := protocol.Encode("그냥요", nil, time.Now())
	require.NoError(t, err)
	require.NoError(t, ws.Write(context.Background(), websocket.MessageText, payload))
	for readFrame(t, ws).Type != protocol.FrameComplete {
	}

	require.NoError(t, ws.Write(context.Background(), websocket.MessageText, payload))
	f := readFrame(t, ws)
	assert.Equal(t, protocol.FrameError, f.Type)
	assert.Equal(t, rateLimitedReply, f.Content)
}

func TestWebSocketSecondSocketReplacesFirst(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	first := dialChat(t, srv, "42")
	_ = dialChat(t, srv, "42")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := first.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestChatSessionEndToEnd(t *testing.T) {
	srv, repo := newTestServer(t, 10)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := auth.Static{UserID: "42", Token: "dev-token"}

	pipeline := summary.NewPipeline(
		summary.NewHTTPSummarizer(srv.URL, 5*time.Second),
		persistence.New(srv.URL, provider, 5*time.Second),
		logger,
	)
	channel := transport.NewChannel(&transport.WebSocketDialer{}, srv.URL, logger)
	vm := chat.NewViewModel(channel, provider, pipeline, logger)

	vm.Connect(context.Background())
	require.Eventually(t, vm.IsConnected, 5*time.Second, 10*time.Millisecond)

	vm.SendMessage(context.Background(), "요즘 무릎이 아파서 병원에 가요")
	require.Eventually(t, func() bool { return len(vm.Messages()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.True(t, vm.Messages()[0].IsAssistant())
	assert.Contains(t, vm.Messages()[0].Text, "건강")
	assert.False(t, vm.IsTyping())

	vm.Close()
	pipeline.Wait()

	convs, err := repo.ListConversations(context.Background(), 42, 10, 0)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].TotalMessages)
	assert.Equal(t, "요즘 무릎이 아파서 병원에 가요", convs[0].SessionTitle)
	assert.Contains(t, convs[0].MainTopics, "건강")
	assert.Equal(t, []string{}, convs[0].ConcernsDiscussed)

	history, err := persistence.New(srv.URL, provider, 5*time.Second).ListConversations(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, convs[0].ID, history[0].ID)
}

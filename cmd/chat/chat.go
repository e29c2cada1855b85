package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cheongchun/chatcore/internal/auth"
	"github.com/cheongchun/chatcore/internal/chat"
	"github.com/cheongchun/chatcore/internal/metrics"
	"github.com/cheongchun/chatcore/internal/persistence"
	"github.com/cheongchun/chatcore/internal/summary"
	"github.com/cheongchun/chatcore/internal/transport"
)

const screenKey = "ai-chat"

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with the AI assistant.

Commands inside the session:
  /reconnect   reconnect immediately
  /quit        end the session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := identityProvider(cmd)
			if _, err := provider.Identity(cmd.Context()); errors.Is(err, auth.ErrMissing) {
				return fmt.Errorf("no user configured: set CHAT_USER_ID or pass --user")
			}
			return runChat(cmd.Context(), provider)
		},
	}
}

func runChat(parent context.Context, provider auth.Provider) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	pipeline := summary.NewPipeline(
		summary.NewHTTPSummarizer(cfg.Summary.BaseURL, cfg.API.Timeout),
		persistence.New(cfg.API.BaseURL, provider, cfg.API.Timeout),
		logger,
		summary.WithGracePeriod(cfg.Summary.GracePeriod),
		summary.WithMetrics(collector),
	)
	channel := transport.NewChannel(&transport.WebSocketDialer{}, cfg.Chat.Host, logger)
	vm := chat.NewViewModel(channel, provider, pipeline, logger,
		chat.WithHistoryLimit(cfg.Chat.HistoryLimit),
		chat.WithReconnectDelay(cfg.Chat.ReconnectDelay),
		chat.WithMinTurns(cfg.Summary.MinTurns),
		chat.WithMetrics(collector),
	)

	registry := chat.NewRegistry(logger)
	registry.Register(screenKey, vm)

	view := newTerminalView(os.Stdout)
	cancel := vm.Subscribe(view.Render)
	defer cancel()
	view.Render(vm.Snapshot())

	vm.Connect(ctx)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			switch strings.TrimSpace(line) {
			case "/quit", "/exit":
				break loop
			case "/reconnect":
				vm.Reconnect()
			default:
				vm.SendMessage(ctx, line)
			}
		}
	}

	registry.Unregister(screenKey, vm)
	view.System("대화를 저장하는 중입니다...")
	pipeline.Wait()

	snap := collector.Snapshot()
	for _, name := range snap.Names() {
		logger.Debug("chat metrics", "event", name, "count", snap.Events[name].Count)
	}
	return nil
}

// terminalView prints view model snapshots as a scrolling transcript.
type terminalView struct {
	mu       sync.Mutex
	out      io.Writer
	printed  map[string]bool
	typing   bool
	lastConn string
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out, printed: make(map[string]bool)}
}

// Render prints messages not yet shown, oldest first, plus state changes.
func (v *terminalView) Render(s chat.State) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if conn := s.Connection.String(); conn != v.lastConn {
		v.lastConn = conn
		fmt.Fprintln(v.out, renderConnection(s.Connection))
	}

	for i := len(s.Messages) - 1; i >= 0; i-- {
		msg := s.Messages[i]
		if v.printed[msg.ID] {
			continue
		}
		v.printed[msg.ID] = true
		fmt.Fprintln(v.out, renderMessage(msg))
	}

	if s.Typing && !v.typing {
		fmt.Fprintln(v.out, systemStyle.Render("입력 중..."))
	}
	v.typing = s.Typing
}

// System prints a client-side notice.
func (v *terminalView) System(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, systemStyle.Render(text))
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cheongchun/chatcore/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(userID int64, title string) domain.ConversationRecord {
	return domain.ConversationRecord{
		UserID:              userID,
		SessionTitle:        title,
		TotalMessages:       4,
		DurationMinutes:     3,
		ConversationText:    "user: 무릎이 아파요\nassistant: 병원에 가보세요",
		MainTopics:          []string{"건강"},
		HealthMentions:      []string{"무릎"},
		MoodAnalysis:        domain.DefaultMood,
		StressLevel:         4,
		ConversationSummary: "무릎 통증 상담",
		KeyInsights:         []string{"통증 지속"},
	}
}

func TestSaveAndListConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.SaveConversation(ctx, testRecord(42, "첫 대화"))
	if err != nil {
		t.Fatalf("SaveConversation() error = %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected an id")
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := s.SaveConversation(ctx, testRecord(42, "두번째 대화")); err != nil {
		t.Fatalf("SaveConversation() error = %v", err)
	}
	if _, err := s.SaveConversation(ctx, testRecord(7, "다른 사용자")); err != nil {
		t.Fatalf("SaveConversation() error = %v", err)
	}

	convs, err := s.ListConversations(ctx, 42, 10, 0)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].SessionTitle != "두번째 대화" || convs[1].SessionTitle != "첫 대화" {
		t.Errorf("unexpected order: %q, %q", convs[0].SessionTitle, convs[1].SessionTitle)
	}

	got := convs[1]
	if got.ID != first.ID {
		t.Errorf("ID = %q, want %q", got.ID, first.ID)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, first.CreatedAt)
	}
	if len(got.MainTopics) != 1 || got.MainTopics[0] != "건강" {
		t.Errorf("MainTopics = %v", got.MainTopics)
	}
	if got.ConcernsDiscussed == nil || len(got.ConcernsDiscussed) != 0 {
		t.Errorf("ConcernsDiscussed = %#v, want empty list", got.ConcernsDiscussed)
	}
	if got.AIRecommendations == nil {
		t.Error("AIRecommendations should decode as an empty list")
	}
	if got.StressLevel != 4 {
		t.Errorf("StressLevel = %d, want 4", got.StressLevel)
	}
}

func TestListConversationsPaging(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := s.SaveConversation(ctx, testRecord(1, "대화")); err != nil {
			t.Fatalf("SaveConversation() error = %v", err)
		}
	}

	page, err := s.ListConversations(ctx, 1, 2, 2)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(page) != 1 {
		t.Errorf("got %d conversations, want 1", len(page))
	}

	empty, err := s.ListConversations(ctx, 999, 10, 0)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestDeleteConversationsBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.SaveConversation(ctx, testRecord(1, "old")); err != nil {
		t.Fatalf("SaveConversation() error = %v", err)
	}

	deleted, err := s.DeleteConversationsBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteConversationsBefore() error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted %d, want 0", deleted)
	}

	deleted, err = s.DeleteConversationsBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("DeleteConversationsBefore() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d, want 1", deleted)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

type countingRepo struct {
	Repository
	calls chan time.Time
}

func (r *countingRepo) DeleteConversationsBefore(_ context.Context, t time.Time) (int64, error) {
	r.calls <- t
	return 1, nil
}

func TestRetentionWorkerPrunes(t *testing.T) {
	repo := &countingRepo{calls: make(chan time.Time, 4)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartRetentionWorker(ctx, repo, 24*time.Hour, 10*time.Millisecond)

	select {
	case cutoff := <-repo.calls:
		if d := time.Since(cutoff); d < 24*time.Hour || d > 25*time.Hour {
			t.Errorf("cutoff %v is not ~24h ago", cutoff)
		}
	case <-time.After(time.Second):
		t.Fatal("retention worker did not prune")
	}
}

func TestRetentionWorkerDisabled(t *testing.T) {
	repo := &countingRepo{calls: make(chan time.Time, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	StartRetentionWorker(ctx, repo, 0, time.Millisecond)

	select {
	case <-repo.calls:
		t.Fatal("disabled worker must not prune")
	case <-time.After(30 * time.Millisecond):
	}
}

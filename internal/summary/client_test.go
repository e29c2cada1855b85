package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cheongchun/chatcore/internal/domain"
)

func TestHTTPSummarizer(t *testing.T) {
	var got domain.SummaryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/conversation/summary", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"conversation_summary": "혈압 관리 상담",
			"key_insights": ["혈압에 관심이 많음"],
			"ai_recommendations": ["정기적인 산책"],
			"mood_analysis": "concerned",
			"stress_level": 6,
			"main_topics": ["건강"],
			"health_mentions": ["혈압"]
		}`))
	}))
	defer srv.Close()

	s := NewHTTPSummarizer(srv.URL+"/", time.Second)
	result, err := s.Summarize(context.Background(), domain.SummaryRequest{
		ConversationText: "user: 혈압",
		UserID:           42,
		SessionTitle:     "혈압",
		TotalMessages:    2,
		Topics:           []string{"건강"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "concerned", result.MoodAnalysis)
	assert.Equal(t, 6, result.StressLevel)
	assert.Equal(t, []string{"혈압"}, result.HealthMentions)
}

func TestHTTPSummarizerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPSummarizer(srv.URL, time.Second).Summarize(context.Background(), domain.SummaryRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPSummarizerBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewHTTPSummarizer(srv.URL, time.Second).Summarize(context.Background(), domain.SummaryRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

package domain

import (
	"time"
)

// MaxStressLevel is the upper bound of SummaryResult.StressLevel.
const MaxStressLevel = 10

// DefaultMood is used when the summarizer does not report a mood.
const DefaultMood = "neutral"

// SummaryRequest is sent to the summarization backend.
type SummaryRequest struct {
	ConversationText string   `json:"conversation_text"`
	UserID           int64    `json:"user_id"`
	SessionTitle     string   `json:"session_title"`
	TotalMessages    int      `json:"total_messages"`
	DurationMinutes  int      `json:"duration_minutes"`
	Topics           []string `json:"topics"`
}

// SummaryResult holds the structured insights returned by the summarizer.
type SummaryResult struct {
	ConversationSummary string   `json:"conversation_summary"`
	KeyInsights         []string `json:"key_insights"`
	AIRecommendations   []string `json:"ai_recommendations"`
	MoodAnalysis        string   `json:"mood_analysis"`
	StressLevel         int      `json:"stress_level"`
	MainTopics          []string `json:"main_topics"`
	HealthMentions      []string `json:"health_mentions"`
}

// ConversationRecord is the payload of the persistence API's save operation.
type ConversationRecord struct {
	UserID              int64    `json:"userId"`
	SessionTitle        string   `json:"sessionTitle"`
	TotalMessages       int      `json:"totalMessages"`
	DurationMinutes     int      `json:"durationMinutes"`
	ConversationText    string   `json:"conversationText"`
	MainTopics          []string `json:"mainTopics"`
	HealthMentions      []string `json:"healthMentions"`
	ConcernsDiscussed   []string `json:"concernsDiscussed"`
	MoodAnalysis        string   `json:"moodAnalysis"`
	StressLevel         int      `json:"stressLevel"`
	ConversationSummary string   `json:"conversationSummary"`
	KeyInsights         []string `json:"keyInsights"`
	AIRecommendations   []string `json:"aiRecommendations"`
}

// StoredConversation is a ConversationRecord as kept by a store.
type StoredConversation struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ConversationRecord
}

package domain

import (
	"time"
)

// AssistantID is the reserved sender id of assistant messages.
const AssistantID = "ai-assistant"

// Assistant presentation defaults.
const (
	AssistantName   = "시니어 도우미"
	AssistantAvatar = "🤖"
	ErrorAvatar     = "❌"
	UserAvatar      = "🙂"
)

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser marks turns typed by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks turns produced by the assistant.
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of the displayed conversation.
type ChatMessage struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	SenderID    string    `json:"sender_id"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar"`
}

// IsAssistant returns true if the message was sent by the assistant.
func (m ChatMessage) IsAssistant() bool {
	return m.SenderID == AssistantID
}

// Role returns the wire role of the message.
func (m ChatMessage) Role() Role {
	if m.IsAssistant() {
		return RoleAssistant
	}
	return RoleUser
}

// HistoryEntry is one item of the history sent along with a user message.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Turn is one transcript entry of a recorded session.
type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

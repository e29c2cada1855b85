// Package protocol encodes outgoing chat payloads and decodes the frames the
// chat backend streams back.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cheongchun/chatcore/internal/domain"
)

// DefaultHistoryLimit is the number of most recent messages sent as history.
const DefaultHistoryLimit = 10

// ErrMalformedFrame is returned for frames that cannot be decoded.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// FrameType discriminates server frames.
type FrameType string

const (
	FrameChunk    FrameType = "chunk"
	FrameComplete FrameType = "complete"
	FrameError    FrameType = "error"
)

// ServerFrame is the wire form of a server→client frame.
type ServerFrame struct {
	Type      FrameType `json:"type"`
	Content   string    `json:"content,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// ClientFrame is the wire form of a client→server frame.
type ClientFrame struct {
	Message   string                `json:"message"`
	History   []domain.HistoryEntry `json:"history"`
	Timestamp string                `json:"timestamp"`
}

// Event is a decoded server frame.
type Event struct {
	Type      FrameType
	Content   string
	Timestamp time.Time
}

// timestampLayouts lists accepted server timestamp formats. Python's
// datetime.isoformat() omits the zone when the value is naive.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Decode parses one server frame. receivedAt is used when the frame carries no
// usable timestamp.
func Decode(raw []byte, receivedAt time.Time) (Event, error) {
	var f ServerFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch f.Type {
	case FrameChunk, FrameComplete, FrameError:
	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, f.Type)
	}

	return Event{
		Type:      f.Type,
		Content:   f.Content,
		Timestamp: ParseTimestamp(f.Timestamp, receivedAt),
	}, nil
}

// ParseTimestamp parses an ISO-8601 timestamp, returning fallback if s is
// empty or unparseable.
func ParseTimestamp(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return fallback
}

// FormatTimestamp renders t as ISO-8601 UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// Encode builds the client frame for message.
func Encode(message string, history []domain.HistoryEntry, at time.Time) ([]byte, error) {
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	data, err := json.Marshal(ClientFrame{
		Message:   message,
		History:   history,
		Timestamp: FormatTimestamp(at),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal client frame: %w", err)
	}
	return data, nil
}

// TrimHistory takes up to limit of the newest messages (given newest first)
// and returns them oldest first.
func TrimHistory(newestFirst []domain.ChatMessage, limit int) []domain.HistoryEntry {
	n := min(limit, len(newestFirst))
	if n <= 0 {
		return []domain.HistoryEntry{}
	}
	history := make([]domain.HistoryEntry, n)
	for i := 0; i < n; i++ {
		msg := newestFirst[i]
		history[n-1-i] = domain.HistoryEntry{Role: msg.Role(), Content: msg.Text}
	}
	return history
}

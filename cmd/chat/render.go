package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cheongchun/chatcore/internal/domain"
)

var (
	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	bodyStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Bold(true)

	tagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))
)

// renderMessage formats one chat message as a header line and an indented body.
func renderMessage(msg domain.ChatMessage) string {
	header := userStyle.Render(msg.Avatar + " " + displayName(msg))
	if msg.IsAssistant() {
		header = assistantStyle.Render(msg.Avatar + " " + msg.DisplayName)
	}
	if msg.Avatar == domain.ErrorAvatar {
		return header + "\n" + bodyStyle.Render(errorStyle.Render(msg.Text))
	}
	return header + "\n" + bodyStyle.Render(msg.Text)
}

func displayName(msg domain.ChatMessage) string {
	if msg.DisplayName != "" {
		return msg.DisplayName
	}
	return msg.SenderID
}

func renderConnection(state domain.ConnectionState) string {
	switch state {
	case domain.Connected:
		return systemStyle.Render("● 연결됨")
	case domain.Connecting:
		return systemStyle.Render("○ 연결 중...")
	case domain.Reconnecting:
		return errorStyle.Render("○ 연결이 끊어졌습니다. 다시 연결하는 중...")
	default:
		return systemStyle.Render("○ 연결 안 됨")
	}
}

// renderConversation formats one stored conversation for `history`.
func renderConversation(c domain.StoredConversation) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(c.SessionTitle))
	b.WriteString(systemStyle.Render(fmt.Sprintf("  %s · %d개 메시지 · %d분",
		c.CreatedAt.Local().Format("2006-01-02 15:04"), c.TotalMessages, c.DurationMinutes)))
	b.WriteString("\n")
	if len(c.MainTopics) > 0 {
		b.WriteString(bodyStyle.Render(tagStyle.Render("#" + strings.Join(c.MainTopics, " #"))))
		b.WriteString("\n")
	}
	if c.ConversationSummary != "" {
		b.WriteString(bodyStyle.Render(c.ConversationSummary))
		b.WriteString("\n")
	}
	b.WriteString(bodyStyle.Render(systemStyle.Render(fmt.Sprintf("기분: %s · 스트레스: %d/%d",
		c.MoodAnalysis, c.StressLevel, domain.MaxStressLevel))))
	return b.String()
}

package summary

import (
	"strings"

	"github.com/cheongchun/chatcore/internal/domain"
)

const (
	titleMaxRunes = 20
	titleEllipsis = "..."
	fallbackTitle = "대화"
	fallbackTopic = "일상"
)

type topicKeywords struct {
	topic    string
	keywords []string
}

// topicSets is checked in order; a topic is included once if any keyword
// occurs anywhere in the transcript.
var topicSets = []topicKeywords{
	{topic: "건강", keywords: []string{
		"건강", "혈압", "당뇨", "콜레스테롤", "운동", "다이어트", "병원", "의사",
		"검진", "통증", "두통", "허리", "무릎", "관절", "소화", "영양", "비타민",
		"수면", "피로", "스트레스", "우울", "불안",
	}},
	{topic: "가족", keywords: []string{
		"가족", "자녀", "손자", "손녀", "배우자", "남편", "아내", "며느리", "사위",
		"딸", "아들", "외로움", "그리움",
	}},
	{topic: "취미", keywords: []string{
		"취미", "독서", "산책", "등산", "요리", "원예", "화초", "텃밭", "여행",
		"드라마", "영화", "음악", "노래", "바둑", "장기",
	}},
}

// Title returns the first user turn truncated to 20 runes plus an ellipsis,
// or "대화" when the session has no user turn.
func Title(turns []domain.Turn) string {
	for _, t := range turns {
		if t.Role != domain.RoleUser {
			continue
		}
		runes := []rune(t.Content)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes]) + titleEllipsis
		}
		return t.Content
	}
	return fallbackTitle
}

// Topics returns the coarse topics mentioned in text, or ["일상"] if none.
func Topics(text string) []string {
	var topics []string
	for _, set := range topicSets {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				topics = append(topics, set.topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		return []string{fallbackTopic}
	}
	return topics
}

// ConversationText renders turns as "role: content" lines.
func ConversationText(turns []domain.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, string(t.Role)+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

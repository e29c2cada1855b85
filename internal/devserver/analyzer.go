package devserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cheongchun/chatcore/internal/domain"
	"github.com/cheongchun/chatcore/internal/summary"
)

// ErrEmptyConversation is returned for requests without any transcript.
var ErrEmptyConversation = errors.New("devserver: conversation text is empty")

type category struct {
	topic    string
	keywords []string
}

var categories = []category{
	{"건강", []string{
		"건강", "혈압", "당뇨", "콜레스테롤", "운동", "다이어트", "약물", "병원", "의사",
		"검진", "아픈", "통증", "두통", "허리", "무릎", "관절", "소화", "식이요법",
		"영양", "비타민", "수면", "잠", "피로", "스트레스", "우울", "불안",
	}},
	{"가족", []string{
		"가족", "자녀", "손자", "손녀", "배우자", "남편", "아내", "딸", "아들",
		"며느리", "사위", "친구", "이웃", "외로움", "그리움", "만남",
	}},
	{"취미", []string{
		"취미", "독서", "산책", "등산", "요리", "원예", "화초", "텃밭", "여행",
		"드라마", "영화", "음악", "노래", "춤", "바둑", "장기", "카드게임",
	}},
	{"기술", []string{
		"스마트폰", "컴퓨터", "인터넷", "카카오톡", "문자", "전화", "앱", "유튜브",
		"온라인", "배송", "온라인쇼핑", "인터넷뱅킹", "키오스크",
	}},
}

var concernKeywords = []string{"걱정", "불안", "외로운", "힘들다", "아프다", "우울", "스트레스"}

// Analyzer is an offline keyword summarizer with the same contract as the
// remote summarization service.
type Analyzer struct{}

var _ summary.Summarizer = Analyzer{}

// Summarize derives topics, health mentions, mood and stress from keywords in
// the user lines of the transcript.
func (Analyzer) Summarize(ctx context.Context, req domain.SummaryRequest) (*domain.SummaryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.ConversationText) == "" {
		return nil, ErrEmptyConversation
	}

	text := userLines(req.ConversationText)
	result := &domain.SummaryResult{
		MainTopics:     []string{},
		HealthMentions: []string{},
	}
	for _, c := range categories {
		matched := matchKeywords(text, c.keywords)
		if len(matched) == 0 {
			continue
		}
		result.MainTopics = append(result.MainTopics, c.topic)
		if c.topic == "건강" {
			result.HealthMentions = append(result.HealthMentions, matched...)
		}
	}
	if len(result.MainTopics) == 0 {
		result.MainTopics = append(result.MainTopics, "일반대화")
	}

	concerns := matchKeywords(text, concernKeywords)
	switch {
	case len(concerns) > 0:
		result.MoodAnalysis = "concerned"
	case strings.Contains(text, "좋") || strings.Contains(text, "행복"):
		result.MoodAnalysis = "positive"
	default:
		result.MoodAnalysis = domain.DefaultMood
	}
	result.StressLevel = min(3+2*len(concerns), domain.MaxStressLevel)

	result.ConversationSummary = fmt.Sprintf("%d개의 메시지로 AI와 %s에 대해 대화를 나누셨습니다.",
		req.TotalMessages, strings.Join(result.MainTopics, ", "))
	result.KeyInsights = []string{"AI 도우미와 유익한 시간을 보내셨습니다."}
	if len(concerns) > 0 {
		result.KeyInsights = append(result.KeyInsights, "걱정거리를 이야기하셨습니다: "+strings.Join(concerns, ", "))
	}
	result.AIRecommendations = []string{"규칙적인 대화를 통해 활기찬 하루를 만들어보세요."}
	if len(result.HealthMentions) > 0 {
		result.AIRecommendations = append(result.AIRecommendations, "정기적인 건강 검진을 받아보세요.")
	}
	return result, nil
}

// userLines keeps the content of "user: ..." lines.
func userLines(conversation string) string {
	var parts []string
	for _, line := range strings.Split(conversation, "\n") {
		if content, ok := strings.CutPrefix(line, string(domain.RoleUser)+": "); ok {
			parts = append(parts, content)
		}
	}
	if len(parts) == 0 {
		return conversation
	}
	return strings.Join(parts, " ")
}

func matchKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

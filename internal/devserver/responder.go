// Package devserver is a local stand-in for the chat, summary and persistence
// backends, used for development and end-to-end tests.
package devserver

import (
	"strings"

	"github.com/cheongchun/chatcore/internal/domain"
)

// DefaultChunkRunes is the size of one streamed chunk.
const DefaultChunkRunes = 8

// Responder produces the assistant's reply to a user message.
type Responder interface {
	Reply(message string, history []domain.HistoryEntry) string
}

type replyRule struct {
	keywords []string
	reply    string
}

// KeywordResponder answers with canned senior-friendly replies chosen by
// keyword.
type KeywordResponder struct {
	rules    []replyRule
	fallback string
}

// NewKeywordResponder returns the default rule set.
func NewKeywordResponder() *KeywordResponder {
	return &KeywordResponder{
		rules: []replyRule{
			{
				keywords: []string{"안녕", "반갑", "좋은"},
				reply:    "안녕하세요! 만나서 반갑습니다. 오늘 하루는 어떻게 보내고 계신가요? 😊",
			},
			{
				keywords: []string{"건강", "아프", "병원", "약", "혈압", "당뇨"},
				reply:    "건강에 관심이 많으시군요. 건강 관리는 정말 중요합니다. 정기적인 검진과 적절한 운동, 그리고 균형잡힌 식사가 도움이 될 것 같아요. 혹시 구체적으로 궁금한 점이 있으시면 말씀해 주세요.",
			},
			{
				keywords: []string{"외롭", "심심", "가족", "손자", "자녀"},
				reply:    "가족과의 시간은 정말 소중하죠. 가족들과 연락을 자주 하시거나, 지역 커뮤니티 활동에 참여해보시는 것도 좋을 것 같아요.",
			},
			{
				keywords: []string{"요리", "음식", "맛있", "레시피"},
				reply:    "요리 이야기를 좋아하시는군요! 어떤 음식을 즐겨 드시는지 알려주시면 간단한 레시피나 요리 팁을 알려드릴 수 있어요.",
			},
			{
				keywords: []string{"운동", "산책", "걷기", "체조"},
				reply:    "운동은 건강 유지에 가장 좋은 방법 중 하나입니다! 가벼운 산책이나 실버 체조가 특히 좋아요. 무리하지 마시고 꾸준히 하시는 것이 중요합니다.",
			},
		},
		fallback: "말씀해 주신 내용을 잘 들었습니다. 더 자세히 이야기해 주시면 더 도움이 되는 답변을 드릴 수 있을 것 같아요. 🤗",
	}
}

// Reply returns the first rule matching message, or the fallback.
func (k *KeywordResponder) Reply(message string, _ []domain.HistoryEntry) string {
	lower := strings.ToLower(message)
	for _, rule := range k.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.reply
			}
		}
	}
	return k.fallback
}

// Chunks splits text into pieces of at most size runes.
func Chunks(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkRunes
	}
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

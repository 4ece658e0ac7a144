package conversation

import (
	"strings"

	"eino_voice_shop/pkg"

	"github.com/cloudwego/eino/schema"
)

type ContextStrategy interface {
	BuildHistory(messages []pkg.ConversationMessage) []*schema.Message
	GetMaxTurns() int
}

// ====================== Chat ======================
// ChatHistoryStrategy keeps the last N user/assistant turns for the completion call
type ChatHistoryStrategy struct {
	maxTurns int
}

func NewChatHistoryStrategy(maxTurns int) *ChatHistoryStrategy {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &ChatHistoryStrategy{maxTurns: maxTurns}
}

func (s *ChatHistoryStrategy) GetMaxTurns() int {
	return s.maxTurns
}

// BuildHistory drops system and unknown roles, maps "model" to assistant,
// then keeps the tail.
func (s *ChatHistoryStrategy) BuildHistory(messages []pkg.ConversationMessage) []*schema.Message {
	converted := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "user":
			converted = append(converted, schema.UserMessage(msg.Content))
		case "assistant", "model":
			converted = append(converted, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return trimTail(converted, s.maxTurns)
}

// Helper function
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}

package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"eino_voice_shop/internal/core"
)

const emptyListNotice = "Your list is empty right now. "

// ListNode answers "show my list" with the current shopping list. The
// enumeration replaces any side-effect summary.
type ListNode struct{}

func NewListNode() *ListNode { return &ListNode{} }

func (l *ListNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	items := state.Memory.Lists.Shopping
	if len(items) == 0 {
		state.ResponsePrefix = emptyListNotice
	} else {
		state.ResponsePrefix = fmt.Sprintf("Here's what you have on your list: %s. ", strings.Join(items, ", "))
	}
	return core.NodeOutput{}, nil
}

func (l *ListNode) GetName() string { return core.NodeList }

func (l *ListNode) GetType() core.NodeType { return core.NodeTypeFormat }

var (
	boldMarker    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicMarker  = regexp.MustCompile(`\*(.*?)\*`)
	backtickSpan  = regexp.MustCompile("`(.*?)`")
	headingMarker = regexp.MustCompile(`#{1,6}\s`)
	newlines      = regexp.MustCompile(`\n+`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// SanitizeForSpeech strips markdown markers and collapses whitespace
func SanitizeForSpeech(text string) string {
	text = boldMarker.ReplaceAllString(text, "$1")
	text = italicMarker.ReplaceAllString(text, "$1")
	text = backtickSpan.ReplaceAllString(text, "$1")
	text = headingMarker.ReplaceAllString(text, "")
	text = newlines.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SpeechNode assembles the final, speech-safe response text
type SpeechNode struct{}

func NewSpeechNode() *SpeechNode { return &SpeechNode{} }

func (s *SpeechNode) Execute(ctx context.Context, state *core.TurnState) (core.NodeOutput, error) {
	state.ResponseText = SanitizeForSpeech(state.ResponsePrefix + state.Reply)
	return core.NodeOutput{Complete: true}, nil
}

func (s *SpeechNode) GetName() string { return core.NodeSpeech }

func (s *SpeechNode) GetType() core.NodeType { return core.NodeTypeFormat }

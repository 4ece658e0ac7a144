package llm

import (
	"strings"

	"eino_voice_shop/pkg"

	"github.com/bytedance/sonic"
)

const DefaultPersona = "You are Deli Bot created by Deliverit, dont say google that can help with shopping."

const noMemory = "No stored memory yet."

// DefaultGuidelines describe the shopping capabilities and conversational tone
const DefaultGuidelines = `SHOPPING CAPABILITIES:
You have access to product search and cart management functions. When users want to:
- Search for products: Use product search functionality
- Add items to cart: Parse product names as whole phrases, search for each, confirm with user, then add to cart with quantity 1
- Clear cart: Call the clear cart API to remove all items
- Manage shopping lists: Keep track in memory

Guidelines for natural conversation:
- Keep responses conversational, engaging, and concise (1-3 sentences typically)
- Build on previous topics naturally
- Remember and reference earlier parts of the conversation
- Don't explicitly announce that you're updating memory unless directly asked
- Ask follow-up questions to keep conversation flowing
- Use contractions and natural speech patterns`

// BuildSystemPrompt joins persona, the serialized memory snapshot and the
// guidelines. Empty persona or guidelines fall back to the defaults.
func BuildSystemPrompt(persona string, mem pkg.Memory, guidelines string) string {
	if strings.TrimSpace(persona) == "" {
		persona = DefaultPersona
	}
	if strings.TrimSpace(guidelines) == "" {
		guidelines = DefaultGuidelines
	}

	snapshot := noMemory
	if !mem.IsEmpty() {
		shown := mem.Clone()
		if shown.CustomerToken != "" {
			shown.CustomerToken = "(provided)"
		}
		if data, err := sonic.ConfigStd.MarshalIndent(shown, "", "  "); err == nil {
			snapshot = string(data)
		}
	}

	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\nCurrent conversation context and memory:\n")
	b.WriteString(snapshot)
	b.WriteString("\n\n")
	b.WriteString(guidelines)
	return b.String()
}

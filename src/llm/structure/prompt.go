package structure

import (
	"fmt"
	"strings"

	"eino_voice_shop/pkg"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

func getSystemTemplate() string {
	return `You convert shopping assistant replies into strict JSON. Follow the instructions precisely.

-Output shape-
{"text": string, "num_products": integer, "products": [{"name": string, "price": number, "description": string, "image": string}]}

STRICT RULES:
1. Respond with valid JSON only, enclosed in a ` + "```json" + ` code block
2. For each product mentioned in the reply, add one object to "products" with exactly the fields name, price, description, image
3. When price, description or image are not given, use price 0, description "No description available", image "No image available"
4. Remove product IDs, tool code and other non-product details from "text"
5. "num_products" must equal the number of entries in "products"
6. Do not write anything outside the JSON object`
}

func getUserTemplate() string {
	return `Response to parse: "{{.raw_text}}"
{{if .known_products}}
Products already known for this turn:
{{.known_products}}
{{end}}`
}

// createStructureTemplate uses Go templates so the JSON braces in the
// instructions are not read as placeholders
func createStructureTemplate() prompt.ChatTemplate {
	messages := []schema.MessagesTemplate{
		schema.SystemMessage(getSystemTemplate()),
		schema.UserMessage(getUserTemplate()),
	}
	return prompt.FromMessages(schema.GoTemplate, messages...)
}

// templateVariables fills the user template
func templateVariables(rawText string, known []pkg.ProductMatch) map[string]any {
	return map[string]any{
		"raw_text":       rawText,
		"known_products": formatKnownProducts(known),
	}
}

func formatKnownProducts(known []pkg.ProductMatch) string {
	if len(known) == 0 {
		return ""
	}
	lines := make([]string, 0, len(known))
	for _, p := range known {
		line := "- " + p.Name
		if p.Price != nil {
			line += fmt.Sprintf(" (price %.2f)", *p.Price)
		}
		if p.Image != nil && *p.Image != "" {
			line += " image " + *p.Image
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

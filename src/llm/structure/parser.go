package structure

import (
	"errors"
	"math"
	"regexp"
	"strings"

	"eino_voice_shop/pkg"

	"github.com/bytedance/sonic"
)

var (
	// ErrMalformedStructure means no JSON object could be read from the reply
	ErrMalformedStructure = errors.New("structured reply is not valid JSON")
	// ErrInvalidStructure means the JSON does not have the required fields
	ErrInvalidStructure = errors.New("structured reply has an invalid shape")
)

const (
	defaultDescription = "No description available"
	defaultImage       = "No image available"
	failedText         = "Failed to parse response"
)

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	braceBlock  = regexp.MustCompile(`(?s)\{.*\}`)

	idAnnotation  = regexp.MustCompile(`\s*\(ID:[^)]*\)`)
	toolCodeBlock = regexp.MustCompile("(?s)```tool_code.*?```")
	toolCodeSpan  = regexp.MustCompile("`tool_code[^`]*`")
	extraSpaces   = regexp.MustCompile(`[ \t]{2,}`)
)

// Parse reads a StructuredReply from model output. Candidates are tried in
// order: a fenced code block, the outermost {...} span, the whole text.
func Parse(output string) (pkg.StructuredReply, error) {
	for _, candidate := range candidates(output) {
		var raw map[string]any
		if err := sonic.UnmarshalString(candidate, &raw); err == nil && raw != nil {
			return validate(raw)
		}
	}
	return pkg.StructuredReply{}, ErrMalformedStructure
}

func candidates(output string) []string {
	var out []string
	if m := fencedBlock.FindStringSubmatch(output); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if m := braceBlock.FindString(output); m != "" {
		out = append(out, m)
	}
	return append(out, strings.TrimSpace(output))
}

func validate(raw map[string]any) (pkg.StructuredReply, error) {
	text, ok := raw["text"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return pkg.StructuredReply{}, ErrInvalidStructure
	}
	num, ok := raw["num_products"].(float64)
	if !ok || num != math.Trunc(num) {
		return pkg.StructuredReply{}, ErrInvalidStructure
	}
	items, ok := raw["products"].([]any)
	if !ok {
		return pkg.StructuredReply{}, ErrInvalidStructure
	}

	reply := pkg.StructuredReply{
		Text:     text,
		Products: make([]pkg.StructuredProduct, 0, len(items)),
	}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		reply.Products = append(reply.Products, productFrom(entry))
	}
	reply.NumProducts = len(reply.Products)
	return reply, nil
}

func productFrom(entry map[string]any) pkg.StructuredProduct {
	p := pkg.StructuredProduct{
		Description: defaultDescription,
		Image:       defaultImage,
	}
	if name, ok := entry["name"].(string); ok {
		p.Name = name
	}
	if price, ok := entry["price"].(float64); ok {
		p.Price = price
	}
	if desc, ok := entry["description"].(string); ok && desc != "" {
		p.Description = desc
	}
	if image, ok := entry["image"].(string); ok && image != "" {
		p.Image = image
	}
	return p
}

// Fallback is the reply used when structuring fails: the raw text without
// ID annotations or tool markers, and no products
func Fallback(rawText string) pkg.StructuredReply {
	text := StripAnnotations(rawText)
	if text == "" {
		text = failedText
	}
	return pkg.StructuredReply{Text: text, NumProducts: 0, Products: []pkg.StructuredProduct{}}
}

// StripAnnotations removes "(ID: ...)" notes and tool_code markers
func StripAnnotations(text string) string {
	text = toolCodeBlock.ReplaceAllString(text, "")
	text = toolCodeSpan.ReplaceAllString(text, "")
	text = idAnnotation.ReplaceAllString(text, "")
	text = extraSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

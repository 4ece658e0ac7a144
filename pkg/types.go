package pkg

import (
	"strings"
	"time"
)

// Core types shared by the turn pipeline, the transports and the stores.

// ConversationMessage represents a message in conversation history
type ConversationMessage struct {
	Role    string `json:"role"` // user, assistant, model, system
	Content string `json:"content"`
}

// Utterance is one finalized user input event
type Utterance struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Location is a geo point supplied by the user
type Location struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Lists holds user-maintained lists
type Lists struct {
	Shopping []string `json:"shopping"`
}

// Preferences holds what the user said they like or dislike
type Preferences struct {
	Interests []string `json:"interests"`
}

// Memory is the client-owned snapshot carried across turns.
// It is passed by value; use Clone before mutating shared slices.
type Memory struct {
	Lists         Lists          `json:"lists"`
	Preferences   Preferences    `json:"preferences"`
	Context       map[string]any `json:"context"`
	Location      *Location      `json:"location,omitempty"`
	CustomerToken string         `json:"customerToken,omitempty"`
}

// Clone returns a deep copy of the memory
func (m Memory) Clone() Memory {
	out := Memory{
		Lists:         Lists{Shopping: cloneStrings(m.Lists.Shopping)},
		Preferences:   Preferences{Interests: cloneStrings(m.Preferences.Interests)},
		CustomerToken: m.CustomerToken,
	}
	if m.Context != nil {
		out.Context = make(map[string]any, len(m.Context))
		for k, v := range m.Context {
			out.Context[k] = v
		}
	}
	if m.Location != nil {
		loc := *m.Location
		out.Location = &loc
	}
	return out
}

// IsEmpty reports whether nothing has been remembered yet
func (m Memory) IsEmpty() bool {
	return len(m.Lists.Shopping) == 0 &&
		len(m.Preferences.Interests) == 0 &&
		len(m.Context) == 0 &&
		m.Location == nil &&
		m.CustomerToken == ""
}

// HasShoppingItem reports whether item is on the shopping list, ignoring case
func (m Memory) HasShoppingItem(item string) bool {
	for _, existing := range m.Lists.Shopping {
		if strings.EqualFold(existing, item) {
			return true
		}
	}
	return false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// ProductMatch is a normalized view over a backend product record
type ProductMatch struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
	Image *string  `json:"image"`
}

// IntentKind enumerates the closed set of recognized intents
type IntentKind string

const (
	IntentNone      IntentKind = "none"
	IntentSearch    IntentKind = "search"
	IntentAddToCart IntentKind = "add_to_cart"
	IntentClearCart IntentKind = "clear_cart"
)

// Intent is the classified purpose of an utterance.
// Query is set for search, Phrases for add-to-cart.
type Intent struct {
	Kind    IntentKind `json:"kind"`
	Query   string     `json:"query,omitempty"`
	Phrases []string   `json:"phrases,omitempty"`
	// Raw is the captured argument before phrase splitting
	Raw string `json:"raw,omitempty"`
}

// CartOutcome is what the cart backend answered for one add
type CartOutcome struct {
	OK      bool           `json:"ok"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// CartResult pairs an attempted product with the backend outcome
type CartResult struct {
	Name      string      `json:"name"`
	ProductID string      `json:"productId"`
	Result    CartOutcome `json:"result"`
}

// TurnInput is everything one call to RunTurn needs
type TurnInput struct {
	SessionID    string                `json:"sessionId"`
	Utterance    string                `json:"utterance"`
	History      []ConversationMessage `json:"history"`
	Memory       Memory                `json:"memory"`
	SystemPrompt string                `json:"systemPrompt"`
}

// TurnResult is produced once per turn and never mutated afterwards
type TurnResult struct {
	TurnID               string         `json:"turnId"`
	ResponseText         string         `json:"responseText"`
	Success              bool           `json:"success"`
	Memory               Memory         `json:"memory"`
	Intent               IntentKind     `json:"intent"`
	ProductSearchResults []ProductMatch `json:"productSearchResults"`
	CartResults          []CartResult   `json:"cartResults"`
	FollowUp             *string        `json:"followUp"`
	// Warnings lists stage failures that degraded the turn without failing it
	Warnings []string `json:"warnings,omitempty"`
}

// StructuredProduct is one product entry of a structured reply
type StructuredProduct struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
}

// StructuredReply is the constrained shape used for rendering and speech.
// NumProducts always equals len(Products).
type StructuredReply struct {
	Text        string              `json:"text"`
	NumProducts int                 `json:"num_products"`
	Products    []StructuredProduct `json:"products"`
}

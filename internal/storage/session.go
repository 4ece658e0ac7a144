package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eino_voice_shop/src/conversation"
)

// MemorySessionRepository is an in-process conversation.Repository for
// development and the console chat. Sessions expire ttl after their last write.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*conversation.SessionState
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository(ttl time.Duration) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*conversation.SessionState),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Load retrieves a session, or a fresh one when missing or expired
func (m *MemorySessionRepository) Load(ctx context.Context, sessionID string) (*conversation.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return conversation.NewSessionState(sessionID), nil
	}

	if m.ttl > 0 && m.now().Sub(session.UpdatedAt) > m.ttl {
		delete(m.sessions, sessionID)
		return conversation.NewSessionState(sessionID), nil
	}

	return copyState(session), nil
}

// Save stores a copy of the session
func (m *MemorySessionRepository) Save(ctx context.Context, state *conversation.SessionState) error {
	if state.SessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	now := m.now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now

	m.mu.Lock()
	m.sessions[state.SessionID] = copyState(state)
	m.mu.Unlock()
	return nil
}

// Delete removes a session
func (m *MemorySessionRepository) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored sessions, expired ones included
func (m *MemorySessionRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func copyState(s *conversation.SessionState) *conversation.SessionState {
	out := *s
	out.Messages = append(s.Messages[:0:0], s.Messages...)
	out.Memory = s.Memory.Clone()
	return &out
}

// SessionStats provides statistics about a session
type SessionStats struct {
	SessionID       string `json:"session_id"`
	MessageCount    int    `json:"message_count"`
	ShoppingItems   int    `json:"shopping_items"`
	HasLocation     bool   `json:"has_location"`
	HasToken        bool   `json:"has_token"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
	DurationMinutes int64  `json:"duration_minutes"`
}

// GetSessionStats returns statistics for a session
func GetSessionStats(session *conversation.SessionState) SessionStats {
	stats := SessionStats{
		SessionID:     session.SessionID,
		MessageCount:  len(session.Messages),
		ShoppingItems: len(session.Memory.Lists.Shopping),
		HasLocation:   session.Memory.Location != nil,
		HasToken:      session.Memory.CustomerToken != "",
		CreatedAt:     session.CreatedAt.Unix(),
		UpdatedAt:     session.UpdatedAt.Unix(),
	}

	if !session.CreatedAt.IsZero() && !session.UpdatedAt.IsZero() {
		stats.DurationMinutes = int64(session.UpdatedAt.Sub(session.CreatedAt).Minutes())
	}

	return stats
}

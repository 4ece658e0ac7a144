package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/storage"
)

// SessionState is what survives between turns for one session
type SessionState struct {
	SessionID string                    `json:"session_id"`
	Messages  []pkg.ConversationMessage `json:"messages"`
	Memory    pkg.Memory                `json:"memory"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// NewSessionState returns an empty state for sessionID
func NewSessionState(sessionID string) *SessionState {
	now := time.Now()
	return &SessionState{
		SessionID: sessionID,
		Messages:  []pkg.ConversationMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Repository persists session state. Load returns a fresh state when the
// session is unknown or expired.
type Repository interface {
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	Save(ctx context.Context, state *SessionState) error
	Delete(ctx context.Context, sessionID string) error
}

// RedisRepository keeps each session under conversation:<id> with a sliding TTL
type RedisRepository struct {
	store *storage.RedisStorage
	ttl   time.Duration
}

const conversationPrefix = "conversation:"

func NewRedisRepository(store *storage.RedisStorage, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		store: store.WithPrefix(conversationPrefix),
		ttl:   ttl,
	}
}

func (r *RedisRepository) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	var state SessionState
	err := r.store.GetAndTouch(ctx, sessionID, r.ttl, &state)
	if errors.Is(err, storage.ErrNotFound) {
		return NewSessionState(sessionID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return &state, nil
}

func (r *RedisRepository) Save(ctx context.Context, state *SessionState) error {
	if state.SessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	state.UpdatedAt = time.Now()
	return r.store.Set(ctx, state.SessionID, state, r.ttl)
}

func (r *RedisRepository) Delete(ctx context.Context, sessionID string) error {
	return r.store.Delete(ctx, sessionID)
}

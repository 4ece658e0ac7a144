package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"
	redisstore "eino_voice_shop/src/storage"

	"github.com/google/uuid"
)

// TurnGate admits at most one in-flight turn per session
type TurnGate interface {
	// TryAcquire returns pkg.ErrTurnInFlight when the session is busy.
	// The returned release func is safe to call more than once.
	TryAcquire(ctx context.Context, sessionID string) (release func(), err error)
}

// LocalTurnGate is a mutex-guarded set of busy sessions
type LocalTurnGate struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewLocalTurnGate() *LocalTurnGate {
	return &LocalTurnGate{busy: make(map[string]struct{})}
}

func (g *LocalTurnGate) TryAcquire(ctx context.Context, sessionID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, taken := g.busy[sessionID]; taken {
		return nil, pkg.ErrTurnInFlight
	}
	g.busy[sessionID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.busy, sessionID)
			g.mu.Unlock()
		})
	}, nil
}

// RedisTurnGate shares the gate across server replicas. The lock expires
// after ttl so a crashed holder cannot wedge a session.
type RedisTurnGate struct {
	store *redisstore.RedisStorage
	ttl   time.Duration
}

const turnLockPrefix = "turnlock:"

func NewRedisTurnGate(store *redisstore.RedisStorage, ttl time.Duration) *RedisTurnGate {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisTurnGate{store: store.WithPrefix(turnLockPrefix), ttl: ttl}
}

func (g *RedisTurnGate) TryAcquire(ctx context.Context, sessionID string) (func(), error) {
	owner := uuid.NewString()
	ok, err := g.store.AcquireLock(ctx, sessionID, owner, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire turn lock: %w", err)
	}
	if !ok {
		return nil, pkg.ErrTurnInFlight
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// the turn's ctx may already be cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := g.store.ReleaseLock(releaseCtx, sessionID, owner); err != nil {
				logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to release turn lock")
			}
		})
	}, nil
}

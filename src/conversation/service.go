package conversation

import (
	"context"

	"eino_voice_shop/pkg"
)

// maxStoredMessages bounds what a session keeps; the completion call only
// ever sees the strategy's tail of it.
const maxStoredMessages = 200

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Load returns the stored state for sessionID, empty when unknown
func (s *Service) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	return s.repo.Load(ctx, sessionID)
}

// RecordTurn appends the exchange and stores the memory the turn returned
func (s *Service) RecordTurn(ctx context.Context, sessionID, utterance string, result *pkg.TurnResult) error {
	state, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	state.Messages = append(state.Messages,
		pkg.ConversationMessage{Role: "user", Content: utterance},
		pkg.ConversationMessage{Role: "assistant", Content: result.ResponseText},
	)
	if len(state.Messages) > maxStoredMessages {
		state.Messages = state.Messages[len(state.Messages)-maxStoredMessages:]
	}
	if result.Success {
		state.Memory = result.Memory
	}

	return s.repo.Save(ctx, state)
}

// Reset is the explicit "clear conversation" action: memory and history are gone
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"eino_voice_shop/internal/metrics"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"

	"github.com/google/uuid"
)

const (
	followUpCart    = "Anything else you want to add to your cart?"
	followUpCleared = "Your cart is cleared! Want to add something new?"
)

// TurnGate admits at most one in-flight turn per session
type TurnGate interface {
	TryAcquire(ctx context.Context, sessionID string) (release func(), err error)
}

// Controller runs one conversational turn through the node graph
type Controller struct {
	processor GraphProcessor
	gate      TurnGate
	newID     func() string
}

// ControllerOption customizes a Controller
type ControllerOption func(*Controller)

// WithTurnGate enables per-session mutual exclusion
func WithTurnGate(gate TurnGate) ControllerOption {
	return func(c *Controller) { c.gate = gate }
}

func NewController(processor GraphProcessor, opts ...ControllerOption) *Controller {
	c := &Controller{
		processor: processor,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunTurn never returns a raw error to the response surface: failures become
// a TurnResult with Success false and a taxonomy message. The returned error
// is for the transport layer to pick a status.
func (c *Controller) RunTurn(ctx context.Context, input pkg.TurnInput) (result *pkg.TurnResult, err error) {
	start := time.Now()
	turnID := c.newID()
	log := logger.Component("controller").With().
		Str("session_id", input.SessionID).
		Str("turn_id", turnID).
		Logger()

	if strings.TrimSpace(input.Utterance) == "" {
		metrics.TurnsTotal.WithLabelValues(string(pkg.IntentNone), "rejected").Inc()
		return failedResult(turnID, input.Memory, pkg.ErrEmptyInput), pkg.ErrEmptyInput
	}

	if c.gate != nil && input.SessionID != "" {
		release, gateErr := c.gate.TryAcquire(ctx, input.SessionID)
		if gateErr != nil {
			log.Warn().Err(gateErr).Msg("Turn rejected")
			metrics.TurnsTotal.WithLabelValues(string(pkg.IntentNone), "rejected").Inc()
			return failedResult(turnID, input.Memory, gateErr), gateErr
		}
		defer release()
	}

	state := NewTurnState(turnID, input)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Turn panicked")
			err = fmt.Errorf("turn panicked: %v", r)
			result = failedResult(turnID, input.Memory, err)
			observeTurn(state.Intent.Kind, false, start)
		}
	}()

	log.Info().Int("utterance_length", len(input.Utterance)).Msg("Turn started")

	if _, runErr := c.processor.Execute(ctx, state); runErr != nil {
		log.Error().Err(runErr).Msg("Turn failed")
		observeTurn(state.Intent.Kind, false, start)
		return failedResult(turnID, input.Memory, runErr), runErr
	}

	result = &pkg.TurnResult{
		TurnID:               turnID,
		ResponseText:         state.ResponseText,
		Success:              true,
		Memory:               state.Memory,
		Intent:               state.Intent.Kind,
		ProductSearchResults: state.ProductSearchResults,
		CartResults:          state.CartResults,
		FollowUp:             followUp(state),
		Warnings:             state.Warnings,
	}
	if result.CartResults == nil {
		result.CartResults = []pkg.CartResult{}
	}

	observeTurn(state.Intent.Kind, true, start)
	log.Info().
		Str("intent", string(state.Intent.Kind)).
		Int("warnings", len(state.Warnings)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("Turn completed")

	return result, nil
}

func followUp(state *TurnState) *string {
	var s string
	switch {
	case len(state.CartResults) > 0:
		s = followUpCart
	case state.CartCleared:
		s = followUpCleared
	default:
		return nil
	}
	return &s
}

// failedResult keeps the caller's memory untouched
func failedResult(turnID string, mem pkg.Memory, err error) *pkg.TurnResult {
	return &pkg.TurnResult{
		TurnID:       turnID,
		ResponseText: pkg.UserMessage(err),
		Success:      false,
		Memory:       mem,
		Intent:       pkg.IntentNone,
		CartResults:  []pkg.CartResult{},
	}
}

func observeTurn(kind pkg.IntentKind, ok bool, start time.Time) {
	status := "success"
	if !ok {
		status = "failure"
	}
	if kind == "" {
		kind = pkg.IntentNone
	}
	metrics.TurnsTotal.WithLabelValues(string(kind), status).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
}

// IsRejection reports errors that mean the turn never started
func IsRejection(err error) bool {
	return errors.Is(err, pkg.ErrEmptyInput) || errors.Is(err, pkg.ErrTurnInFlight)
}

package pkg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrEmptyInput is returned when a turn carries no utterance
var ErrEmptyInput = errors.New("utterance is empty")

// ErrTurnInFlight is returned when a session already has a turn running
var ErrTurnInFlight = errors.New("a turn is already in progress for this session")

// ErrorKind classifies collaborator failures for the user-facing message
type ErrorKind string

const (
	KindAuth    ErrorKind = "auth"
	KindQuota   ErrorKind = "quota"
	KindNetwork ErrorKind = "network"
	KindUnknown ErrorKind = "unknown"
)

// CollaboratorUnavailableError means a collaborator cannot be used at all,
// typically missing credentials or configuration. It fails the turn.
type CollaboratorUnavailableError struct {
	Collaborator string
	Reason       string
}

func (e *CollaboratorUnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %s", e.Collaborator, e.Reason)
}

// CollaboratorCallError wraps one failed call to a collaborator
type CollaboratorCallError struct {
	Collaborator string
	Op           string
	Kind         ErrorKind
	Err          error
}

func (e *CollaboratorCallError) Error() string {
	return fmt.Sprintf("%s %s failed (%s): %v", e.Collaborator, e.Op, e.Kind, e.Err)
}

func (e *CollaboratorCallError) Unwrap() error { return e.Err }

// NewCallError wraps err and classifies it
func NewCallError(collaborator, op string, err error) *CollaboratorCallError {
	return &CollaboratorCallError{Collaborator: collaborator, Op: op, Kind: Classify(err), Err: err}
}

// Classify maps an error onto the failure taxonomy
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var unavailable *CollaboratorUnavailableError
	if errors.As(err, &unavailable) {
		return KindAuth
	}
	var call *CollaboratorCallError
	if errors.As(err, &call) && call.Kind != "" && call.Kind != KindUnknown {
		return call.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"), strings.Contains(msg, "unauthorized"), strings.Contains(msg, "401"):
		return KindAuth
	case strings.Contains(msg, "quota"), strings.Contains(msg, "limit"), strings.Contains(msg, "429"):
		return KindQuota
	case strings.Contains(msg, "network"), strings.Contains(msg, "fetch"),
		strings.Contains(msg, "connection"), strings.Contains(msg, "timeout"):
		return KindNetwork
	}
	return KindUnknown
}

// User-visible failure sentences
const (
	MessageAuth    = "There seems to be an authentication issue. Please check the API configuration."
	MessageQuota   = "I've reached my usage limit for now. Please try again in a moment."
	MessageNetwork = "I'm having network connectivity issues. Please try again."
	MessageDefault = "I apologize, but I'm having trouble connecting right now."
	MessageEmpty   = "No message provided"
	MessageBusy    = "I'm still working on your last request. One moment please."
)

// UserMessage never exposes the raw error, only a sentence from the taxonomy
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptyInput):
		return MessageEmpty
	case errors.Is(err, ErrTurnInFlight):
		return MessageBusy
	}

	switch Classify(err) {
	case KindAuth:
		return MessageAuth
	case KindQuota:
		return MessageQuota
	case KindNetwork:
		return MessageNetwork
	}
	return MessageDefault
}

// PartialCommerceFailure lists add-to-cart phrases that failed while others
// were added. It is reported inline and as a warning; the turn still succeeds.
type PartialCommerceFailure struct {
	Failed []string
}

func (e *PartialCommerceFailure) Error() string {
	return fmt.Sprintf("some items could not be added: %s", strings.Join(e.Failed, ", "))
}

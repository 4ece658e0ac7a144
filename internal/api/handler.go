// Package api exposes the assistant over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"eino_voice_shop/internal/metrics"
	"eino_voice_shop/internal/storage"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/conversation"
	"eino_voice_shop/src/logger"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TurnController runs one conversational turn
type TurnController interface {
	RunTurn(ctx context.Context, input pkg.TurnInput) (*pkg.TurnResult, error)
}

// Structurer turns free-form reply text into a StructuredReply. The reply is
// always usable; a non-nil error means the fallback was used.
type Structurer interface {
	Structure(ctx context.Context, rawText string, known ...pkg.ProductMatch) (pkg.StructuredReply, error)
}

// Deps are the collaborators behind the HTTP surface. Sessions, Journal and
// HealthCheck are optional.
type Deps struct {
	Controller  TurnController
	Structurer  Structurer
	Sessions    *conversation.Service
	Journal     storage.Journal
	HealthCheck func(ctx context.Context) error

	// JournalRetention is the age past which journal entries are pruned; 0 disables pruning
	JournalRetention time.Duration
}

// Handler serves the REST endpoints
type Handler struct {
	deps Deps
}

func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

type chatRequest struct {
	Message             string                    `json:"message"`
	SystemInstruction   string                    `json:"systemInstruction"`
	ConversationHistory []pkg.ConversationMessage `json:"conversationHistory"`
	Memory              *pkg.Memory               `json:"memory"`
	SessionID           string                    `json:"sessionId"`
}

type conversationFlow struct {
	ShouldContinueListening bool    `json:"shouldContinueListening"`
	SuggestedFollowUp       *string `json:"suggestedFollowUp"`
}

type chatResponse struct {
	Response             string             `json:"response"`
	Text                 string             `json:"text"`
	Success              bool               `json:"success"`
	MemoryUpdate         pkg.Memory         `json:"memoryUpdate"`
	ProductSearchResults []pkg.ProductMatch `json:"productSearchResults"`
	CartResult           []pkg.CartResult   `json:"cartResult"`
	ConversationFlow     conversationFlow   `json:"conversationFlow"`
	SessionID            string             `json:"sessionId"`
	Warnings             []string           `json:"warnings,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
}

type structureRequest struct {
	Text string `json:"text"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

var responseToParse = regexp.MustCompile(`Response to parse: "([^"]*)"`)

// Chat handles POST /api/chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	log := logger.Component("api").With().Str("session_id", req.SessionID).Logger()

	input := pkg.TurnInput{
		SessionID:    req.SessionID,
		Utterance:    req.Message,
		History:      req.ConversationHistory,
		SystemPrompt: req.SystemInstruction,
	}
	if req.Memory != nil {
		input.Memory = *req.Memory
	}

	// stored state fills in whatever the client did not send
	if h.deps.Sessions != nil && (req.Memory == nil || len(req.ConversationHistory) == 0) {
		state, err := h.deps.Sessions.Load(ctx, req.SessionID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load session, continuing without it")
		} else {
			if req.Memory == nil {
				input.Memory = state.Memory
			}
			if len(req.ConversationHistory) == 0 {
				input.History = state.Messages
			}
		}
	}

	result, err := h.deps.Controller.RunTurn(ctx, input)
	switch {
	case errors.Is(err, pkg.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, pkg.UserMessage(err))
		return
	case errors.Is(err, pkg.ErrTurnInFlight):
		writeError(w, http.StatusConflict, pkg.UserMessage(err))
		return
	case result == nil:
		writeError(w, http.StatusInternalServerError, pkg.UserMessage(err))
		return
	}

	h.record(ctx, req.SessionID, req.Message, result)

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, newChatResponse(req.SessionID, result))
}

func (h *Handler) record(ctx context.Context, sessionID, utterance string, result *pkg.TurnResult) {
	if h.deps.Sessions != nil {
		if err := h.deps.Sessions.RecordTurn(ctx, sessionID, utterance, result); err != nil {
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to save session")
		}
	}
	if h.deps.Journal != nil {
		if err := h.deps.Journal.SaveEntry(storage.NewTurnRecord(sessionID, utterance, result)); err != nil {
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to write turn journal")
			return
		}
		if h.deps.JournalRetention > 0 {
			if err := h.deps.Journal.CleanupOldEntries(sessionID, h.deps.JournalRetention); err != nil {
				logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to prune turn journal")
			}
		}
	}
}

func newChatResponse(sessionID string, result *pkg.TurnResult) chatResponse {
	products := result.ProductSearchResults
	if products == nil {
		products = []pkg.ProductMatch{}
	}
	return chatResponse{
		Response:             result.ResponseText,
		Text:                 result.ResponseText,
		Success:              result.Success,
		MemoryUpdate:         result.Memory,
		ProductSearchResults: products,
		CartResult:           result.CartResults,
		ConversationFlow: conversationFlow{
			ShouldContinueListening: true,
			SuggestedFollowUp:       result.FollowUp,
		},
		SessionID: sessionID,
		Warnings:  result.Warnings,
	}
}

// Structure handles POST /api/structure
func (h *Handler) Structure(w http.ResponseWriter, r *http.Request) {
	var req structureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.structure(w, r, req.Text)
}

// StructurePrompt handles POST /api/chat-gpt, which receives the whole
// structuring prompt and extracts the raw reply from it
func (h *Handler) StructurePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw := req.Prompt
	if m := responseToParse.FindStringSubmatch(req.Prompt); m != nil {
		raw = m[1]
	}
	h.structure(w, r, raw)
}

func (h *Handler) structure(w http.ResponseWriter, r *http.Request, raw string) {
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	reply, err := h.deps.Structurer.Structure(r.Context(), raw)
	if err != nil {
		metrics.StructureFallbacksTotal.Inc()
		logger.Warn().Err(err).Msg("Structured reply used fallback")
		writeJSON(w, http.StatusInternalServerError, reply)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type sessionResponse struct {
	Session *conversation.SessionState `json:"session"`
	Stats   storage.SessionStats       `json:"stats"`
	Journal *storage.JournalStats      `json:"journal,omitempty"`
}

// GetSession handles GET /api/session/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sessions == nil {
		writeError(w, http.StatusNotFound, "session storage is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	state, err := h.deps.Sessions.Load(r.Context(), id)
	if err != nil {
		logger.Error().Err(err).Str("session_id", id).Msg("Failed to load session")
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	resp := sessionResponse{Session: state, Stats: storage.GetSessionStats(state)}
	if h.deps.Journal != nil {
		if stats, err := h.deps.Journal.GetStats(id); err == nil {
			resp.Journal = stats
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteSession handles DELETE /api/session/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if h.deps.Sessions == nil {
		writeError(w, http.StatusNotFound, "session storage is disabled")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.deps.Sessions.Reset(r.Context(), id); err != nil {
		logger.Error().Err(err).Str("session_id", id).Msg("Failed to reset session")
		writeError(w, http.StatusInternalServerError, "failed to reset session")
		return
	}
	logger.Info().Str("session_id", id).Msg("Conversation cleared")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessionId": id})
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.deps.HealthCheck != nil {
		if err := h.deps.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, dest any) error {
	return sonic.ConfigStd.NewDecoder(r.Body).Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigStd.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

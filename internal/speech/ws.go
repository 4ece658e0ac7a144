package speech

import (
	"context"
	"net/http"
	"sync"
	"time"

	"eino_voice_shop/internal/metrics"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/llm/structure"
	"eino_voice_shop/src/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client → server message types
const (
	MsgTranscript    = "transcript"
	MsgSpeechEnded   = "speech_ended"
	MsgAutoListening = "auto_listening"
	MsgStart         = "start"
	MsgStop          = "stop"
)

// Server → client message types
const (
	MsgCapture      = "capture"
	MsgSpeak        = "speak"
	MsgCancelSpeech = "cancel_speech"
	MsgState        = "state"
	MsgError        = "error"
)

// ClientMessage is anything the browser sends
type ClientMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
}

// ServerMessage is anything the server sends
type ServerMessage struct {
	Type    string          `json:"type"`
	Action  string          `json:"action,omitempty"`
	Text    string          `json:"text,omitempty"`
	Turn    *pkg.TurnResult `json:"turn,omitempty"`
	State   string          `json:"state,omitempty"`
	Message string          `json:"message,omitempty"`
}

// TurnController runs one conversational turn
type TurnController interface {
	RunTurn(ctx context.Context, input pkg.TurnInput) (*pkg.TurnResult, error)
}

// Structurer turns a reply into the text that is spoken. A non-nil error
// means the returned reply is the fallback.
type Structurer interface {
	Structure(ctx context.Context, rawText string, known ...pkg.ProductMatch) (pkg.StructuredReply, error)
}

const (
	sendBuffer = 32
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	maxMessage = 64 * 1024
	maxHistory = 200
)

// Handler upgrades /ws/voice connections and binds each one to a Machine
type Handler struct {
	controller TurnController
	structurer Structurer
	config     Config
	persona    string
	upgrader   websocket.Upgrader
}

// NewHandler builds the voice handler. structurer may be nil, in which case
// product annotations are stripped from replies before they are spoken.
func NewHandler(controller TurnController, structurer Structurer, config Config, persona string, checkOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		controller: controller,
		structurer: structurer,
		config:     config,
		persona:    persona,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	session := newVoiceSession(conn, h.controller, h.persona)
	session.structurer = h.structurer
	session.machine = NewMachine(
		remoteCapture{session},
		remoteSynth{session},
		session.runTurn,
		h.config,
		WithStateListener(func(s State) {
			session.send(ServerMessage{Type: MsgState, State: s.String()})
		}),
	)
	session.serve()
}

// voiceSession keeps one connection's memory and history
type voiceSession struct {
	id         string
	conn       *websocket.Conn
	controller TurnController
	structurer Structurer
	persona    string
	machine    *Machine
	outbox     chan ServerMessage
	log        zerolog.Logger

	mu      sync.Mutex
	memory  pkg.Memory
	history []pkg.ConversationMessage
}

func newVoiceSession(conn *websocket.Conn, controller TurnController, persona string) *voiceSession {
	id := uuid.NewString()
	return &voiceSession{
		id:         id,
		conn:       conn,
		controller: controller,
		persona:    persona,
		outbox:     make(chan ServerMessage, sendBuffer),
		log:        logger.Component("voice").With().Str("session_id", id).Logger(),
	}
}

func (s *voiceSession) serve() {
	s.log.Info().Msg("Voice session opened")
	done := make(chan struct{})
	go s.writeLoop(done)

	s.readLoop()

	s.machine.Close()
	close(done)
	s.conn.Close()
	s.log.Info().Msg("Voice session closed")
}

func (s *voiceSession) readLoop() {
	s.conn.SetReadLimit(maxMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Voice connection dropped")
			}
			return
		}
		s.handle(msg)
	}
}

func (s *voiceSession) handle(msg ClientMessage) {
	switch msg.Type {
	case MsgTranscript:
		if msg.Final {
			s.machine.Final(msg.Text)
		} else {
			s.machine.Interim(msg.Text)
		}
	case MsgSpeechEnded:
		s.machine.SpeechEnded()
	case MsgAutoListening:
		if err := s.machine.SetAutoListening(msg.Enabled); err != nil {
			s.send(ServerMessage{Type: MsgError, Message: err.Error()})
		}
	case MsgStart:
		if err := s.machine.StartListening(); err != nil {
			s.send(ServerMessage{Type: MsgError, Message: err.Error()})
		}
	case MsgStop:
		s.machine.Stop()
	default:
		s.send(ServerMessage{Type: MsgError, Message: "unknown message type: " + msg.Type})
	}
}

func (s *voiceSession) writeLoop(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.log.Warn().Err(err).Msg("Voice write failed")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// send never blocks; a full outbox means the client is not reading
func (s *voiceSession) send(msg ServerMessage) {
	select {
	case s.outbox <- msg:
	default:
		s.log.Warn().Str("type", msg.Type).Msg("Voice outbox full, dropping message")
	}
}

// runTurn feeds the utterance through the controller with this connection's
// memory and history, then stores what came back
func (s *voiceSession) runTurn(ctx context.Context, utterance string) (Reply, error) {
	s.mu.Lock()
	input := pkg.TurnInput{
		SessionID:    s.id,
		Utterance:    utterance,
		History:      append([]pkg.ConversationMessage(nil), s.history...),
		Memory:       s.memory.Clone(),
		SystemPrompt: s.persona,
	}
	s.mu.Unlock()

	result, err := s.controller.RunTurn(ctx, input)
	if result == nil {
		return Reply{}, err
	}

	s.mu.Lock()
	s.history = append(s.history,
		pkg.ConversationMessage{Role: "user", Content: utterance},
		pkg.ConversationMessage{Role: "assistant", Content: result.ResponseText},
	)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	if result.Success {
		s.memory = result.Memory
	}
	s.mu.Unlock()

	return Reply{Text: s.spokenText(ctx, result), Turn: result}, err
}

// spokenText is the reply without product IDs, prices or tool markers
func (s *voiceSession) spokenText(ctx context.Context, result *pkg.TurnResult) string {
	if s.structurer == nil {
		return structure.StripAnnotations(result.ResponseText)
	}
	reply, err := s.structurer.Structure(ctx, result.ResponseText, result.ProductSearchResults...)
	if err != nil {
		metrics.StructureFallbacksTotal.Inc()
		s.log.Warn().Err(err).Str("turn_id", result.TurnID).Msg("Spoken reply used fallback")
	}
	if reply.Text == "" {
		return structure.Fallback(result.ResponseText).Text
	}
	return reply.Text
}

type remoteCapture struct{ s *voiceSession }

func (c remoteCapture) Start() error {
	c.s.send(ServerMessage{Type: MsgCapture, Action: "start"})
	return nil
}

func (c remoteCapture) Stop() {
	c.s.send(ServerMessage{Type: MsgCapture, Action: "stop"})
}

type remoteSynth struct{ s *voiceSession }

func (t remoteSynth) Speak(reply Reply) error {
	t.s.send(ServerMessage{Type: MsgSpeak, Text: reply.Text, Turn: reply.Turn})
	return nil
}

func (t remoteSynth) Cancel() {
	t.s.send(ServerMessage{Type: MsgCancelSpeech})
}

package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"eino_voice_shop/internal/metrics"
	"eino_voice_shop/internal/similarity"
	"eino_voice_shop/pkg"
	"eino_voice_shop/src/logger"
)

// ErrBusy is returned when capture is requested while a turn is processing
var ErrBusy = errors.New("a turn is being processed")

// Capture controls the microphone and speech-to-text side.
// Implementations must not call back into the Machine synchronously.
type Capture interface {
	Start() error
	Stop()
}

// Reply is what gets spoken for one processed utterance
type Reply struct {
	Text string
	Turn *pkg.TurnResult
}

// Synthesizer controls text-to-speech playback. Playback completion is
// reported back through Machine.SpeechEnded.
type Synthesizer interface {
	Speak(reply Reply) error
	Cancel()
}

// TurnRunner processes one finalized utterance
type TurnRunner func(ctx context.Context, utterance string) (Reply, error)

// Config tunes the machine
type Config struct {
	SettleDelay        time.Duration
	DuplicateThreshold float64
}

// Machine is the turn-taking state machine for one voice session. Capture
// and synthesis are never active at the same time.
type Machine struct {
	mu      sync.Mutex
	state   State
	auto    bool
	interim string
	last    string
	// generation invalidates in-flight turns and settle timers on Stop
	generation uint64
	settle     *time.Timer

	capture Capture
	synth   Synthesizer
	run     TurnRunner
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	onState func(State)
	wg      sync.WaitGroup
}

// MachineOption customizes a Machine
type MachineOption func(*Machine)

// WithStateListener is called on every state change while the machine's
// lock is held; it must not block.
func WithStateListener(fn func(State)) MachineOption {
	return func(m *Machine) { m.onState = fn }
}

func NewMachine(capture Capture, synth Synthesizer, run TurnRunner, config Config, opts ...MachineOption) *Machine {
	if config.DuplicateThreshold <= 0 {
		config.DuplicateThreshold = similarity.DuplicateThreshold
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		capture: capture,
		synth:   synth,
		run:     run,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current phase
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AutoListening reports whether capture resumes after each reply
func (m *Machine) AutoListening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.auto
}

// InterimText returns the latest non-final transcript
func (m *Machine) InterimText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interim
}

// StartListening begins capture. Ongoing playback is cancelled first.
func (m *Machine) StartListening() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startListeningLocked()
}

func (m *Machine) startListeningLocked() error {
	switch m.state {
	case Listening:
		return nil
	case Processing:
		return ErrBusy
	case Speaking:
		m.synth.Cancel()
	}
	m.stopSettleLocked()

	if err := m.capture.Start(); err != nil {
		m.setStateLocked(Idle)
		return err
	}
	m.interim = ""
	m.setStateLocked(Listening)
	return nil
}

// Interim records a non-final transcript
func (m *Machine) Interim(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Listening {
		m.interim = text
	}
}

// Final handles a finalized transcript. It reports whether the utterance
// was accepted for processing; duplicates of the previous utterance and
// transcripts outside Listening are dropped.
func (m *Machine) Final(text string) bool {
	text = strings.TrimSpace(text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Listening || text == "" {
		return false
	}
	if similarity.IsDuplicate(m.last, text, m.config.DuplicateThreshold) {
		metrics.DuplicateUtterancesTotal.Inc()
		logger.Debug().Msg("Dropped duplicate transcript")
		return false
	}

	m.capture.Stop()
	m.last = text
	m.interim = ""
	m.setStateLocked(Processing)

	gen := m.generation
	m.wg.Add(1)
	go m.process(gen, text)
	return true
}

func (m *Machine) process(gen uint64, text string) {
	defer m.wg.Done()

	reply, err := m.run(m.ctx, text)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.generation || m.state != Processing {
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Voice turn failed")
		if reply.Text == "" {
			reply.Text = pkg.UserMessage(err)
		}
	}
	if strings.TrimSpace(reply.Text) == "" {
		m.finishLocked()
		return
	}

	if err := m.synth.Speak(reply); err != nil {
		logger.Warn().Err(err).Msg("Speech synthesis failed")
		m.finishLocked()
		return
	}
	m.setStateLocked(Speaking)
}

// SpeechEnded reports that playback finished
func (m *Machine) SpeechEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Speaking {
		m.finishLocked()
	}
}

// finishLocked returns to Idle and arms the settle timer in auto mode
func (m *Machine) finishLocked() {
	m.setStateLocked(Idle)
	if !m.auto {
		return
	}

	gen := m.generation
	m.stopSettleLocked()
	m.settle = time.AfterFunc(m.config.SettleDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.generation || !m.auto || m.state != Idle {
			return
		}
		if err := m.startListeningLocked(); err != nil {
			logger.Warn().Err(err).Msg("Failed to resume listening")
		}
	})
}

// SetAutoListening toggles the auto mode. Turning it off forces Idle;
// turning it on starts listening when idle.
func (m *Machine) SetAutoListening(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.auto = enabled
	if !enabled {
		m.forceIdleLocked()
		return nil
	}
	if m.state == Idle {
		return m.startListeningLocked()
	}
	return nil
}

// Stop forces Idle from any state, discarding interim text and any reply
// still being produced.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forceIdleLocked()
}

func (m *Machine) forceIdleLocked() {
	m.generation++
	m.stopSettleLocked()
	switch m.state {
	case Listening:
		m.capture.Stop()
	case Speaking:
		m.synth.Cancel()
	}
	m.interim = ""
	m.setStateLocked(Idle)
}

// Close stops the machine and waits for in-flight turns
func (m *Machine) Close() {
	m.Stop()
	m.cancel()
	m.wg.Wait()
}

func (m *Machine) stopSettleLocked() {
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
}

func (m *Machine) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.onState != nil {
		m.onState(s)
	}
}

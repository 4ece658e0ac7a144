package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eino_voice_shop/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder implements Capture and Synthesizer and tracks which is active
type recorder struct {
	mu        sync.Mutex
	capturing bool
	speaking  bool
	overlap   bool
	events    []string
	spoken    []string

	StartFunc func() error
	SpeakFunc func(Reply) error
}

func (r *recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "capture:start")
	if r.StartFunc != nil {
		if err := r.StartFunc(); err != nil {
			return err
		}
	}
	r.capturing = true
	r.overlap = r.overlap || r.speaking
	return nil
}

func (r *recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "capture:stop")
	r.capturing = false
}

func (r *recorder) Speak(reply Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "speak")
	if r.SpeakFunc != nil {
		if err := r.SpeakFunc(reply); err != nil {
			return err
		}
	}
	r.speaking = true
	r.spoken = append(r.spoken, reply.Text)
	r.overlap = r.overlap || r.capturing
	return nil
}

func (r *recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "speak:cancel")
	r.speaking = false
}

func (r *recorder) ended() {
	r.mu.Lock()
	r.speaking = false
	r.mu.Unlock()
}

func (r *recorder) snapshot() (events, spoken []string, overlap bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...), append([]string(nil), r.spoken...), r.overlap
}

func echo(ctx context.Context, utterance string) (Reply, error) {
	return Reply{Text: "you said " + utterance}, nil
}

func newTestMachine(run TurnRunner) (*Machine, *recorder) {
	rec := &recorder{}
	m := NewMachine(rec, rec, run, Config{SettleDelay: 10 * time.Millisecond})
	return m, rec
}

func TestMachineHappyPath(t *testing.T) {
	m, rec := newTestMachine(echo)
	defer m.Close()

	require.NoError(t, m.StartListening())
	assert.Equal(t, Listening, m.State())

	m.Interim("add mi")
	assert.Equal(t, "add mi", m.InterimText())

	assert.True(t, m.Final("add milk to cart"))
	assert.Eventually(t, func() bool { return m.State() == Speaking }, time.Second, 5*time.Millisecond)

	rec.ended()
	m.SpeechEnded()
	assert.Equal(t, Idle, m.State())

	events, spoken, overlap := rec.snapshot()
	assert.Equal(t, []string{"capture:start", "capture:stop", "speak"}, events)
	assert.Equal(t, []string{"you said add milk to cart"}, spoken)
	assert.False(t, overlap)
}

func TestMachineDropsDuplicatesAndOutOfStateTranscripts(t *testing.T) {
	m, _ := newTestMachine(echo)
	defer m.Close()

	assert.False(t, m.Final("hello"), "not listening yet")

	require.NoError(t, m.StartListening())
	require.True(t, m.Final("add milk to cart"))
	assert.Eventually(t, func() bool { return m.State() == Speaking }, time.Second, 5*time.Millisecond)
	m.SpeechEnded()

	require.NoError(t, m.StartListening())
	assert.False(t, m.Final("add milk to cart"))
	assert.False(t, m.Final("add milk to cart."))
	assert.Equal(t, Listening, m.State())
	assert.True(t, m.Final("search for bread"))
}

func TestMachineAutoListeningResumesAfterSettle(t *testing.T) {
	m, rec := newTestMachine(echo)
	defer m.Close()

	require.NoError(t, m.SetAutoListening(true))
	assert.Equal(t, Listening, m.State())

	require.True(t, m.Final("find apples products"))
	assert.Eventually(t, func() bool { return m.State() == Speaking }, time.Second, 5*time.Millisecond)

	rec.ended()
	m.SpeechEnded()
	assert.Equal(t, Idle, m.State())
	assert.Eventually(t, func() bool { return m.State() == Listening }, time.Second, 5*time.Millisecond)

	_, _, overlap := rec.snapshot()
	assert.False(t, overlap)
}

func TestMachineAutoListeningOffForcesIdle(t *testing.T) {
	release := make(chan struct{})
	slow := func(ctx context.Context, utterance string) (Reply, error) {
		<-release
		return Reply{Text: "late reply"}, nil
	}
	m, rec := newTestMachine(slow)

	require.NoError(t, m.SetAutoListening(true))
	m.Interim("partial")
	require.True(t, m.Final("search for tea"))
	assert.Equal(t, Processing, m.State())
	assert.ErrorIs(t, m.StartListening(), ErrBusy)

	require.NoError(t, m.SetAutoListening(false))
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, m.InterimText())

	close(release)
	m.Close()

	_, spoken, _ := rec.snapshot()
	assert.Empty(t, spoken, "reply from a cancelled turn must not be spoken")
	assert.Equal(t, Idle, m.State())
}

func TestMachineStartListeningCancelsSpeech(t *testing.T) {
	m, rec := newTestMachine(echo)
	defer m.Close()

	require.NoError(t, m.StartListening())
	require.True(t, m.Final("hello there"))
	assert.Eventually(t, func() bool { return m.State() == Speaking }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.StartListening())
	assert.Equal(t, Listening, m.State())

	events, _, overlap := rec.snapshot()
	assert.Equal(t, "speak:cancel", events[len(events)-2])
	assert.Equal(t, "capture:start", events[len(events)-1])
	assert.False(t, overlap)
}

func TestMachineStopFromListening(t *testing.T) {
	m, rec := newTestMachine(echo)
	defer m.Close()

	require.NoError(t, m.StartListening())
	m.Interim("half a sentence")
	m.Stop()

	assert.Equal(t, Idle, m.State())
	assert.Empty(t, m.InterimText())
	events, _, _ := rec.snapshot()
	assert.Equal(t, "capture:stop", events[len(events)-1])
}

func TestMachineTurnErrorSpeaksTaxonomyMessage(t *testing.T) {
	failing := func(ctx context.Context, utterance string) (Reply, error) {
		return Reply{}, &pkg.CollaboratorUnavailableError{Collaborator: "completion", Reason: "no key"}
	}
	m, rec := newTestMachine(failing)
	defer m.Close()

	require.NoError(t, m.StartListening())
	require.True(t, m.Final("hello"))
	assert.Eventually(t, func() bool { return m.State() == Speaking }, time.Second, 5*time.Millisecond)

	_, spoken, _ := rec.snapshot()
	assert.Equal(t, []string{pkg.MessageAuth}, spoken)
}

func TestMachineCaptureStartFailure(t *testing.T) {
	m, rec := newTestMachine(echo)
	defer m.Close()
	rec.StartFunc = func() error { return errors.New("microphone denied") }

	assert.Error(t, m.StartListening())
	assert.Equal(t, Idle, m.State())
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "listening", Listening.String())
	assert.Equal(t, "processing", Processing.String())
	assert.Equal(t, "speaking", Speaking.String())
	assert.Equal(t, "unknown", State(42).String())
}

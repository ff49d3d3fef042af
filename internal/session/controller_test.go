package session

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/oto/internal/audio"
	"github.com/rbright/oto/internal/fsm"
	"github.com/rbright/oto/internal/history"
	"github.com/rbright/oto/internal/hotkey"
	"github.com/rbright/oto/internal/ipc"
	"github.com/rbright/oto/internal/output"
	"github.com/rbright/oto/internal/transcribe"
	"github.com/stretchr/testify/require"
)

type stateChange struct {
	state  fsm.State
	status string
	at     time.Time
}

type recordingSink struct {
	states chan stateChange

	mu       sync.Mutex
	notifies []string
	errors   []string
	cues     []fsm.Effect
}

func newRecordingSink() *recordingSink {
	return &recordingSink{states: make(chan stateChange, 256)}
}

func (s *recordingSink) StateChanged(state fsm.State, status string) {
	s.states <- stateChange{state: state, status: status, at: time.Now()}
}

func (s *recordingSink) Level(float32) {}

func (s *recordingSink) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifies = append(s.notifies, message)
}

func (s *recordingSink) Error(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
}

func (s *recordingSink) Cue(effect fsm.Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cues = append(s.cues, effect)
}

func (s *recordingSink) Errors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.errors...)
}

func (s *recordingSink) Notifies() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notifies...)
}

func (s *recordingSink) Cues() []fsm.Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]fsm.Effect(nil), s.cues...)
}

// waitState drains state changes until one matches state.
func (s *recordingSink) waitState(t *testing.T, state fsm.State) stateChange {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case change := <-s.states:
			if change.state == state {
				return change
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", state)
			return stateChange{}
		}
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	active   bool
	starts   int
	audio    []byte
	duration time.Duration
	startErr error

	completed chan audio.Recording
	levels    chan float32
}

func newFakeRecorder(wav []byte) *fakeRecorder {
	return &fakeRecorder{
		audio:     wav,
		duration:  time.Second,
		completed: make(chan audio.Recording, 1),
		levels:    make(chan float32, 1),
	}
}

func (r *fakeRecorder) Start(context.Context, time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return nil
	}
	r.active = true
	r.starts++
	return r.startErr
}

func (r *fakeRecorder) Stop() { r.finish(false) }

func (r *fakeRecorder) finish(maxReached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	r.active = false
	r.completed <- audio.Recording{ID: "rec-1", Audio: r.audio, Duration: r.duration, MaxDurationReached: maxReached}
}

func (r *fakeRecorder) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

func (r *fakeRecorder) Completed() <-chan audio.Recording { return r.completed }
func (r *fakeRecorder) Levels() <-chan float32            { return r.levels }

type fakeTranscriber struct {
	calls  atomic.Int32
	gate   chan struct{}
	result transcribe.Result
	panic  bool
	seen   chan context.Context
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ []byte, _ transcribe.Options) transcribe.Result {
	f.calls.Add(1)
	if f.seen != nil {
		f.seen <- ctx
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return transcribe.Result{Kind: transcribe.KindUnknown, Err: "Request was cancelled"}
		}
	}
	if f.panic {
		panic("boom")
	}
	return f.result
}

type fakeInjector struct {
	mu     sync.Mutex
	texts  []string
	copied []string
	fail   string
}

func (f *fakeInjector) Inject(_ context.Context, text string, _ output.Options) output.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.fail != "" {
		return output.Result{Error: f.fail}
	}
	return output.Result{Success: true}
}

func (f *fakeInjector) CopyText(_ context.Context, text string) output.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copied = append(f.copied, text)
	return output.Result{Success: true, Message: "Copied to clipboard"}
}

type harness struct {
	ctrl     *Controller
	listener *hotkey.SignalListener
	sink     *recordingSink
}

func testSettings() Settings {
	return Settings{
		MaxRecording:  time.Minute,
		IdleDelay:     20 * time.Millisecond,
		SoundCues:     true,
		Transcription: transcribe.Options{APIKey: "sk-test"},
	}
}

func startHarness(t *testing.T, deps Deps) *harness {
	t.Helper()

	listener := hotkey.NewSignalListener(hotkey.Default, nil)
	require.NoError(t, listener.Start(context.Background()))
	sink := newRecordingSink()
	deps.Listener = listener
	deps.Sink = sink
	if deps.Settings == nil {
		deps.Settings = staticSettings(testSettings())
	}
	ctrl := New(deps)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("controller did not stop")
		}
	})

	h := &harness{ctrl: ctrl, listener: listener, sink: sink}
	h.sink.waitState(t, fsm.StateIdle)
	return h
}

func (h *harness) press(t *testing.T) {
	t.Helper()
	_, err := h.listener.Press()
	require.NoError(t, err)
}

func (h *harness) release(t *testing.T) {
	t.Helper()
	_, err := h.listener.Release()
	require.NoError(t, err)
}

func TestPressReleaseFloodingStartsOneSession(t *testing.T) {
	recorder := newFakeRecorder([]byte("RIFF-audio"))
	transcriber := &fakeTranscriber{gate: make(chan struct{}), result: transcribe.Result{Kind: transcribe.KindNone, Text: "hi"}}
	h := startHarness(t, Deps{Recorder: recorder, Transcriber: transcriber, Injector: &fakeInjector{}})

	h.press(t)
	h.sink.waitState(t, fsm.StateRecording)
	h.release(t)
	h.sink.waitState(t, fsm.StateProcessing)

	for i := 0; i < 10; i++ {
		h.press(t)
		h.release(t)
	}
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, fsm.StateProcessing, h.ctrl.State())
	require.Equal(t, 1, recorder.Starts())

	close(transcriber.gate)
	h.sink.waitState(t, fsm.StateDone)
	h.sink.waitState(t, fsm.StateIdle)
	require.Equal(t, int32(1), transcriber.calls.Load())
	require.Equal(t, []fsm.Effect{fsm.EffectCueStart, fsm.EffectCueStop}, h.sink.Cues())
}

func TestMissingAPIKeyStaysIdle(t *testing.T) {
	recorder := newFakeRecorder(nil)
	settings := testSettings()
	settings.Transcription.APIKey = " "
	h := startHarness(t, Deps{
		Recorder:    recorder,
		Transcriber: &fakeTranscriber{},
		Injector:    &fakeInjector{},
		Settings:    staticSettings(settings),
	})

	h.press(t)
	require.Eventually(t, func() bool { return len(h.sink.Errors()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"API Key is not configured. Please set it in Settings."}, h.sink.Errors())
	require.Equal(t, fsm.StateIdle, h.ctrl.State())
	require.Zero(t, recorder.Starts())
}

func TestEmptyAudioReturnsToIdleWithoutNetwork(t *testing.T) {
	recorder := newFakeRecorder(nil)
	transcriber := &fakeTranscriber{}
	h := startHarness(t, Deps{Recorder: recorder, Transcriber: transcriber, Injector: &fakeInjector{}})

	h.press(t)
	h.sink.waitState(t, fsm.StateRecording)
	h.release(t)
	h.sink.waitState(t, fsm.StateProcessing)
	idle := h.sink.waitState(t, fsm.StateIdle)
	require.Equal(t, StatusNoAudio, idle.status)

	require.Zero(t, transcriber.calls.Load())
	entries := h.ctrl.History().Entries()
	require.Len(t, entries, 1)
	require.False(t, entries[0].Success)
	require.Equal(t, "No audio recorded", entries[0].Error)
}

func TestOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		transcriber *fakeTranscriber
		injector    *fakeInjector
		status      string
		notify      []string
		errs        []string
		entry       history.Entry
	}{
		{
			name:        "success",
			transcriber: &fakeTranscriber{result: transcribe.Result{Kind: transcribe.KindNone, Text: "dictated"}},
			injector:    &fakeInjector{},
			status:      StatusDone,
			notify:      []string{"Text pasted successfully"},
			entry:       history.Entry{Text: "dictated", Success: true},
		},
		{
			name:        "paste failure",
			transcriber: &fakeTranscriber{result: transcribe.Result{Kind: transcribe.KindNone, Text: "dictated"}},
			injector:    &fakeInjector{fail: "Failed to inject text: clipboard unavailable"},
			status:      StatusPasteFailed,
			errs:        []string{"Failed to paste: Failed to inject text: clipboard unavailable"},
			entry:       history.Entry{Text: "dictated", Error: "Failed to inject text: clipboard unavailable"},
		},
		{
			name:        "transcription failure",
			transcriber: &fakeTranscriber{result: transcribe.Result{Kind: transcribe.KindRateLimit, Err: "slow down"}},
			injector:    &fakeInjector{},
			status:      StatusTranscribeFailed,
			errs:        []string{"Rate limit exceeded. Please wait and try again."},
			entry:       history.Entry{Error: "Rate limit exceeded. Please wait and try again."},
		},
		{
			name:        "empty text",
			transcriber: &fakeTranscriber{result: transcribe.Result{Kind: transcribe.KindNone}},
			injector:    &fakeInjector{},
			status:      StatusTranscribeFailed,
			errs:        []string{"No speech detected"},
			entry:       history.Entry{Error: "No speech detected"},
		},
		{
			name:        "panic",
			transcriber: &fakeTranscriber{panic: true},
			injector:    &fakeInjector{},
			status:      StatusError,
			errs:        []string{"Error: boom"},
			entry:       history.Entry{Error: "boom"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := newFakeRecorder([]byte("RIFF-audio"))
			h := startHarness(t, Deps{Recorder: recorder, Transcriber: tc.transcriber, Injector: tc.injector})

			h.press(t)
			h.sink.waitState(t, fsm.StateRecording)
			h.release(t)
			done := h.sink.waitState(t, fsm.StateDone)
			require.Equal(t, tc.status, done.status)

			idle := h.sink.waitState(t, fsm.StateIdle)
			require.Equal(t, StatusReady, idle.status)

			require.Equal(t, tc.notify, h.sink.Notifies())
			require.Equal(t, tc.errs, h.sink.Errors())

			entries := h.ctrl.History().Entries()
			require.Len(t, entries, 1)
			require.Equal(t, tc.entry.Text, entries[0].Text)
			require.Equal(t, tc.entry.Success, entries[0].Success)
			require.Equal(t, tc.entry.Error, entries[0].Error)
			require.Equal(t, time.Second, entries[0].Duration)
		})
	}
}

func TestDoneSettlesAfterIdleDelay(t *testing.T) {
	settings := testSettings()
	settings.IdleDelay = 120 * time.Millisecond
	h := startHarness(t, Deps{
		Recorder:    newFakeRecorder([]byte("RIFF-audio")),
		Transcriber: &fakeTranscriber{result: transcribe.Result{Kind: transcribe.KindNone, Text: "x"}},
		Injector:    &fakeInjector{},
		Settings:    staticSettings(settings),
	})

	h.press(t)
	h.release(t)
	done := h.sink.waitState(t, fsm.StateDone)
	idle := h.sink.waitState(t, fsm.StateIdle)
	require.GreaterOrEqual(t, idle.at.Sub(done.at), 120*time.Millisecond)
	require.Equal(t, fsm.StateIdle, h.ctrl.State())
}

func TestPressDuringDoneIsIgnored(t *testing.T) {
	settings := testSettings()
	settings.IdleDelay = 150 * time.Millisecond
	recorder := newFakeRecorder([]byte("RIFF-audio"))
	h := startHarness(t, Deps{
		Recorder:    recorder,
		Transcriber: &fakeTranscriber{result: transcribe.Result{Kind: transcribe.KindNone, Text: "x"}},
		Injector:    &fakeInjector{},
		Settings:    staticSettings(settings),
	})

	h.press(t)
	h.release(t)
	h.sink.waitState(t, fsm.StateDone)
	h.press(t)
	h.release(t)
	h.sink.waitState(t, fsm.StateIdle)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, fsm.StateIdle, h.ctrl.State())
	require.Equal(t, 1, recorder.Starts())
}

func TestStartFailureYieldsEmptyCompletion(t *testing.T) {
	recorder := newFakeRecorder(nil)
	recorder.startErr = errors.New("audio device unavailable: no such device")
	h := startHarness(t, Deps{Recorder: recorder, Transcriber: &fakeTranscriber{}, Injector: &fakeInjector{}})

	h.press(t)
	h.sink.waitState(t, fsm.StateRecording)
	require.Eventually(t, func() bool { return len(h.sink.Errors()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "Failed to start recording: audio device unavailable: no such device", h.sink.Errors()[0])

	h.release(t)
	idle := h.sink.waitState(t, fsm.StateIdle)
	require.Equal(t, StatusNoAudio, idle.status)
}

func TestMaxDurationWhileHeldTranscribes(t *testing.T) {
	recorder := newFakeRecorder([]byte("RIFF-audio"))
	transcriber := &fakeTranscriber{result: transcribe.Result{Kind: transcribe.KindNone, Text: "long"}}
	injector := &fakeInjector{}
	h := startHarness(t, Deps{Recorder: recorder, Transcriber: transcriber, Injector: injector})

	h.press(t)
	h.sink.waitState(t, fsm.StateRecording)
	recorder.finish(true)
	h.sink.waitState(t, fsm.StateProcessing)
	h.sink.waitState(t, fsm.StateDone)

	// the late key-up is ignored
	h.release(t)
	h.sink.waitState(t, fsm.StateIdle)
	require.Equal(t, int32(1), transcriber.calls.Load())
	require.Equal(t, []string{"long"}, injector.texts)
	require.Equal(t, []fsm.Effect{fsm.EffectCueStart, fsm.EffectCueStop}, h.sink.Cues())
}

func TestShutdownCancelsInFlightTranscription(t *testing.T) {
	listener := hotkey.NewSignalListener(hotkey.Default, nil)
	require.NoError(t, listener.Start(context.Background()))
	transcriber := &fakeTranscriber{gate: make(chan struct{}), seen: make(chan context.Context, 1)}
	ctrl := New(Deps{
		Listener:    listener,
		Recorder:    newFakeRecorder([]byte("RIFF-audio")),
		Transcriber: transcriber,
		Injector:    &fakeInjector{},
		Settings:    staticSettings(testSettings()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	_, _ = listener.Press()
	_, _ = listener.Release()
	var seen context.Context
	select {
	case seen = <-transcriber.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("transcription never started")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop")
	}
	require.Error(t, seen.Err())
}

func TestHandleCommands(t *testing.T) {
	injector := &fakeInjector{}
	log := history.New()
	log.Add("older", time.Second, true, "")
	log.Add("newest", time.Second, true, "")
	h := startHarness(t, Deps{
		Recorder:    newFakeRecorder(nil),
		Transcriber: &fakeTranscriber{},
		Injector:    injector,
		History:     log,
	})
	ctx := context.Background()

	resp := h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.Equal(t, StatusReady, resp.Status)

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandHistory})
	require.True(t, resp.OK)
	require.Len(t, resp.History, 2)
	require.Equal(t, "newest", resp.History[0].Text)

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandCopy, Index: 1})
	require.True(t, resp.OK)
	require.Equal(t, "Copied to clipboard", resp.Message)
	require.Equal(t, []string{"older"}, injector.copied)

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandCopy, Index: 7})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "Failed to copy: ")

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: ipc.CommandClearHistory})
	require.True(t, resp.OK)
	require.Zero(t, log.Len())

	resp = h.ctrl.Handle(ctx, ipc.Request{Command: "dance"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unknown command")
}

// speechSource feeds a fixed tone through the real recorder.
type speechSource struct {
	chunks int
}

func (s speechSource) Open(_ context.Context, onChunk func([]byte)) (audio.Stream, error) {
	chunk := make([]byte, audio.ChunkBytes)
	for i := 0; i < len(chunk)/2; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*220*float64(i)/audio.SampleRate))
		binary.LittleEndian.PutUint16(chunk[2*i:], uint16(v))
	}
	for i := 0; i < s.chunks; i++ {
		onChunk(chunk)
	}
	return closerFunc(func() error { return nil }), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type memoryClipboard struct {
	mu   sync.Mutex
	text string
}

func (m *memoryClipboard) Read(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *memoryClipboard) Write(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}

type chordCounter struct {
	calls atomic.Int32
}

func (c *chordCounter) SendPasteChord(context.Context) (int, error) {
	c.calls.Add(1)
	return 4, nil
}

func TestEndToEndDictation(t *testing.T) {
	var uploads atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"text":"hello, world."}`))
	}))
	t.Cleanup(server.Close)

	var clockMu sync.Mutex
	clock := time.Unix(1700000000, 0)
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		ts := clock
		clock = clock.Add(2 * time.Second)
		return ts
	}

	recorder := audio.NewRecorder(speechSource{chunks: 40}, nil, now)
	clip := &memoryClipboard{}
	chord := &chordCounter{}
	injector := output.NewInjector(clip, chord, nil, nil)
	t.Cleanup(injector.Close)

	settings := testSettings()
	settings.Transcription.AddPunctuation = false
	settings.Transcription.PreserveNewlines = false
	h := startHarness(t, Deps{
		Recorder:    recorder,
		Transcriber: transcribe.New(server.URL, server.Client(), nil),
		Injector:    injector,
		Settings:    staticSettings(settings),
	})

	h.press(t)
	h.sink.waitState(t, fsm.StateRecording)
	h.release(t)
	done := h.sink.waitState(t, fsm.StateDone)
	require.Equal(t, StatusDone, done.status)

	pasted, err := clip.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, "hello world", pasted)
	require.Equal(t, int32(1), chord.calls.Load())
	require.Equal(t, int32(1), uploads.Load())

	entries := h.ctrl.History().Entries()
	require.Len(t, entries, 1)
	require.True(t, entries[0].Success)
	require.Equal(t, "hello world", entries[0].Text)
	require.InDelta(t, 2.0, entries[0].Duration.Seconds(), 0.1)
	require.Equal(t, []string{"Text pasted successfully"}, h.sink.Notifies())
}

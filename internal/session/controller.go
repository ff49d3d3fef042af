// Package session runs the hold-to-talk cycle: hotkey edges drive capture,
// captured audio is transcribed and pasted, and every outcome is recorded.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/oto/internal/audio"
	"github.com/rbright/oto/internal/fsm"
	"github.com/rbright/oto/internal/history"
	"github.com/rbright/oto/internal/hotkey"
	"github.com/rbright/oto/internal/output"
	"github.com/rbright/oto/internal/transcribe"
)

// Status strings shown next to the state.
const (
	StatusReady            = "Ready"
	StatusRecording        = "Recording..."
	StatusTranscribing     = "Transcribing..."
	StatusDone             = "Done!"
	StatusNoAudio          = "No audio recorded"
	StatusPasteFailed      = "Paste failed"
	StatusTranscribeFailed = "Transcription failed"
	StatusError            = "Error"
)

const (
	msgMissingAPIKey = "API Key is not configured. Please set it in Settings."
	msgPasted        = "Text pasted successfully"
	msgNoSpeech      = "No speech detected"
)

// Listener delivers hotkey edges.
type Listener interface {
	Events() <-chan hotkey.Event
	Stop() error
}

// Recorder captures one session at a time.
type Recorder interface {
	Start(ctx context.Context, maxDuration time.Duration) error
	Stop()
	Completed() <-chan audio.Recording
	Levels() <-chan float32
}

// Transcriber turns WAV audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, opts transcribe.Options) transcribe.Result
}

// Injector pastes text into the focused application.
type Injector interface {
	Inject(ctx context.Context, text string, opts output.Options) output.Result
	CopyText(ctx context.Context, text string) output.Result
}

// Deps wires a Controller. Sink, History, Settings and Logger may be nil.
type Deps struct {
	Listener    Listener
	Recorder    Recorder
	Transcriber Transcriber
	Injector    Injector
	Sink        Sink
	History     *history.Log
	Settings    SettingsFunc
	Logger      *slog.Logger
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State   fsm.State
	Status  string
	Level   float32
	History []history.Entry
}

type outcomeKind string

const (
	outcomeSuccess          outcomeKind = "success"
	outcomeNoAudio          outcomeKind = "no_audio"
	outcomePasteFailed      outcomeKind = "paste_failed"
	outcomeTranscribeFailed outcomeKind = "transcription_failed"
	outcomeEmptyText        outcomeKind = "empty_text"
	outcomeUnexpected       outcomeKind = "unexpected"
)

type outcome struct {
	kind   outcomeKind
	cycle  *cycle
	result transcribe.Result
	err    string
}

type cycle struct {
	id       string
	settings Settings
	rec      audio.Recording
}

// Controller owns the cycle state. State changes happen only on the Run
// goroutine; readers use Snapshot.
type Controller struct {
	logger      *slog.Logger
	listener    Listener
	recorder    Recorder
	transcriber Transcriber
	injector    Injector
	sink        Sink
	history     *history.Log
	settings    SettingsFunc

	mu     sync.RWMutex
	state  fsm.State
	status string
	level  float32

	// loop-owned
	pending  *Settings
	current  *cycle
	outcomes chan outcome
	settle   *time.Timer
	settleC  <-chan time.Time
	workers  sync.WaitGroup
}

// New constructs a controller with fallbacks for optional dependencies.
func New(deps Deps) *Controller {
	if deps.Sink == nil {
		deps.Sink = noopSink{}
	}
	if deps.History == nil {
		deps.History = history.New()
	}
	if deps.Settings == nil {
		deps.Settings = staticSettings(Settings{MaxRecording: DefaultMaxRecording, IdleDelay: DefaultIdleDelay})
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		logger:      deps.Logger,
		listener:    deps.Listener,
		recorder:    deps.Recorder,
		transcriber: deps.Transcriber,
		injector:    deps.Injector,
		sink:        deps.Sink,
		history:     deps.History,
		settings:    deps.Settings,
		state:       fsm.StateIdle,
		status:      StatusReady,
		outcomes:    make(chan outcome, 1),
	}
}

// State returns the current cycle state.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns state, status, level and a history copy.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	snap := Snapshot{State: c.state, Status: c.status, Level: c.level}
	c.mu.RUnlock()
	snap.History = c.history.Entries()
	return snap
}

// History exposes the cycle log.
func (c *Controller) History() *history.Log {
	return c.history
}

// Run processes events until ctx is cancelled. On shutdown the listener
// and recorder are stopped and the in-flight cycle is cancelled and awaited.
func (c *Controller) Run(ctx context.Context) error {
	work, cancelWork := context.WithCancel(ctx)
	defer cancelWork()

	c.sink.StateChanged(c.State(), StatusReady)

	events := c.listener.Events()
	for {
		select {
		case <-ctx.Done():
			c.shutdown(cancelWork)
			return nil
		case ev := <-events:
			c.handleKey(work, ev)
		case rec := <-c.recorder.Completed():
			c.handleCaptured(work, rec)
		case level := <-c.recorder.Levels():
			c.handleLevel(level)
		case out := <-c.outcomes:
			c.handleOutcome(out)
		case <-c.settleC:
			c.handleSettled()
		}
	}
}

func (c *Controller) shutdown(cancelWork context.CancelFunc) {
	if err := c.listener.Stop(); err != nil {
		c.logger.Warn("hotkey listener stop failed", "error", err.Error())
	}
	c.recorder.Stop()
	cancelWork()
	c.workers.Wait()
	if c.settle != nil {
		c.settle.Stop()
	}
	c.logger.Info("session controller stopped", "state", string(c.State()))
}

func (c *Controller) handleKey(ctx context.Context, ev hotkey.Event) {
	switch ev.Edge {
	case hotkey.Pressed:
		c.handlePress(ctx)
	case hotkey.Released:
		c.handleRelease()
	}
}

func (c *Controller) handlePress(ctx context.Context) {
	state := c.State()
	if state != fsm.StateIdle {
		c.logger.Debug("press ignored", "state", string(state))
		return
	}

	settings := c.settings()
	if strings.TrimSpace(settings.Transcription.APIKey) == "" {
		c.sink.Error(msgMissingAPIKey)
		return
	}

	next, effects, err := fsm.Transition(state, fsm.EventPress)
	if err != nil {
		c.logger.Debug("press ignored", "error", err.Error())
		return
	}
	c.pending = &settings
	c.setState(next, StatusRecording)
	c.cue(settings, effects, fsm.EffectCueStart)

	if fsm.Has(effects, fsm.EffectStartCapture) {
		if err := c.recorder.Start(ctx, settings.MaxRecording); err != nil {
			c.logger.Error("recording start failed", "error", err.Error())
			c.sink.Error("Failed to start recording: " + err.Error())
		}
	}
}

func (c *Controller) handleRelease() {
	state := c.State()
	next, effects, err := fsm.Transition(state, fsm.EventRelease)
	if err != nil {
		c.logger.Debug("release ignored", "state", string(state))
		return
	}
	c.setState(next, StatusTranscribing)
	if c.pending != nil {
		c.cue(*c.pending, effects, fsm.EffectCueStop)
	}
	if fsm.Has(effects, fsm.EffectStopCapture) {
		c.recorder.Stop()
	}
}

func (c *Controller) handleLevel(level float32) {
	c.mu.Lock()
	if c.state != fsm.StateRecording {
		c.mu.Unlock()
		return
	}
	c.level = level
	c.mu.Unlock()
	c.sink.Level(level)
}

func (c *Controller) handleCaptured(ctx context.Context, rec audio.Recording) {
	state := c.State()
	settings := c.settings()
	if c.pending != nil {
		settings = *c.pending
	}

	event := fsm.EventCaptured
	if rec.Empty() {
		event = fsm.EventCapturedEmpty
	}
	next, effects, err := fsm.Transition(state, event)
	if err != nil {
		c.logger.Warn("recording dropped", "session_id", rec.ID, "state", string(state), "error", err.Error())
		return
	}
	c.pending = nil
	cyc := &cycle{id: rec.ID, settings: settings, rec: rec}

	if rec.Empty() {
		c.history.Add("", rec.Duration, false, StatusNoAudio)
		c.setState(next, StatusNoAudio)
		c.logCycle(cyc, outcome{kind: outcomeNoAudio, err: StatusNoAudio})
		return
	}

	c.setState(next, StatusTranscribing)
	c.cue(settings, effects, fsm.EffectCueStop)
	if !fsm.Has(effects, fsm.EffectTranscribe) {
		return
	}

	c.current = cyc
	c.workers.Add(1)
	go c.process(ctx, cyc)
}

// process runs transcription and injection off the loop goroutine.
func (c *Controller) process(ctx context.Context, cyc *cycle) {
	defer c.workers.Done()

	out := outcome{cycle: cyc}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("cycle panic recovered", "session_id", cyc.id, "panic", fmt.Sprint(r))
			out = outcome{kind: outcomeUnexpected, cycle: cyc, err: fmt.Sprint(r)}
		}
		c.outcomes <- out
	}()

	out.result = c.transcriber.Transcribe(ctx, cyc.rec.Audio, cyc.settings.Transcription)
	if !out.result.OK() {
		out.kind = outcomeTranscribeFailed
		return
	}
	if out.result.Text == "" {
		out.kind = outcomeEmptyText
		return
	}

	injected := c.injector.Inject(ctx, out.result.Text, cyc.settings.Injection)
	if !injected.Success {
		out.kind = outcomePasteFailed
		out.err = injected.Error
		return
	}
	out.kind = outcomeSuccess
}

func (c *Controller) handleOutcome(out outcome) {
	if out.cycle != c.current {
		c.logger.Warn("stale cycle outcome dropped", "session_id", out.cycle.id)
		return
	}
	c.current = nil

	rec := out.cycle.rec
	text := out.result.Text

	event := fsm.EventFailed
	var status string
	switch out.kind {
	case outcomeSuccess:
		event = fsm.EventCompleted
		status = StatusDone
		c.history.Add(text, rec.Duration, true, "")
		c.sink.Notify(msgPasted)
	case outcomePasteFailed:
		status = StatusPasteFailed
		c.history.Add(text, rec.Duration, false, out.err)
		c.sink.Error("Failed to paste: " + out.err)
	case outcomeTranscribeFailed:
		status = StatusTranscribeFailed
		msg := out.result.UserMessage()
		c.history.Add("", rec.Duration, false, msg)
		c.sink.Error(msg)
	case outcomeEmptyText:
		status = StatusTranscribeFailed
		c.history.Add("", rec.Duration, false, msgNoSpeech)
		c.sink.Error(msgNoSpeech)
	default:
		status = StatusError
		c.history.Add("", rec.Duration, false, out.err)
		c.sink.Error("Error: " + out.err)
	}

	next, effects, err := fsm.Transition(c.State(), event)
	if err != nil {
		c.logger.Error("cycle outcome rejected", "session_id", out.cycle.id, "error", err.Error())
		return
	}
	c.setState(next, status)
	c.logCycle(out.cycle, out)

	if fsm.Has(effects, fsm.EffectScheduleIdle) {
		c.scheduleIdle(out.cycle.settings.IdleDelay)
	}
}

func (c *Controller) scheduleIdle(delay time.Duration) {
	if delay <= 0 {
		delay = DefaultIdleDelay
	}
	if c.settle != nil {
		c.settle.Stop()
	}
	c.settle = time.NewTimer(delay)
	c.settleC = c.settle.C
}

func (c *Controller) handleSettled() {
	c.settle = nil
	c.settleC = nil
	next, _, err := fsm.Transition(c.State(), fsm.EventSettled)
	if err != nil {
		c.logger.Debug("settle ignored", "error", err.Error())
		return
	}
	c.setState(next, StatusReady)
}

func (c *Controller) setState(state fsm.State, status string) {
	c.mu.Lock()
	prev := c.state
	c.state = state
	c.status = status
	if state != fsm.StateRecording {
		c.level = 0
	}
	c.mu.Unlock()

	if prev == fsm.StateRecording && state != fsm.StateRecording {
		c.sink.Level(0)
	}
	c.sink.StateChanged(state, status)
}

func (c *Controller) cue(settings Settings, effects []fsm.Effect, want fsm.Effect) {
	if !settings.SoundCues || !fsm.Has(effects, want) {
		return
	}
	if cuer, ok := c.sink.(Cuer); ok {
		cuer.Cue(want)
	}
}

func (c *Controller) logCycle(cyc *cycle, out outcome) {
	attrs := []any{
		"session_id", cyc.id,
		"state", string(c.State()),
		"audio_bytes", len(cyc.rec.Audio),
		"duration_ms", cyc.rec.Duration.Milliseconds(),
		"max_duration", cyc.rec.MaxDurationReached,
		"transcript_length", len(out.result.Text),
		"kind", string(out.result.Kind),
		"attempts", out.result.Attempts,
	}
	if out.kind == outcomeSuccess {
		c.logger.Info("cycle complete", attrs...)
		return
	}
	attrs = append(attrs, "outcome", string(out.kind))
	if out.err != "" {
		attrs = append(attrs, "error", out.err)
	}
	c.logger.Warn("cycle failed", attrs...)
}

// ErrNoEntry reports a copy request for a missing history index.
var ErrNoEntry = errors.New("no history entry at index")

// Copy places history entry i on the clipboard.
func (c *Controller) Copy(ctx context.Context, i int) output.Result {
	entry, ok := c.history.Get(i)
	if !ok {
		return output.Result{Error: fmt.Sprintf("Failed to copy: %v %d", ErrNoEntry, i)}
	}
	return c.injector.CopyText(ctx, entry.Text)
}

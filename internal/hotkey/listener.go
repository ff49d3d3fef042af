package hotkey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

const eventBuffer = 16

var (
	// ErrHookUnsupported indicates no OS-level keyboard hook exists on this platform.
	ErrHookUnsupported = errors.New("global keyboard hook is not supported on this platform")
	// ErrNotStarted is returned by operations that need a started listener.
	ErrNotStarted = errors.New("hotkey listener not started")
)

// HookInstallationError reports an OS refusal to install the global observer.
type HookInstallationError struct {
	Code uint32
	Err  error
}

func (e *HookInstallationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("install keyboard hook: %v (code %d)", e.Err, e.Code)
	}
	return fmt.Sprintf("install keyboard hook failed (code %d)", e.Code)
}

func (e *HookInstallationError) Unwrap() error {
	return e.Err
}

// Listener is a global hotkey observer emitting press/release edges.
type Listener interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan Event
	SetDefinition(Definition)
	Definition() Definition
}

// emitter delivers events without ever blocking the input source.
type emitter struct {
	ch     chan Event
	logger *slog.Logger
}

func newEmitter(logger *slog.Logger) emitter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return emitter{ch: make(chan Event, eventBuffer), logger: logger}
}

func (e emitter) emit(ev Event) {
	select {
	case e.ch <- ev:
	default:
		e.logger.Warn("hotkey event dropped", "edge", string(ev.Edge), "synthetic", ev.Synthetic)
	}
}

// SignalListener turns externally delivered press/release signals into edges.
// Compositor keybinds (e.g. Hyprland bind/bindr) reach it through IPC. It is
// also the deterministic listener used in tests.
type SignalListener struct {
	emitter

	mu      sync.Mutex
	tracker *Tracker
	running bool
}

func NewSignalListener(def Definition, logger *slog.Logger) *SignalListener {
	return &SignalListener{
		emitter: newEmitter(logger),
		tracker: NewTracker(def),
	}
}

func (l *SignalListener) Start(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = true
	return nil
}

// Stop synthesizes a release if the combination is held, then goes inert.
func (l *SignalListener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return nil
	}
	l.running = false
	if ev, ok := l.tracker.Reset(); ok {
		l.emit(ev)
	}
	return nil
}

func (l *SignalListener) Events() <-chan Event {
	return l.ch
}

func (l *SignalListener) SetDefinition(def Definition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev, ok := l.tracker.Replace(def); ok && l.running {
		l.emit(ev)
	}
}

func (l *SignalListener) Definition() Definition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracker.Definition()
}

// Press reports the combination going down. It returns whether an edge fired.
func (l *SignalListener) Press() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return false, ErrNotStarted
	}
	def := l.tracker.Definition()
	ev, ok := l.tracker.KeyDown(def.Key, def.Modifiers)
	if ok {
		l.emit(ev)
	}
	return ok, nil
}

// Release reports the combination going up. It returns whether an edge fired.
func (l *SignalListener) Release() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return false, ErrNotStarted
	}
	ev, ok := l.tracker.KeyUp(l.tracker.Definition().Key)
	if ok {
		l.emit(ev)
	}
	return ok, nil
}

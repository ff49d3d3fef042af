// Package indicator surfaces session state as on-screen notifications and
// plays the start/stop audio cues.
package indicator

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/oto/internal/config"
	"github.com/rbright/oto/internal/fsm"
	"github.com/rbright/oto/internal/hypr"
)

const (
	dispatchTimeout  = 400 * time.Millisecond
	persistTimeoutMS = 300000
	defaultErrorMS   = 1200
	queueDepth       = 16
)

// Indicator implements the session sink. Every call returns immediately;
// notifications are dispatched in order on a private goroutine.
type Indicator struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages
	surface  surface
	player   cuePlayer

	opsMu   sync.Mutex
	ops     chan func(context.Context)
	closed  bool
	done    chan struct{}
	soundMu sync.Mutex

	mu             sync.Mutex
	prev           fsm.State
	focusedMonitor string

	level atomic.Uint32
}

// New builds an indicator for cfg.Backend and starts its dispatcher.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Indicator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	in := &Indicator{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		surface:  newSurface(cfg),
		player:   pulsePlayer{},
		ops:      make(chan func(context.Context), queueDepth),
		done:     make(chan struct{}),
		prev:     fsm.StateIdle,
	}
	go in.dispatch()
	return in
}

// Close drains queued notifications and stops the dispatcher.
func (in *Indicator) Close() {
	in.opsMu.Lock()
	if !in.closed {
		in.closed = true
		close(in.ops)
	}
	in.opsMu.Unlock()
	<-in.done
}

// StateChanged mirrors the cycle state on screen.
func (in *Indicator) StateChanged(state fsm.State, status string) {
	in.mu.Lock()
	prev := in.prev
	in.prev = state
	in.mu.Unlock()

	switch state {
	case fsm.StateRecording:
		in.enqueue(func(ctx context.Context) error {
			in.ensureFocusedMonitor(ctx)
			return in.surface.show(ctx, notice{kind: noticeRecording, text: in.messages.recording, timeoutMS: persistTimeoutMS})
		})
	case fsm.StateProcessing:
		in.enqueue(func(ctx context.Context) error {
			return in.surface.show(ctx, notice{kind: noticeWorking, text: in.messages.processing, timeoutMS: persistTimeoutMS})
		})
	case fsm.StateIdle:
		if prev == fsm.StateProcessing && status != "" {
			// capture ended without audio; nothing else will report it
			in.Error(status)
			return
		}
		in.enqueue(in.surface.dismiss)
	}
}

// Level records the latest input level.
func (in *Indicator) Level(level float32) {
	in.level.Store(math.Float32bits(level))
}

// LastLevel returns the most recent input level.
func (in *Indicator) LastLevel() float32 {
	return math.Float32frombits(in.level.Load())
}

// Notify shows a transient success message.
func (in *Indicator) Notify(message string) {
	in.enqueue(func(ctx context.Context) error {
		return in.surface.show(ctx, notice{kind: noticeOK, text: message, timeoutMS: in.errorTimeout()})
	})
}

// Error shows a transient error message.
func (in *Indicator) Error(message string) {
	if strings.TrimSpace(message) == "" {
		message = in.messages.errorText
	}
	in.enqueue(func(ctx context.Context) error {
		return in.surface.show(ctx, notice{kind: noticeError, text: message, timeoutMS: in.errorTimeout()})
	})
}

// Cue plays the start or stop tone.
func (in *Indicator) Cue(effect fsm.Effect) {
	if !in.cfg.SoundEnable {
		return
	}
	var kind cueKind
	switch effect {
	case fsm.EffectCueStart:
		kind = cueStart
	case fsm.EffectCueStop:
		kind = cueStop
	default:
		return
	}
	go func() {
		in.soundMu.Lock()
		defer in.soundMu.Unlock()
		if err := in.player.play(kind); err != nil {
			in.logger.Debug("indicator audio cue failed", "cue", kind.String(), "error", err.Error())
		}
	}()
}

// FocusedMonitor returns the monitor captured when recording began.
func (in *Indicator) FocusedMonitor() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.focusedMonitor
}

func (in *Indicator) errorTimeout() int {
	if in.cfg.ErrorTimeoutMS <= 0 {
		return defaultErrorMS
	}
	return in.cfg.ErrorTimeoutMS
}

func (in *Indicator) enqueue(op func(context.Context) error) {
	if !in.cfg.Enable {
		return
	}
	wrapped := func(ctx context.Context) {
		if err := op(ctx); err != nil {
			in.logger.Debug("indicator dispatch failed", "backend", in.cfg.Backend, "error", err.Error())
		}
	}
	in.opsMu.Lock()
	defer in.opsMu.Unlock()
	if in.closed {
		return
	}
	select {
	case in.ops <- wrapped:
	default:
		in.logger.Debug("indicator queue full; notification dropped")
	}
}

func (in *Indicator) dispatch() {
	defer close(in.done)
	for op := range in.ops {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		op(ctx)
		cancel()
	}
}

// ensureFocusedMonitor resolves and caches the focused monitor once.
func (in *Indicator) ensureFocusedMonitor(ctx context.Context) {
	if !strings.EqualFold(strings.TrimSpace(in.cfg.Backend), "hypr") {
		return
	}
	in.mu.Lock()
	known := in.focusedMonitor != ""
	in.mu.Unlock()
	if known {
		return
	}

	monitor, err := hypr.QueryFocusedMonitor(ctx)
	if err != nil {
		in.logger.Debug("indicator focused monitor query failed", "error", err.Error())
		return
	}
	in.mu.Lock()
	in.focusedMonitor = monitor
	in.mu.Unlock()
}

package output

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

const (
	DefaultPasteDelay   = 50 * time.Millisecond
	DefaultRestoreDelay = 300 * time.Millisecond

	clipboardAttempts = 10
	clipboardBackoff  = 20 * time.Millisecond

	copiedMessage = "Copied to clipboard"
)

var (
	ErrEmptyText           = errors.New("no text to inject")
	ErrClipboardContention = errors.New("clipboard unavailable")
)

// Options is the per-injection settings snapshot.
type Options struct {
	PasteDelay       time.Duration
	RestoreClipboard bool
	RestoreDelay     time.Duration
}

// Result is the outcome of Inject or CopyText.
type Result struct {
	Success bool
	Message string
	Error   string
}

// Injector writes text to the clipboard and pastes it with a synthesized
// Ctrl+V.
type Injector struct {
	clipboard Clipboard
	chord     ChordSender
	worker    *Worker
	logger    *slog.Logger
	sleep     func(time.Duration)
}

// NewInjector wires an injector. A nil worker gets a private one.
func NewInjector(clip Clipboard, chord ChordSender, worker *Worker, logger *slog.Logger) *Injector {
	if worker == nil {
		worker = NewWorker()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Injector{
		clipboard: clip,
		chord:     chord,
		worker:    worker,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// Inject pastes text into the focused application. The chord is sent once.
func (in *Injector) Inject(ctx context.Context, text string, opts Options) Result {
	if text == "" {
		return Result{Error: "No text to inject"}
	}

	var injectErr error
	if err := in.worker.Do(ctx, func(ctx context.Context) {
		injectErr = in.inject(ctx, text, opts)
	}); err != nil {
		injectErr = err
	}
	if injectErr != nil {
		in.logger.Error("text injection failed", "error", injectErr.Error(), "text_length", len(text))
		return Result{Error: "Failed to inject text: " + injectErr.Error()}
	}
	return Result{Success: true}
}

func (in *Injector) inject(ctx context.Context, text string, opts Options) error {
	var previous string
	restore := false
	if opts.RestoreClipboard {
		prev, err := in.clipboard.Read(ctx)
		switch {
		case errors.Is(err, ErrRestoreUnsupported):
			in.logger.Debug("clipboard restore skipped", "reason", err.Error())
		case err != nil:
			in.logger.Warn("clipboard snapshot failed", "error", err.Error())
		default:
			previous = prev
			restore = true
		}
	}

	if err := in.writeClipboard(ctx, text); err != nil {
		return err
	}

	in.sleep(opts.PasteDelay)

	sent, err := in.chord.SendPasteChord(ctx)
	if sent < chordInputs {
		var delivery *DeliveryError
		if !errors.As(err, &delivery) {
			delivery = &DeliveryError{Sent: sent, Total: chordInputs, Err: err}
		}
		return delivery
	}

	if restore {
		in.sleep(opts.RestoreDelay)
		if err := in.clipboard.Write(ctx, previous); err != nil {
			in.logger.Warn("clipboard restore failed", "error", err.Error())
		}
	}
	return nil
}

// writeClipboard retries contention with a linear backoff.
func (in *Injector) writeClipboard(ctx context.Context, text string) error {
	var lastErr error
	for attempt := 1; attempt <= clipboardAttempts; attempt++ {
		if lastErr = in.clipboard.Write(ctx, text); lastErr == nil {
			if attempt > 1 {
				in.logger.Debug("clipboard write succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt < clipboardAttempts {
			in.sleep(time.Duration(attempt) * clipboardBackoff)
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrClipboardContention, clipboardAttempts, lastErr)
}

// CopyText places text on the clipboard without pasting.
func (in *Injector) CopyText(ctx context.Context, text string) Result {
	var copyErr error
	if text == "" {
		copyErr = ErrEmptyText
	} else if err := in.worker.Do(ctx, func(ctx context.Context) {
		copyErr = in.writeClipboard(ctx, text)
	}); err != nil {
		copyErr = err
	}
	if copyErr != nil {
		return Result{Error: "Failed to copy: " + copyErr.Error()}
	}
	return Result{Success: true, Message: copiedMessage}
}

// Close stops the injection worker.
func (in *Injector) Close() {
	in.worker.Close()
}

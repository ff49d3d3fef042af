package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/oto/internal/hypr"
)

const pasteShortcut = "CTRL,V"

// HyprSender pastes through hyprctl sendshortcut targeted at the active window.
type HyprSender struct {
	Attempts int
	Delay    time.Duration
}

func NewHyprSender() HyprSender {
	return HyprSender{Attempts: 5, Delay: 10 * time.Millisecond}
}

func (h HyprSender) SendPasteChord(ctx context.Context) (int, error) {
	return dispatch(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 1200*time.Millisecond)
		defer cancel()

		window, err := activeWindowWithRetry(ctx, h.Attempts, h.Delay)
		if err != nil {
			return err
		}
		payload, err := buildPasteShortcut(pasteShortcut, window.Address)
		if err != nil {
			return err
		}
		return hypr.SendShortcut(ctx, payload)
	}).SendPasteChord(ctx)
}

func buildPasteShortcut(shortcut string, windowAddress string) (string, error) {
	shortcut = strings.TrimSpace(shortcut)
	if shortcut == "" {
		return "", fmt.Errorf("paste shortcut cannot be empty")
	}

	address := strings.TrimSpace(windowAddress)
	if address == "" {
		return "", fmt.Errorf("active window address is required")
	}

	return fmt.Sprintf("%s,address:%s", shortcut, address), nil
}

func activeWindowWithRetry(ctx context.Context, attempts int, delay time.Duration) (hypr.ActiveWindow, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		window, err := hypr.QueryActiveWindow(ctx)
		if err == nil {
			return window, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return hypr.ActiveWindow{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return hypr.ActiveWindow{}, fmt.Errorf("resolve active window: %w", lastErr)
}

package output

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// uinputSettle is how long a fresh uinput device needs before the
// compositor routes its events.
const uinputSettle = 2 * time.Second

// KeybdSender synthesizes Ctrl+V through keybd_event (uinput on Linux,
// CGEvent on macOS, SendInput on Windows).
type KeybdSender struct {
	logger *slog.Logger

	mu  sync.Mutex
	kb  *keybd_event.KeyBonding
	err error
}

func NewKeybdSender(logger *slog.Logger) *KeybdSender {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &KeybdSender{logger: logger}
}

func (k *KeybdSender) bonding() (*keybd_event.KeyBonding, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.kb != nil || k.err != nil {
		return k.kb, k.err
	}

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		k.err = fmt.Errorf("create virtual keyboard: %w", err)
		return nil, k.err
	}
	if runtime.GOOS == "linux" {
		k.logger.Debug("waiting for uinput device", "delay_ms", uinputSettle.Milliseconds())
		time.Sleep(uinputSettle)
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	k.kb = &kb
	return k.kb, nil
}

func (k *KeybdSender) SendPasteChord(ctx context.Context) (int, error) {
	return dispatch(func(context.Context) error {
		kb, err := k.bonding()
		if err != nil {
			return err
		}
		return kb.Launching()
	}).SendPasteChord(ctx)
}

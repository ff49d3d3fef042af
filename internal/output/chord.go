package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// chordInputs is Ctrl down, V down, V up, Ctrl up.
const chordInputs = 4

// ErrInjectionDelivery reports that the paste chord was not fully delivered.
var ErrInjectionDelivery = errors.New("paste chord not delivered")

// DeliveryError carries how much of the chord the OS accepted.
type DeliveryError struct {
	Sent  int
	Total int
	Code  uint32
	Err   error
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("SendInput failed. Sent %d/%d inputs. Error code: %d", e.Sent, e.Total, e.Code)
	if e.Err != nil {
		msg += " (" + e.Err.Error() + ")"
	}
	return msg
}

func (e *DeliveryError) Is(target error) bool {
	return target == ErrInjectionDelivery
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ChordSender synthesizes the paste chord and reports how many of the four
// key events were accepted.
type ChordSender interface {
	SendPasteChord(ctx context.Context) (int, error)
}

// dispatch adapts an all-or-nothing paste action to ChordSender.
type dispatch func(ctx context.Context) error

func (f dispatch) SendPasteChord(ctx context.Context) (int, error) {
	if err := f(ctx); err != nil {
		return 0, err
	}
	return chordInputs, nil
}

// CommandSender runs paste_cmd.
type CommandSender struct {
	Argv []string
}

func (c CommandSender) SendPasteChord(ctx context.Context) (int, error) {
	return dispatch(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()
		return runCommandWithInput(ctx, c.Argv, "")
	}).SendPasteChord(ctx)
}

// NewChordSender resolves a paste.backend value. "auto" picks SendInput on
// Windows, Hyprland when HYPRLAND_INSTANCE_SIGNATURE is set, then keybd.
func NewChordSender(backend string, pasteArgv []string, logger *slog.Logger) (ChordSender, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "auto":
		if runtime.GOOS == "windows" {
			return NewSendInputSender()
		}
		if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" {
			return NewHyprSender(), nil
		}
		return NewKeybdSender(logger), nil
	case "sendinput":
		return NewSendInputSender()
	case "keybd":
		return NewKeybdSender(logger), nil
	case "hypr":
		return NewHyprSender(), nil
	case "command":
		if len(pasteArgv) == 0 {
			return nil, errors.New("paste backend \"command\" requires paste_cmd")
		}
		return CommandSender{Argv: pasteArgv}, nil
	default:
		return nil, fmt.Errorf("unsupported paste backend %q", backend)
	}
}

// Package output places text on the clipboard and pastes it into the
// focused application.
package output

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

// ErrRestoreUnsupported reports that a clipboard backend cannot be read back.
var ErrRestoreUnsupported = errors.New("clipboard restore unsupported")

const commandTimeout = 2 * time.Second

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
}

// SystemClipboard uses the platform clipboard API (Win32, pbcopy, xclip/xsel/wl-clipboard).
type SystemClipboard struct{}

func (SystemClipboard) Read(context.Context) (string, error) {
	return clipboard.ReadAll()
}

func (SystemClipboard) Write(_ context.Context, text string) error {
	return clipboard.WriteAll(text)
}

// CommandClipboard pipes text into an argv command such as wl-copy.
type CommandClipboard struct {
	Argv []string
}

func (CommandClipboard) Read(context.Context) (string, error) {
	return "", ErrRestoreUnsupported
}

func (c CommandClipboard) Write(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	return runCommandWithInput(ctx, c.Argv, text)
}

// NewClipboard resolves a clipboard.backend value.
func NewClipboard(backend string, argv []string) (Clipboard, error) {
	switch backend {
	case "", "system":
		return SystemClipboard{}, nil
	case "command":
		if len(argv) == 0 {
			return nil, errors.New("clipboard backend \"command\" requires clipboard_cmd")
		}
		return CommandClipboard{Argv: argv}, nil
	default:
		return nil, fmt.Errorf("unsupported clipboard backend %q", backend)
	}
}

// runCommandWithInput executes argv with input on stdin. A command that
// exits without draining stdin still reports its own exit status.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}

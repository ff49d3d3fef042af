package output

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCommandWithInputWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "stdin.txt")

	err := runCommandWithInput(context.Background(), []string{scriptPath, outputPath}, "hello from oto")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "hello from oto", string(data))
}

func TestRunCommandWithInputRejectsEmptyArgv(t *testing.T) {
	err := runCommandWithInput(context.Background(), nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestCommandClipboardWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	clipboardPath := filepath.Join(t.TempDir(), "clipboard.txt")

	clip := CommandClipboard{Argv: []string{scriptPath, clipboardPath}}
	require.NoError(t, clip.Write(context.Background(), "captured transcript"))

	data, err := os.ReadFile(clipboardPath)
	require.NoError(t, err)
	require.Equal(t, "captured transcript", string(data))

	_, err = clip.Read(context.Background())
	require.ErrorIs(t, err, ErrRestoreUnsupported)
}

func TestCommandClipboardReportsFailure(t *testing.T) {
	clip := CommandClipboard{Argv: []string{writeFailScript(t, "clipboard failed")}}
	err := clip.Write(context.Background(), "captured transcript")
	require.Error(t, err)
	require.Contains(t, err.Error(), "wait for")
}

func TestCommandClipboardReportsExitWhenStdinIgnored(t *testing.T) {
	clip := CommandClipboard{Argv: []string{writeFailScript(t, "clipboard failed")}}
	payload := strings.Repeat("captured transcript ", 64*1024)

	for range 5 {
		err := clip.Write(context.Background(), payload)
		require.Error(t, err)
		require.Contains(t, err.Error(), "wait for")
		require.Contains(t, err.Error(), "exit status 1")
	}
}

func TestNewClipboard(t *testing.T) {
	clip, err := NewClipboard("", nil)
	require.NoError(t, err)
	require.Equal(t, SystemClipboard{}, clip)

	clip, err = NewClipboard("command", []string{"wl-copy"})
	require.NoError(t, err)
	require.Equal(t, CommandClipboard{Argv: []string{"wl-copy"}}, clip)

	_, err = NewClipboard("command", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "clipboard_cmd")

	_, err = NewClipboard("x11", nil)
	require.Error(t, err)
}

func TestNewChordSender(t *testing.T) {
	sender, err := NewChordSender("hypr", nil, nil)
	require.NoError(t, err)
	require.IsType(t, HyprSender{}, sender)

	sender, err = NewChordSender("command", []string{"wtype", "-M", "ctrl", "v"}, nil)
	require.NoError(t, err)
	require.Equal(t, CommandSender{Argv: []string{"wtype", "-M", "ctrl", "v"}}, sender)

	sender, err = NewChordSender("keybd", nil, nil)
	require.NoError(t, err)
	require.IsType(t, &KeybdSender{}, sender)

	_, err = NewChordSender("command", nil, nil)
	require.Error(t, err)
	_, err = NewChordSender("xdotool", nil, nil)
	require.Error(t, err)
}

func TestCommandSenderReportsAllOrNothing(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	sent, err := CommandSender{Argv: []string{scriptPath, filepath.Join(t.TempDir(), "out")}}.SendPasteChord(context.Background())
	require.NoError(t, err)
	require.Equal(t, chordInputs, sent)

	sent, err = CommandSender{Argv: []string{writeFailScript(t, "paste failed")}}.SendPasteChord(context.Background())
	require.Error(t, err)
	require.Zero(t, sent)
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeFailScript(t *testing.T, message string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\necho " + "\"" + message + "\"" + " >&2\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func installHyprctlDefaultPasteFailStub(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hyprctl")
	script := `#!/usr/bin/env bash
set -euo pipefail
if [[ "${1:-}" == "-j" && "${2:-}" == "activewindow" ]]; then
  echo '{"address":"0xabc","class":"brave-browser","initialClass":"brave-browser"}'
  exit 0
fi
if [[ "${1:-}" == "--quiet" && "${2:-}" == "dispatch" && "${3:-}" == "sendshortcut" ]]; then
  echo "sendshortcut failed" >&2
  exit 1
fi
printf '%s\n' "$*" >> "${HYPR_ARGS_FILE}"
`
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(script)+"\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))
}

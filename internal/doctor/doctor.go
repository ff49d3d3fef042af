// Package doctor runs readiness diagnostics for config, credentials, tools,
// audio input, and the transcription endpoint.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/rbright/oto/internal/audio"
	"github.com/rbright/oto/internal/config"
	"github.com/rbright/oto/internal/hotkey"
	"github.com/rbright/oto/internal/transcribe"
)

const endpointTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Options overrides the probes Run uses.
type Options struct {
	// HTTPClient probes the endpoint. Nil builds one from the config.
	HTTPClient *http.Client
	// SelectDevice resolves audio.input. Nil uses audio.SelectDevice.
	SelectDevice func(ctx context.Context, input string) (audio.Selection, error)
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, opts Options) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkAPIKey(loaded))
	checks = append(checks, checkHotkey(cfg.Hotkey))

	if usesPulse(cfg.Audio.Backend) {
		selectDevice := opts.SelectDevice
		if selectDevice == nil {
			selectDevice = audio.SelectDevice
		}
		checks = append(checks, checkAudioSelection(ctx, cfg.Audio.Input, selectDevice))
	}

	if cfg.Clipboard.Backend == "command" {
		checks = append(checks, checkCommand(cfg.ClipboardCmd.Argv, "clipboard_cmd"))
	}

	switch pasteBackend(cfg.Paste.Backend) {
	case "command":
		checks = append(checks, checkCommand(cfg.PasteCmd.Argv, "paste_cmd"))
	case "hypr":
		checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))
		checks = append(checks, checkBinary("hyprctl", "hypr paste backend requires hyprctl"))
	}

	if cfg.Indicator.Enable {
		switch cfg.Indicator.Backend {
		case "hypr":
			checks = append(checks, checkBinary("hyprctl", "hypr indicator requires hyprctl"))
		case "desktop":
			checks = append(checks, checkBinary("busctl", "desktop indicator requires busctl"))
		}
	}

	client := opts.HTTPClient
	if client == nil {
		built, err := transcribe.NewHTTPClient(endpointTimeout, cfg.Transcription.HTTP2)
		if err != nil {
			checks = append(checks, Check{Name: "transcription.endpoint", Pass: false, Message: err.Error()})
			return Report{Checks: checks}
		}
		client = built
	}
	checks = append(checks, checkEndpoint(ctx, client, cfg.Transcription.Endpoint))

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("no file at %q; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(" (%d warning(s))", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkAPIKey reports where the key came from. The key itself is never printed.
func checkAPIKey(loaded config.Loaded) Check {
	if strings.TrimSpace(loaded.Config.Transcription.APIKey) == "" {
		return Check{Name: "api_key", Pass: false, Message: "not configured; set OTO_API_KEY or run `oto key set`"}
	}
	source := loaded.KeySource
	if source == config.KeySourceNone {
		source = "unknown"
	}
	return Check{Name: "api_key", Pass: true, Message: "configured via " + source}
}

func checkHotkey(cfg config.HotkeyConfig) Check {
	def, err := hotkey.Parse(cfg.Combo)
	if err != nil {
		return Check{Name: "hotkey", Pass: false, Message: err.Error()}
	}
	if cfg.Backend == "hook" && runtime.GOOS != "windows" {
		return Check{Name: "hotkey", Pass: false, Message: hotkey.ErrHookUnsupported.Error()}
	}
	backend := cfg.Backend
	if backend == "" {
		backend = "auto"
	}
	return Check{Name: "hotkey", Pass: true, Message: fmt.Sprintf("%s (backend %s)", def, backend)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	input string,
	selectDevice func(context.Context, string) (audio.Selection, error),
) Check {
	selection, err := selectDevice(ctx, input)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkEndpoint confirms the transcription endpoint answers HTTP at all.
// Any status counts: the endpoint only accepts authenticated POSTs.
func checkEndpoint(ctx context.Context, client *http.Client, endpoint string) Check {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = transcribe.DefaultEndpoint
	}

	ctx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return Check{Name: "transcription.endpoint", Pass: false, Message: err.Error()}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: "transcription.endpoint", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Check{Name: "transcription.endpoint", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, endpoint)}
	}
	return Check{Name: "transcription.endpoint", Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", endpoint, resp.StatusCode)}
}

func usesPulse(backend string) bool {
	switch backend {
	case "pulse":
		return true
	case "", "auto":
		return runtime.GOOS == "linux"
	default:
		return false
	}
}

// pasteBackend resolves "auto" the same way output.NewChordSender does.
func pasteBackend(backend string) string {
	if backend != "" && backend != "auto" {
		return backend
	}
	switch {
	case runtime.GOOS == "windows":
		return "sendinput"
	case os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "":
		return "hypr"
	default:
		return "keybd"
	}
}

package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/rbright/oto/internal/hotkey"
)

var (
	hotkeyBackends    = []string{"auto", "hook", "signal"}
	audioBackends     = []string{"auto", "pulse", "malgo"}
	pasteBackends     = []string{"auto", "sendinput", "keybd", "hypr", "command"}
	clipboardBackends = []string{"system", "command"}
	indicatorBackends = []string{"hypr", "desktop", "system"}
	logLevels         = []string{"debug", "info", "warn", "error"}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	var warnings []Warning

	t := cfg.Transcription
	if strings.TrimSpace(t.Model) == "" {
		return nil, fmt.Errorf("oto.model must not be empty")
	}
	endpoint, err := url.Parse(strings.TrimSpace(t.Endpoint))
	if err != nil || endpoint.Host == "" || (endpoint.Scheme != "https" && endpoint.Scheme != "http") {
		return nil, fmt.Errorf("oto.endpoint must be an http(s) URL")
	}
	if endpoint.Scheme == "http" {
		warnings = append(warnings, Warning{Message: "oto.endpoint uses plain http; the API key is sent unencrypted"})
	}
	if t.TimeoutMS <= 0 {
		return nil, fmt.Errorf("oto.timeout_ms must be > 0")
	}
	if lang := strings.TrimSpace(t.Language); lang != "" && len(lang) != 2 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("oto.language %q is not an ISO 639-1 code", lang)})
	}

	if _, err := hotkey.Parse(cfg.Hotkey.Combo); err != nil {
		return nil, fmt.Errorf("hotkey.combo: %w", err)
	}
	if err := oneOf("hotkey.backend", cfg.Hotkey.Backend, hotkeyBackends); err != nil {
		return nil, err
	}

	if err := oneOf("audio.backend", cfg.Audio.Backend, audioBackends); err != nil {
		return nil, err
	}
	if cfg.Audio.MaxRecordingSeconds <= 0 {
		return nil, fmt.Errorf("audio.max_recording_seconds must be > 0")
	}

	if err := oneOf("paste.backend", cfg.Paste.Backend, pasteBackends); err != nil {
		return nil, err
	}
	if cfg.Paste.DelayMS < 0 {
		return nil, fmt.Errorf("paste.delay_ms must be >= 0")
	}
	if cfg.Paste.RestoreDelayMS < 0 {
		return nil, fmt.Errorf("paste.restore_delay_ms must be >= 0")
	}
	if strings.EqualFold(cfg.Paste.Backend, "command") {
		if cfg.PasteCmd.Raw != "" && len(cfg.PasteCmd.Argv) == 0 {
			return nil, fmt.Errorf("paste_cmd is configured but empty")
		}
		if len(cfg.PasteCmd.Argv) == 0 {
			return nil, fmt.Errorf("paste_cmd must be set when paste.backend=command")
		}
	}

	if err := oneOf("clipboard.backend", cfg.Clipboard.Backend, clipboardBackends); err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Clipboard.Backend, "command") {
		if len(cfg.ClipboardCmd.Argv) == 0 {
			return nil, fmt.Errorf("clipboard_cmd must not be empty when clipboard.backend=command")
		}
		if cfg.Paste.RestoreClipboard {
			warnings = append(warnings, Warning{Message: "paste.restore_clipboard has no effect with clipboard.backend=command"})
		}
	}

	if err := oneOf("indicator.backend", cfg.Indicator.Backend, indicatorBackends); err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Indicator.Backend, "desktop") && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if err := oneOf("log.level", cfg.Log.Level, logLevels); err != nil {
		return nil, err
	}

	return warnings, nil
}

func oneOf(field, value string, allowed []string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%s must be one of: %s", field, strings.Join(allowed, ", "))
	}
	return nil
}

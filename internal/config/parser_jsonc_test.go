package config

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeJSONCRemovesCommentsAndTrailingCommas(t *testing.T) {
	input := `
{
  // line comment
  "items": [
    "one", /* block comment */
    "two", // trailing
  ],
  "nested": {
    "enabled": true,
  },
}
`

	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.NotContains(t, normalized, "//")
	require.NotContains(t, normalized, "/*")
	require.Len(t, normalized, len(input))
	require.Equal(t, strings.Count(input, "\n"), strings.Count(normalized, "\n"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(normalized), &decoded))
	require.Equal(t, []any{"one", "two"}, decoded["items"])
}

func TestNormalizeJSONCRetainsCommentLikeTextInsideStrings(t *testing.T) {
	input := `{"value":"contains // and /* comment-like */ text, \"quoted,}\"",}`
	normalized, err := normalizeJSONC(input)
	require.NoError(t, err)
	require.Contains(t, normalized, `// and /* comment-like */ text, \"quoted,}\"`)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(normalized), &decoded))
}

func TestNormalizeJSONCUnterminatedBlockCommentFails(t *testing.T) {
	_, err := normalizeJSONC("{ /* unterminated ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unterminated block comment")
}

func TestEnsureSingleJSONValueRejectsExtraPayload(t *testing.T) {
	decoder := json.NewDecoder(strings.NewReader(`{"one":1}{"two":2}`))
	var payload map[string]any
	require.NoError(t, decoder.Decode(&payload))

	err := ensureSingleJSONValue(decoder)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestOffsetToLineCol(t *testing.T) {
	content := "line1\nline2\nline3"
	line, col := offsetToLineCol(content, 1)
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	line, col = offsetToLineCol(content, 8) // line2, col2
	require.Equal(t, 2, line)
	require.Equal(t, 2, col)

	line, col = offsetToLineCol(content, 999)
	require.Equal(t, 3, line)
	require.Equal(t, 5, col)
}

func TestParseJSONCFullSurface(t *testing.T) {
	cfg, warnings, err := parseJSONC(`{
  "oto": {
    "endpoint": "https://example.test/v1/audio/transcriptions",
    "model": " whisper-1 ",
    "language": "fr",
    "add_punctuation": false,
    "preserve_newlines": false,
    "http2": false,
    "timeout_ms": 15000,
  },
  "hotkey": { "combo": "ctrl+alt+d", "backend": "signal" },
  "audio": { "backend": "malgo", "input": "  USB Mic", "max_recording_seconds": 90 },
  "paste": { "backend": "command", "delay_ms": 0, "restore_clipboard": true, "restore_delay_ms": 500 },
  "clipboard": { "backend": "system" },
  "clipboard_cmd": "xclip -selection clipboard",
  "paste_cmd": "wtype -M ctrl v",
  "indicator": { "enable": false, "backend": " desktop ", "desktop_app_name": "  oto-dev  ", "sound_enable": false, "error_timeout_ms": 0 },
  "log": { "level": "warn" },
}`, Default())
	require.NoError(t, err)
	require.Empty(t, warnings)

	require.Equal(t, TranscriptionConfig{
		Endpoint:  "https://example.test/v1/audio/transcriptions",
		Model:     "whisper-1",
		Language:  "fr",
		TimeoutMS: 15000,
	}, cfg.Transcription)
	require.Equal(t, HotkeyConfig{Combo: "ctrl+alt+d", Backend: "signal"}, cfg.Hotkey)
	require.Equal(t, AudioConfig{Backend: "malgo", Input: "  USB Mic", MaxRecordingSeconds: 90}, cfg.Audio)
	require.Equal(t, PasteConfig{Backend: "command", DelayMS: 0, RestoreClipboard: true, RestoreDelayMS: 500}, cfg.Paste)
	require.Equal(t, []string{"xclip", "-selection", "clipboard"}, cfg.ClipboardCmd.Argv)
	require.Equal(t, []string{"wtype", "-M", "ctrl", "v"}, cfg.PasteCmd.Argv)
	require.Equal(t, IndicatorConfig{Backend: "desktop", DesktopAppName: "oto-dev"}, cfg.Indicator)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestParseJSONCWarnsOnPlainTextAPIKey(t *testing.T) {
	_, warnings, err := parseJSONC("{\n  \"oto\": {\n    \"api_key\": \"sk-test\"\n  }\n}", Default())
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, 3, warnings[0].Line)
	require.Contains(t, warnings[0].Message, "plain text")
}

func TestParseJSONCRejectsUnknownField(t *testing.T) {
	_, _, err := parseJSONC(`{"server": {"listen": "127.0.0.1:8080"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")

	_, _, err = parseJSONC(`{"audio": {"fallback": "default"}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestParseJSONCRejectsInvalidCommandArgv(t *testing.T) {
	_, _, err := parseJSONC(`{"clipboard_cmd":"unterminated ' quote"}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid clipboard_cmd")

	_, _, err = parseJSONC(`{"paste_cmd":"unterminated ' quote"}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid paste_cmd")
}

func TestParseJSONCRejectsMultipleTopLevelValues(t *testing.T) {
	_, _, err := parseJSONC(`{"paste":{"delay_ms":1}}{"paste":{"delay_ms":2}}`, Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple JSON values")
}

func TestParseJSONCErrorsIncludeLocation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLoc string
	}{
		{
			name:    "type error",
			input:   "{\n  \"audio\": {\"max_recording_seconds\": \"long\"}\n}",
			wantLoc: "line 2",
		},
		{
			name:    "syntax error after comment",
			input:   "{\n  // note\n  \"log\": {\"level\" \"info\"}\n}",
			wantLoc: "line 3",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseJSONC(tc.input, Default())
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantLoc)
			require.Contains(t, err.Error(), "column")
		})
	}
}

func TestParseBlankContentReturnsBase(t *testing.T) {
	cfg, warnings, err := Parse("  \n ", Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

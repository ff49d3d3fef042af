package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	OTO       *jsoncOTO       `json:"oto"`
	Hotkey    *jsoncHotkey    `json:"hotkey"`
	Audio     *jsoncAudio     `json:"audio"`
	Paste     *jsoncPaste     `json:"paste"`
	Clipboard *jsoncClipboard `json:"clipboard"`
	Indicator *jsoncIndicator `json:"indicator"`
	Log       *jsoncLog       `json:"log"`

	ClipboardCmd *string `json:"clipboard_cmd"`
	PasteCmd     *string `json:"paste_cmd"`
}

type jsoncOTO struct {
	APIKey           *string `json:"api_key"`
	Endpoint         *string `json:"endpoint"`
	Model            *string `json:"model"`
	Language         *string `json:"language"`
	AddPunctuation   *bool   `json:"add_punctuation"`
	PreserveNewlines *bool   `json:"preserve_newlines"`
	HTTP2            *bool   `json:"http2"`
	TimeoutMS        *int    `json:"timeout_ms"`
}

type jsoncHotkey struct {
	Combo   *string `json:"combo"`
	Backend *string `json:"backend"`
}

type jsoncAudio struct {
	Backend             *string `json:"backend"`
	Input               *string `json:"input"`
	MaxRecordingSeconds *int    `json:"max_recording_seconds"`
}

type jsoncPaste struct {
	Backend          *string `json:"backend"`
	DelayMS          *int    `json:"delay_ms"`
	RestoreClipboard *bool   `json:"restore_clipboard"`
	RestoreDelayMS   *int    `json:"restore_delay_ms"`
}

type jsoncClipboard struct {
	Backend *string `json:"backend"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncLog struct {
	Level *string `json:"level"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, locate(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, locate(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	var warnings []Warning
	if payload.OTO != nil && payload.OTO.APIKey != nil && strings.TrimSpace(*payload.OTO.APIKey) != "" {
		warnings = append(warnings, Warning{
			Line:    lineOf(content, `"api_key"`),
			Message: "oto.api_key is stored in plain text; prefer OTO_API_KEY or `oto key set`",
		})
	}

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}

func (p jsoncConfig) applyTo(cfg *Config) error {
	if o := p.OTO; o != nil {
		setString(&cfg.Transcription.APIKey, o.APIKey)
		setString(&cfg.Transcription.Endpoint, o.Endpoint)
		setString(&cfg.Transcription.Model, o.Model)
		setString(&cfg.Transcription.Language, o.Language)
		setBool(&cfg.Transcription.AddPunctuation, o.AddPunctuation)
		setBool(&cfg.Transcription.PreserveNewlines, o.PreserveNewlines)
		setBool(&cfg.Transcription.HTTP2, o.HTTP2)
		setInt(&cfg.Transcription.TimeoutMS, o.TimeoutMS)
	}
	if h := p.Hotkey; h != nil {
		setString(&cfg.Hotkey.Combo, h.Combo)
		setString(&cfg.Hotkey.Backend, h.Backend)
	}
	if a := p.Audio; a != nil {
		setString(&cfg.Audio.Backend, a.Backend)
		if a.Input != nil {
			// device names may legitimately carry padding
			cfg.Audio.Input = *a.Input
		}
		setInt(&cfg.Audio.MaxRecordingSeconds, a.MaxRecordingSeconds)
	}
	if v := p.Paste; v != nil {
		setString(&cfg.Paste.Backend, v.Backend)
		setInt(&cfg.Paste.DelayMS, v.DelayMS)
		setBool(&cfg.Paste.RestoreClipboard, v.RestoreClipboard)
		setInt(&cfg.Paste.RestoreDelayMS, v.RestoreDelayMS)
	}
	if c := p.Clipboard; c != nil {
		setString(&cfg.Clipboard.Backend, c.Backend)
	}
	if i := p.Indicator; i != nil {
		setBool(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.Backend, i.Backend)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setInt(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}
	if l := p.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
	}

	if p.ClipboardCmd != nil {
		cmd, err := newCommandConfig(*p.ClipboardCmd)
		if err != nil {
			return fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.ClipboardCmd = cmd
	}
	if p.PasteCmd != nil {
		cmd, err := newCommandConfig(*p.PasteCmd)
		if err != nil {
			return fmt.Errorf("invalid paste_cmd: %w", err)
		}
		cfg.PasteCmd = cmd
	}
	return nil
}

func newCommandConfig(raw string) (CommandConfig, error) {
	argv, err := parseArgv(raw)
	if err != nil {
		return CommandConfig{}, err
	}
	return CommandConfig{Raw: raw, Argv: argv}, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// normalizeJSONC blanks comments and trailing commas in place. Every removed
// byte becomes a space and newlines survive, so decoder offsets still map to
// the original line and column.
func normalizeJSONC(content string) (string, error) {
	out := []byte(content)
	n := len(out)

	for i := 0; i < n; i++ {
		switch ch := out[i]; {
		case ch == '"':
			i = skipString(out, i)
		case ch == '/' && i+1 < n && out[i+1] == '/':
			for ; i < n && out[i] != '\n' && out[i] != '\r'; i++ {
				out[i] = ' '
			}
		case ch == '/' && i+1 < n && out[i+1] == '*':
			end := strings.Index(string(out[i+2:]), "*/")
			if end < 0 {
				return "", errors.New("unterminated block comment in JSONC")
			}
			stop := i + 2 + end + 2
			for ; i < stop; i++ {
				if out[i] != '\n' && out[i] != '\r' && out[i] != '\t' {
					out[i] = ' '
				}
			}
			i--
		case ch == ',':
			if closesContainer(out, i+1) {
				out[i] = ' '
			}
		}
	}
	return string(out), nil
}

// skipString returns the index of the closing quote of the string opened at i.
func skipString(buf []byte, i int) int {
	for j := i + 1; j < len(buf); j++ {
		switch buf[j] {
		case '\\':
			j++
		case '"':
			return j
		}
	}
	return len(buf)
}

// closesContainer reports whether the next significant byte from i, past
// whitespace and comments, is '}' or ']'.
func closesContainer(buf []byte, i int) bool {
	for i < len(buf) {
		switch {
		case isJSONWhitespace(buf[i]):
			i++
		case buf[i] == '/' && i+1 < len(buf) && buf[i+1] == '/':
			for i < len(buf) && buf[i] != '\n' {
				i++
			}
		case buf[i] == '/' && i+1 < len(buf) && buf[i+1] == '*':
			end := strings.Index(string(buf[i+2:]), "*/")
			if end < 0 {
				return false
			}
			i += 2 + end + 2
		default:
			return buf[i] == '}' || buf[i] == ']'
		}
	}
	return false
}

func isJSONWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\n' || ch == '\r' || ch == '\t'
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return errors.New("multiple JSON values are not allowed")
	}
	return err
}

// locate prefixes decode errors with the line and column they point at.
func locate(content string, err error) error {
	var offset int64 = -1

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 {
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// offsetToLineCol maps a decoder offset (bytes consumed) to the 1-based
// position of the last consumed byte.
func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	end := min(int(offset), len(content))
	prefix := content[:end-1]
	line := strings.Count(prefix, "\n") + 1
	col := end - strings.LastIndexByte(prefix, '\n') - 1
	return line, col
}

func lineOf(content, needle string) int {
	idx := strings.Index(content, needle)
	if idx < 0 {
		return 0
	}
	return strings.Count(content[:idx], "\n") + 1
}

// Package config resolves, parses, validates, and defaults oto configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Transcription TranscriptionConfig
	Hotkey        HotkeyConfig
	Audio         AudioConfig
	Paste         PasteConfig
	Clipboard     ClipboardConfig
	ClipboardCmd  CommandConfig
	PasteCmd      CommandConfig
	Indicator     IndicatorConfig
	Log           LogConfig
}

// TranscriptionConfig controls the remote speech-to-text request.
type TranscriptionConfig struct {
	APIKey           string
	Endpoint         string
	Model            string
	Language         string
	AddPunctuation   bool
	PreserveNewlines bool
	HTTP2            bool
	TimeoutMS        int
}

// HotkeyConfig selects the push-to-talk combination and how it is observed.
type HotkeyConfig struct {
	Combo   string
	Backend string
}

// AudioConfig controls the capture backend and input-source selection.
type AudioConfig struct {
	Backend             string
	Input               string
	MaxRecordingSeconds int
}

// PasteConfig controls how transcripts reach the focused window.
type PasteConfig struct {
	Backend          string
	DelayMS          int
	RestoreClipboard bool
	RestoreDelayMS   int
}

type ClipboardConfig struct {
	Backend string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

type LogConfig struct {
	Level string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

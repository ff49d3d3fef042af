package config

import "github.com/rbright/oto/internal/transcribe"

// Default returns the configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Transcription: TranscriptionConfig{
			Endpoint:         transcribe.DefaultEndpoint,
			Model:            transcribe.DefaultModel,
			AddPunctuation:   true,
			PreserveNewlines: true,
			HTTP2:            true,
			TimeoutMS:        60000,
		},
		Hotkey: HotkeyConfig{Combo: "ctrl+alt+space", Backend: "auto"},
		Audio: AudioConfig{
			Backend:             "auto",
			Input:               "default",
			MaxRecordingSeconds: 60,
		},
		Paste: PasteConfig{
			Backend:        "auto",
			DelayMS:        50,
			RestoreDelayMS: 300,
		},
		Clipboard:    ClipboardConfig{Backend: "system"},
		ClipboardCmd: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "oto",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Log: LogConfig{Level: "info"},
	}
}

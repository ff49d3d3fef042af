package session

import (
	"time"

	"github.com/rbright/oto/internal/output"
	"github.com/rbright/oto/internal/transcribe"
)

const (
	DefaultIdleDelay    = 2 * time.Second
	DefaultMaxRecording = 60 * time.Second
)

// Settings is the snapshot a cycle takes at press time. Later changes do
// not reach an in-flight cycle.
type Settings struct {
	MaxRecording  time.Duration
	IdleDelay     time.Duration
	SoundCues     bool
	Transcription transcribe.Options
	Injection     output.Options
}

// SettingsFunc returns the current settings snapshot.
type SettingsFunc func() Settings

func staticSettings(s Settings) SettingsFunc {
	return func() Settings { return s }
}

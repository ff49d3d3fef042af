// Package audio captures microphone PCM and packages it as WAV recordings.
package audio

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Capture format shared by every backend.
const (
	SampleRate = 16000
	Channels   = 1
	BitDepth   = 16

	chunkMillis = 50
	// ChunkBytes is one 50ms period of 16kHz mono s16.
	ChunkBytes = SampleRate * Channels * (BitDepth / 8) * chunkMillis / 1000
)

// Stream is an open capture device.
type Stream interface {
	Close() error
}

// Source opens capture streams. onChunk receives little-endian s16 PCM and
// must not retain the slice past the call.
type Source interface {
	Open(ctx context.Context, onChunk func([]byte)) (Stream, error)
}

// NewSource resolves an audio.backend value. "auto" picks Pulse on Linux and
// miniaudio elsewhere.
func NewSource(backend string, input string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "auto":
		if runtime.GOOS == "linux" {
			return PulseSource{Input: input}, nil
		}
		return MalgoSource{}, nil
	case "pulse":
		return PulseSource{Input: input}, nil
	case "malgo":
		return MalgoSource{}, nil
	default:
		return nil, fmt.Errorf("unsupported audio backend %q", backend)
	}
}

package audio

import (
	"encoding/binary"
	"math"
)

const (
	levelFloorDB   = -60.0
	levelSilenceDB = 1e-10
)

// Level maps the RMS energy of little-endian s16 PCM onto [0,1], linear in
// decibels between -60 dBFS and 0 dBFS.
func Level(pcm []byte) float32 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
		sum += sample * sample
	}
	rms := math.Sqrt(sum / float64(n))
	db := 20 * math.Log10(math.Max(rms, levelSilenceDB))

	level := (db - levelFloorDB) / -levelFloorDB
	switch {
	case level < 0:
		return 0
	case level > 1:
		return 1
	default:
		return float32(level)
	}
}

package audio

import (
	"encoding/binary"
	"errors"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the RIFF audio format tag for integer PCM.
const wavFormatPCM = 1

// seekBuffer is an in-memory io.WriteSeeker so the WAV encoder can patch its
// header sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if extra := b.pos + len(p) - len(b.buf); extra > 0 {
		b.buf = append(b.buf, make([]byte, extra)...)
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.New("seekBuffer: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("seekBuffer: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}

// Bytes returns a copy of the written contents.
func (b *seekBuffer) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// container appends s16 PCM to a growing WAV file held in memory.
type container struct {
	out     *seekBuffer
	enc     *wav.Encoder
	format  *goaudio.Format
	carry   []byte
	samples int
}

func newContainer() *container {
	out := &seekBuffer{}
	return &container{
		out:    out,
		enc:    wav.NewEncoder(out, SampleRate, BitDepth, Channels, wavFormatPCM),
		format: &goaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
	}
}

// Append encodes whole samples and carries a trailing odd byte to the next call.
func (c *container) Append(pcm []byte) error {
	if len(c.carry) > 0 {
		pcm = append(c.carry, pcm...)
		c.carry = nil
	}
	if len(pcm)%2 == 1 {
		c.carry = []byte{pcm[len(pcm)-1]}
		pcm = pcm[:len(pcm)-1]
	}
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}

	data := make([]int, n)
	for i := 0; i < n; i++ {
		data[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	if err := c.enc.Write(&goaudio.IntBuffer{Format: c.format, Data: data, SourceBitDepth: BitDepth}); err != nil {
		return err
	}
	c.samples += n
	return nil
}

func (c *container) Samples() int {
	return c.samples
}

// Finish patches the header and returns the file. It returns nil when no
// samples were appended.
func (c *container) Finish() ([]byte, error) {
	if c.samples == 0 {
		return nil, nil
	}
	if err := c.enc.Close(); err != nil {
		return nil, err
	}
	return c.out.Bytes(), nil
}

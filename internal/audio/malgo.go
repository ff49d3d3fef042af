package audio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
)

// MalgoSource records from the system default capture device through
// miniaudio (WASAPI, CoreAudio, ALSA).
type MalgoSource struct{}

// Open initializes a miniaudio context and a 16kHz mono s16 capture device.
func (MalgoSource) Open(ctx context.Context, onChunk func([]byte)) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = Channels
	cfg.SampleRate = SampleRate
	cfg.PeriodSizeInMilliseconds = chunkMillis

	device, err := malgo.InitDevice(mgCtx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			onChunk(samples)
		},
	})
	if err != nil {
		freeContext(mgCtx)
		return nil, fmt.Errorf("failed to initialize malgo device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mgCtx)
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	return &malgoStream{ctx: mgCtx, device: device}, nil
}

type malgoStream struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func (s *malgoStream) Close() error {
	err := s.device.Stop()
	s.device.Uninit()
	freeContext(s.ctx)
	return err
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

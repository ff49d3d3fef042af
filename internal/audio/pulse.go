package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const pulseAppName = "oto"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus a warning when the
// configured input could not be used as-is.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newPulseClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(pulseAppName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns Pulse input sources with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceStateString(info.State),
			Available:   sourceAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input against live devices.
func SelectDevice(ctx context.Context, input string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input)
}

// selectDeviceFromList picks the device matching input, or the default one.
// A matched device that is muted or unavailable falls back to the default.
func selectDeviceFromList(devices []Device, input string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	input = strings.TrimSpace(strings.ToLower(input))

	var defaultDevice, matched *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if matched == nil && input != "" && input != "default" && deviceMatches(*dev, input) {
			matched = dev
		}
	}

	primary := defaultDevice
	if input != "" && input != "default" {
		if matched == nil {
			return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
		}
		primary = matched
	}
	if primary == nil {
		return Selection{}, errors.New("default audio source is unavailable")
	}
	if usable(*primary) {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}
	if defaultDevice == nil || defaultDevice.ID == primary.ID || !usable(*defaultDevice) {
		return Selection{}, fmt.Errorf("audio input %q is %s and no usable fallback exists", primary.ID, reason)
	}
	return Selection{
		Device:   *defaultDevice,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, defaultDevice.ID),
		Fallback: true,
	}, nil
}

func usable(dev Device) bool {
	return dev.Available && !dev.Muted
}

func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

// PulseSource records from a PulseAudio/PipeWire source.
type PulseSource struct {
	// Input is a device id or description fragment; empty means the default source.
	Input string
}

// Open starts a 16kHz mono s16 record stream feeding onChunk.
func (p PulseSource) Open(ctx context.Context, onChunk func([]byte)) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	var source *pulse.Source
	input := strings.TrimSpace(p.Input)
	if input == "" || strings.EqualFold(input, "default") {
		source, err = client.DefaultSource()
	} else {
		var selection Selection
		selection, err = SelectDevice(ctx, input)
		if err == nil {
			source, err = client.SourceByID(selection.Device.ID)
		}
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source: %w", err)
	}

	writer := pulse.NewWriter(writerFunc(func(b []byte) (int, error) {
		onChunk(b)
		return len(b), nil
	}), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(ChunkBytes),
		pulse.RecordMediaName("oto dictation"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	stream.Start()
	return &pulseStream{client: client, stream: stream}, nil
}

type pulseStream struct {
	client *pulse.Client
	stream *pulse.RecordStream
}

func (s *pulseStream) Close() error {
	s.stream.Stop()
	s.stream.Close()
	s.client.Close()
	return nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}

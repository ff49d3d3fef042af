package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDeviceUnavailable reports that the capture device could not be opened.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// Recording is one completed capture session.
type Recording struct {
	ID string
	// Audio is a complete WAV file, nil when no samples were captured.
	Audio              []byte
	Duration           time.Duration
	MaxDurationReached bool
	StartedAt          time.Time
}

// Empty reports whether the recording holds no audio.
func (r Recording) Empty() bool {
	return len(r.Audio) == 0
}

// Recorder runs at most one capture session at a time and reports each
// finished session exactly once on Completed.
type Recorder struct {
	source Source
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	active *captureSession

	completed chan Recording
	levels    chan float32
}

type captureSession struct {
	id        string
	startedAt time.Time
	stream    Stream
	wav       *container
	timer     *time.Timer
	stopped   bool
	writeErr  error
}

// NewRecorder builds a recorder over source. A nil now uses time.Now.
func NewRecorder(source Source, logger *slog.Logger, now func() time.Time) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		source:    source,
		logger:    logger,
		now:       now,
		completed: make(chan Recording, 1),
		levels:    make(chan float32, 1),
	}
}

// Completed delivers finished recordings.
func (r *Recorder) Completed() <-chan Recording {
	return r.completed
}

// Levels delivers the most recent input level. Unread values are replaced.
func (r *Recorder) Levels() <-chan float32 {
	return r.levels
}

// Recording reports whether a session is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start opens a capture session. It is a no-op while one is already open.
// When the device fails to open, the session stays open without audio so the
// next Stop still reports an empty recording.
func (r *Recorder) Start(ctx context.Context, maxDuration time.Duration) error {
	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return nil
	}
	s := &captureSession{
		id:        uuid.NewString(),
		startedAt: r.now(),
		wav:       newContainer(),
	}
	r.active = s
	if maxDuration > 0 {
		s.timer = time.AfterFunc(maxDuration, func() { r.finish(s, true) })
	}
	r.mu.Unlock()

	stream, err := r.source.Open(ctx, func(chunk []byte) { r.append(s, chunk) })

	r.mu.Lock()
	if s.stopped {
		r.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
	} else {
		s.stream = stream
		r.mu.Unlock()
	}

	if err != nil {
		r.logger.Error("audio device open failed", "session_id", s.id, "error", err.Error())
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	r.logger.Debug("recording started", "session_id", s.id, "max_duration_ms", maxDuration.Milliseconds())
	return nil
}

// Stop ends the open session. It is a no-op when none is open.
func (r *Recorder) Stop() {
	r.mu.Lock()
	s := r.active
	r.mu.Unlock()
	if s != nil {
		r.finish(s, false)
	}
}

func (r *Recorder) append(s *captureSession, chunk []byte) {
	r.mu.Lock()
	if s.stopped {
		r.mu.Unlock()
		return
	}
	if err := s.wav.Append(chunk); err != nil && s.writeErr == nil {
		s.writeErr = err
	}
	r.mu.Unlock()

	r.publishLevel(Level(chunk))
}

func (r *Recorder) publishLevel(level float32) {
	select {
	case r.levels <- level:
		return
	default:
	}
	select {
	case <-r.levels:
	default:
	}
	select {
	case r.levels <- level:
	default:
	}
}

// finish detaches s and emits its recording. Only the first caller for a
// given session emits.
func (r *Recorder) finish(s *captureSession, maxReached bool) {
	r.mu.Lock()
	if s.stopped || r.active != s {
		r.mu.Unlock()
		return
	}
	s.stopped = true
	r.active = nil
	if s.timer != nil {
		s.timer.Stop()
	}
	stream := s.stream
	r.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			r.logger.Warn("audio stream close failed", "session_id", s.id, "error", err.Error())
		}
	}

	rec := Recording{
		ID:                 s.id,
		Duration:           r.now().Sub(s.startedAt),
		MaxDurationReached: maxReached,
		StartedAt:          s.startedAt,
	}
	if s.writeErr != nil {
		r.logger.Error("wav encoding failed", "session_id", s.id, "error", s.writeErr.Error())
	} else {
		wavBytes, err := s.wav.Finish()
		if err != nil {
			r.logger.Error("wav finalize failed", "session_id", s.id, "error", err.Error())
		}
		rec.Audio = wavBytes
	}

	r.logger.Debug("recording finished",
		"session_id", s.id,
		"samples", s.wav.Samples(),
		"duration_ms", rec.Duration.Milliseconds(),
		"max_duration_reached", maxReached,
	)

	select {
	case r.completed <- rec:
	default:
		r.logger.Error("recording completion dropped", "session_id", s.id)
	}
}

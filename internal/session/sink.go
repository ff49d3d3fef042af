package session

import "github.com/rbright/oto/internal/fsm"

// Sink receives UI signals from the controller loop. Calls are made from a
// single goroutine and must not block for long.
type Sink interface {
	StateChanged(state fsm.State, status string)
	Level(level float32)
	Notify(message string)
	Error(message string)
}

// Cuer is implemented by sinks that play start/stop cues.
type Cuer interface {
	Cue(effect fsm.Effect)
}

type noopSink struct{}

func (noopSink) StateChanged(fsm.State, string) {}
func (noopSink) Level(float32)                  {}
func (noopSink) Notify(string)                  {}
func (noopSink) Error(string)                   {}

// MultiSink fans signals out to every member.
type MultiSink []Sink

func (m MultiSink) StateChanged(state fsm.State, status string) {
	for _, s := range m {
		s.StateChanged(state, status)
	}
}

func (m MultiSink) Level(level float32) {
	for _, s := range m {
		s.Level(level)
	}
}

func (m MultiSink) Notify(message string) {
	for _, s := range m {
		s.Notify(message)
	}
}

func (m MultiSink) Error(message string) {
	for _, s := range m {
		s.Error(message)
	}
}

func (m MultiSink) Cue(effect fsm.Effect) {
	for _, s := range m {
		if c, ok := s.(Cuer); ok {
			c.Cue(effect)
		}
	}
}

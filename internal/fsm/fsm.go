// Package fsm defines the dictation cycle state machine as a pure transition function.
package fsm

import "fmt"

type State string

type Event string

// Effect is a side effect the caller must apply after a successful transition.
type Effect string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateDone       State = "done"
)

const (
	EventPress         Event = "press"
	EventRelease       Event = "release"
	EventCaptured      Event = "captured"
	EventCapturedEmpty Event = "captured_empty"
	EventCompleted     Event = "completed"
	EventFailed        Event = "failed"
	EventSettled       Event = "settled"
)

const (
	EffectStartCapture Effect = "start_capture"
	EffectStopCapture  Effect = "stop_capture"
	EffectTranscribe   Effect = "transcribe"
	EffectScheduleIdle Effect = "schedule_idle"
	EffectCueStart     Effect = "cue_start"
	EffectCueStop      Effect = "cue_stop"
)

// Transition returns the next state and the effects it requires.
// Invalid pairs leave the state unchanged and return an error.
func Transition(current State, event Event) (State, []Effect, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventPress:
			return StateRecording, []Effect{EffectStartCapture, EffectCueStart}, nil
		default:
			return current, nil, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventRelease:
			return StateProcessing, []Effect{EffectStopCapture, EffectCueStop}, nil
		case EventCaptured:
			// max duration reached while the key is still held
			return StateProcessing, []Effect{EffectTranscribe, EffectCueStop}, nil
		case EventCapturedEmpty:
			return StateIdle, nil, nil
		default:
			return current, nil, invalidTransition(current, event)
		}
	case StateProcessing:
		switch event {
		case EventCaptured:
			return StateProcessing, []Effect{EffectTranscribe}, nil
		case EventCapturedEmpty:
			return StateIdle, nil, nil
		case EventCompleted, EventFailed:
			return StateDone, []Effect{EffectScheduleIdle}, nil
		default:
			return current, nil, invalidTransition(current, event)
		}
	case StateDone:
		switch event {
		case EventSettled:
			return StateIdle, nil, nil
		default:
			return current, nil, invalidTransition(current, event)
		}
	default:
		return current, nil, fmt.Errorf("unknown state %q", current)
	}
}

// Has reports whether effects contains want.
func Has(effects []Effect, want Effect) bool {
	for _, effect := range effects {
		if effect == want {
			return true
		}
	}
	return false
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}

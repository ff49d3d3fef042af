package hotkey

// Edge is a press or release transition of the tracked combination.
type Edge string

const (
	Pressed  Edge = "pressed"
	Released Edge = "released"
)

// Event is one edge delivered to listeners' consumers.
type Event struct {
	Edge Edge
	// Synthetic marks releases generated by Stop or SetDefinition.
	Synthetic bool
}

// Tracker is the Up/Down edge detector for one Definition. It is not safe
// for concurrent use; listeners serialize access.
type Tracker struct {
	def  Definition
	down bool
}

func NewTracker(def Definition) *Tracker {
	return &Tracker{def: def}
}

func (t *Tracker) Definition() Definition {
	return t.def
}

func (t *Tracker) Down() bool {
	return t.down
}

// KeyDown reports a press when key matches, the sampled modifiers equal the
// configured set, and the combination is not already down.
func (t *Tracker) KeyDown(key Key, mods Modifier) (Event, bool) {
	if t.down || key != t.def.Key || mods != t.def.Modifiers {
		return Event{}, false
	}
	t.down = true
	return Event{Edge: Pressed}, true
}

// KeyUp reports a release when the tracked key goes up while down.
// Modifier state is irrelevant here.
func (t *Tracker) KeyUp(key Key) (Event, bool) {
	if !t.down || key != t.def.Key {
		return Event{}, false
	}
	t.down = false
	return Event{Edge: Released}, true
}

// Reset forces the tracker up and returns a synthetic release if it was down.
func (t *Tracker) Reset() (Event, bool) {
	if !t.down {
		return Event{}, false
	}
	t.down = false
	return Event{Edge: Released, Synthetic: true}, true
}

// Replace swaps the definition, releasing the old combination first.
func (t *Tracker) Replace(def Definition) (Event, bool) {
	ev, released := t.Reset()
	t.def = def
	return ev, released
}

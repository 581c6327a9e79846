package workflow

// State is a stage of a month's invoice generation run
type State string

const (
	StateIdle       State = "IDLE"
	StateValidating State = "VALIDATING"
	StateBuilding   State = "BUILDING"
	StateSubmitting State = "SUBMITTING"
	StateLocking    State = "LOCKING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

var validStates = map[State]bool{
	StateIdle:       true,
	StateValidating: true,
	StateBuilding:   true,
	StateSubmitting: true,
	StateLocking:    true,
	StateDone:       true,
	StateFailed:     true,
}

var terminalStates = map[State]bool{
	StateDone:   true,
	StateFailed: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known generation state
func (s State) IsValid() bool {
	return validStates[s]
}

// States returns every known state
func States() []State {
	return []State{StateIdle, StateValidating, StateBuilding, StateSubmitting, StateLocking, StateDone, StateFailed}
}

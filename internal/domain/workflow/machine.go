package workflow

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a trigger is not permitted in the current state
var ErrInvalidTransition = errors.New("invalid state transition")

// Transition records one state change of a run
type Transition struct {
	From    State
	To      State
	Trigger Trigger
}

// TransitionListener is called after every successful transition
type TransitionListener func(ctx context.Context, t Transition)

type edge struct {
	from    State
	trigger Trigger
}

// Machine tracks one generation run. It is not safe for concurrent use;
// each run owns its machine.
type Machine struct {
	state     State
	edges     map[edge]State
	listeners []TransitionListener
	history   []Transition
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// CanFire reports whether trigger is permitted in the current state
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.edges[edge{m.state, trigger}]
	return ok
}

// Fire moves the run along the edge for trigger. A rejected trigger leaves
// the state and history untouched.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) error {
	to, ok := m.edges[edge{m.state, trigger}]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.state)
	}

	record := Transition{From: m.state, To: to, Trigger: trigger}
	m.state = to
	m.history = append(m.history, record)
	for _, listener := range m.listeners {
		listener(ctx, record)
	}
	return nil
}

// History returns a copy of the transitions taken so far, oldest first
func (m *Machine) History() []Transition {
	return append([]Transition(nil), m.history...)
}

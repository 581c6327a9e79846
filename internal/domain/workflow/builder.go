package workflow

import "fmt"

// Builder collects the permitted edges of a run before machines are built
type Builder struct {
	edges     map[edge]State
	listeners []TransitionListener
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{edges: make(map[edge]State)}
}

// Permit allows trigger to move a run from one state to another.
// Unknown states panic: edges are wired at startup, not from input.
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Sprintf("workflow: invalid edge %s -%s-> %s", from, trigger, to))
	}
	if from.IsTerminal() {
		panic(fmt.Sprintf("workflow: terminal state %s cannot have outgoing edges", from))
	}
	b.edges[edge{from, trigger}] = to
	return b
}

// PermitFromActive allows trigger from every non-terminal state
func (b *Builder) PermitFromActive(trigger Trigger, to State) *Builder {
	for _, s := range States() {
		if !s.IsTerminal() {
			b.Permit(s, trigger, to)
		}
	}
	return b
}

// OnTransition registers a listener for every machine built afterwards
func (b *Builder) OnTransition(listener TransitionListener) *Builder {
	if listener != nil {
		b.listeners = append(b.listeners, listener)
	}
	return b
}

// Build returns a machine in the initial state. Later Permit calls on the
// builder do not affect it.
func (b *Builder) Build(initial State) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("workflow: invalid initial state %s", initial))
	}

	edges := make(map[edge]State, len(b.edges))
	for k, v := range b.edges {
		edges[k] = v
	}

	return &Machine{
		state:     initial,
		edges:     edges,
		listeners: append([]TransitionListener(nil), b.listeners...),
	}
}

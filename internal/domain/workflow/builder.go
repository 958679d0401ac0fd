package workflow

import "fmt"

// Builder collects the permitted transitions of each state. A trigger has
// exactly one target per source state.
type Builder struct {
	transitions map[State]map[Trigger]State
}

// StateConfiguration permits triggers out of one state
type StateConfiguration struct {
	targets map[Trigger]State
}

// NewBuilder creates an empty builder
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[State]map[Trigger]State)}
}

// Configure panics on an unknown state: configuration is static program data.
func (b *Builder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	targets, exists := b.transitions[state]
	if !exists {
		targets = make(map[Trigger]State)
		b.transitions[state] = targets
	}
	return StateConfiguration{targets: targets}
}

// Permit lets trigger move the configured state to toState, replacing any
// earlier target for the same trigger
func (c StateConfiguration) Permit(trigger Trigger, toState State) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	c.targets[trigger] = toState
	return c
}

// Build returns ErrUnknownState for an unknown current state, since that
// value comes from persisted data. The machine gets its own copy of the
// transition table.
func (b *Builder) Build(current State) (StateMachine, error) {
	if !current.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownState, current)
	}

	table := make(map[Trigger]State, len(b.transitions[current]))
	for trigger, to := range b.transitions[current] {
		table[trigger] = to
	}
	return &stateMachine{current: current, targets: table}, nil
}

type stateMachine struct {
	current State
	targets map[Trigger]State
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	_, ok := m.targets[trigger]
	return ok
}

func (m *stateMachine) Fire(trigger Trigger) (Transition, error) {
	to, ok := m.targets[trigger]
	if !ok {
		return Transition{}, fmt.Errorf("%w: cannot %s a %s request", ErrInvalidTransition, trigger, m.current)
	}

	tr := Transition{From: m.current, To: to, Trigger: trigger}
	m.current = to
	m.targets = nil // one transition per operation
	return tr, nil
}

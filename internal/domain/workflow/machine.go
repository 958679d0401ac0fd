package workflow

// Transition describes a completed status change
type Transition struct {
	From    State
	To      State
	Trigger Trigger
}

// StateMachine tracks the status of one request and validates transitions
type StateMachine interface {
	State() State

	// CanFire reports whether the trigger is permitted from the current state
	CanFire(trigger Trigger) bool

	// Fire moves to the trigger's target state
	Fire(trigger Trigger) (Transition, error)
}

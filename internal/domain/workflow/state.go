package workflow

// State is a reimbursement request status in the review lifecycle
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateRejected State = "rejected"
)

var validStates = map[State]bool{
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
}

// IsTerminal returns true when the owner can no longer change or withdraw the request
func (s State) IsTerminal() bool {
	return s == StateApproved
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known request status
func (s State) IsValid() bool {
	return validStates[s]
}

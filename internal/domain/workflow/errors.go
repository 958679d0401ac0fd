package workflow

import "errors"

var (
	// ErrInvalidTransition means the trigger is not permitted from the current status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnknownState means a persisted status is not one of the request states
	ErrUnknownState = errors.New("unknown request status")
)

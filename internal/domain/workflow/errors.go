package workflow

import "errors"

var (
	// ErrInvalidTransition means no rule leaves the current state for the trigger
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState means the value is not one of the five document states
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed means rules exist for the trigger but every guard refused
	ErrGuardFailed = errors.New("guard condition failed")
)

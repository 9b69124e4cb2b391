package workflow

import "context"

// StateMachine is a single document's position in the lifecycle graph
type StateMachine interface {
	State() State

	// CanFire reports whether any rule for trigger leaves the current state
	CanFire(trigger Trigger) bool

	// Fire moves to the target of the first applicable rule. On error the state is unchanged.
	Fire(ctx context.Context, trigger Trigger) error

	PermittedTriggers() []Trigger
}

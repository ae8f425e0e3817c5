package agent

import "errors"

// Domain errors for the agent package.
var (
	// ErrAlreadyStarted is returned when Start is called on a runtime that has
	// already been started.
	ErrAlreadyStarted = errors.New("agent: already started")

	// ErrStartHook is returned when a policy's OnStart hook fails.
	ErrStartHook = errors.New("agent: start hook failed")

	// ErrCyclePanic wraps a panic recovered from a policy cycle.
	ErrCyclePanic = errors.New("agent: cycle panicked")

	// ErrShutdownTimeout is returned when agents do not stop within the grace period.
	ErrShutdownTimeout = errors.New("agent: shutdown grace period exceeded")
)

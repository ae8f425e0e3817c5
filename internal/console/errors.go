package console

import "errors"

var (
	// ErrSendFailed is returned when the bus did not accept a message.
	ErrSendFailed = errors.New("console: message not accepted by the bus")

	// ErrInvalidCommand is returned for an unknown target or an action the
	// target does not understand.
	ErrInvalidCommand = errors.New("console: invalid command")

	// ErrInvalidDelta is returned for a non-finite temperature adjustment.
	ErrInvalidDelta = errors.New("console: invalid temperature delta")
)

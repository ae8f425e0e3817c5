package state

import "errors"

// Domain errors for the state package.
var (
	// ErrUnknownField is returned when a field name is not part of the world model.
	ErrUnknownField = errors.New("state: unknown field")

	// ErrTypeMismatch is returned when a value's type does not match the field.
	ErrTypeMismatch = errors.New("state: value type does not match field")

	// ErrReadOnlyField is returned by Set for the event log.
	ErrReadOnlyField = errors.New("state: field is read-only")
)

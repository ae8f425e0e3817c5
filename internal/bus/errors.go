package bus

import "errors"

// Domain errors for the bus package.
//
// The bus never returns these from Send or Receive (those report failure as a
// boolean); they appear in log records and in wrapped errors from callers
// that need to surface a lost message.
var (
	// ErrLockTimeout means the queue lock was not acquired within the send timeout.
	ErrLockTimeout = errors.New("bus: timed out waiting for queue lock")

	// ErrMessageLost means a send failed and the message was counted as lost.
	ErrMessageLost = errors.New("bus: message lost")

	// ErrNoPayload means a message was sent without a payload.
	ErrNoPayload = errors.New("bus: message has no payload")
)

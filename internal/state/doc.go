// Package state holds the simulated home's shared world model.
//
// The Store is the single place where agents and the operator console read
// sensor values and actuator flags. It is deliberately a leaf: it never calls
// into other components, so holding its lock can never participate in a
// lock cycle with the message bus.
//
// # Fields
//
// The set of fields is fixed at compile time (see the Field constants).
// Unknown fields are a programming error and surface as ErrUnknownField.
//
// # Consistency
//
// Every accessor takes the same mutex for the duration of the access.
// Single-field reads and writes are atomic; Snapshot is the only way to read
// several fields as they existed at one instant. There is no
// read-modify-write transaction: two agents doing Get-then-Set on the same
// field can interleave.
//
// # Event Log
//
// LogEvent prepends a "HH:MM:SS - text" line and keeps the newest
// MaxEvents entries.
//
// # Usage
//
//	st := state.New()
//	st.SetBool(state.FieldLightsOn, true)
//	snap := st.Snapshot()
//	if snap.IsNight && snap.PresenceExpected { ... }
package state

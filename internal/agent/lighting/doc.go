// Package lighting implements the automatic lighting policy.
//
// The policy switches the lights on at dusk when someone is expected home,
// on motion at night, and on command. It switches them off after a period
// without motion when nobody is expected, or during the day when nobody is
// expected. While it is night and someone is expected the lights are never
// switched off automatically.
//
// Each rule can be disabled through Behaviour.
package lighting

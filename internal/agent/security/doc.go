// Package security implements the intrusion detection policy.
//
// Each cycle the policy first handles every pending message, so an alert
// reset queued in the same drain as a motion report is always applied
// before that motion is evaluated (resets are critical priority, motion is
// high). It then simulates the motion sensor with a small probability.
//
// Motion while nobody is expected raises the alert, at most once per
// AlertCooldown. A reset clears the alert and the cooldown immediately.
package security

// Package agent runs autonomous control policies against the shared home
// state and message bus.
//
// A Runtime owns one goroutine and drives a Policy: it calls Cycle, records
// statistics, pauses, and repeats until its context is cancelled. Policies
// hold their own state (thresholds, timers, the Store) and talk to the bus
// only through the Mailbox the runtime hands them, which stamps the sender
// and keeps the message counters.
//
// # Lifecycle
//
//	stopped -> starting -> running -> stopping -> stopped
//
// Start runs the optional Starter hook synchronously, then launches the loop.
// Cancelling the context passed to Start is the stop signal. On exit the
// loop runs the optional Stopper hook and replaces BusyTime with the total
// loop wall time.
//
// # Failure
//
// A Cycle that returns an error or panics is logged and counted, and the
// loop pauses for ErrorCooldown before trying again. Nothing a policy does
// terminates the loop.
//
// A Cycle that never returns cannot be pre-empted. The loop only observes
// cancellation between cycles, and IsHealthy reports false once no cycle
// has completed within HealthWindow.
//
// # Supervision
//
// Group starts a set of runtimes under one context and implements shutdown:
// cancel, wait up to a grace period, then clear the bus.
package agent

// Package bus provides the priority message bus shared by the home agents.
//
// Every agent and the operator console send to and receive from one Bus.
// There is no addressing: receivers drain everything and filter on the
// payload type.
//
// # Ordering
//
// Messages are delivered highest priority first. Within a priority band
// delivery is FIFO by enqueue time, with a per-bus sequence number breaking
// ties between sends that observe the same clock reading.
//
// The priority a message is ordered by comes from its kind when the kind
// implies one (commands and alert resets are critical, motion and alerts are
// high), otherwise from the sender's hint. See EffectivePriority.
//
// # Back-pressure
//
// Capacity is advisory. A send that finds the queue at or above capacity
// first runs an eviction sweep which drops normal-priority messages older
// than the maximum age. If every queued message survives the sweep the new
// message is still accepted and the queue grows past capacity.
//
// # Failure
//
// Send and Receive never panic and never return errors. Send reports false
// when it could not take the queue lock within its timeout, or when it
// recovered from an internal fault; both are counted as lost messages.
//
// # Usage
//
//	b := bus.New(bus.WithCapacity(100))
//	b.Send(bus.Message{Payload: bus.Motion{Detected: true}}, 20*time.Millisecond)
//	for _, m := range b.DrainAll() {
//	    switch p := m.Payload.(type) {
//	    case bus.Command:
//	        ...
//	    }
//	}
package bus

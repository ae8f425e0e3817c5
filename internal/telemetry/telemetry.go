// Package telemetry exports the running home to external systems.
//
// Each sink polls the shared state on its own interval and pushes what
// changed: the MQTT bridge publishes state and event lines (and accepts
// commands), the InfluxDB recorder writes time-series points and the Redis
// mirror keeps a hash of the current state. Sinks only read; commands from
// MQTT go through the console service like any other operator action.
//
// Every sink implements Run(ctx) and returns when ctx is cancelled.
package telemetry

import (
	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// StateSource provides consistent home snapshots.
type StateSource interface {
	Snapshot() state.Snapshot
}

// BusSource provides message bus counters.
type BusSource interface {
	Stats() bus.Stats
}

// AgentSource provides per-agent statistics.
type AgentSource interface {
	Stats() []agent.Stats
}

// Logger is the logging interface used by the sinks.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func orNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

// eventTracker remembers the last event log seen by a sink.
type eventTracker struct {
	last []string
}

// pending returns the lines of cur not delivered yet, oldest first. It does
// not move the tracker; call commit once the lines are out.
func (t *eventTracker) pending(cur []string) []string {
	return newEvents(t.last, cur)
}

// commit marks the oldest sent of the pending lines of cur as delivered.
// Lines past sent stay pending for the next call.
func (t *eventTracker) commit(cur []string, pending, sent int) {
	t.last = append(t.last[:0], cur[pending-sent:]...)
}

// newEvents compares two newest-first event logs. The oldest lines of prev
// may have been pushed out of cur; a cleared log shares nothing with prev.
func newEvents(prev, cur []string) []string {
	n := len(cur)
	for i := 0; i <= len(cur); i++ {
		if overlaps(cur[i:], prev) {
			n = i
			break
		}
	}
	out := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, cur[i])
	}
	return out
}

// overlaps reports whether suffix is a prefix of prev.
func overlaps(suffix, prev []string) bool {
	if len(suffix) > len(prev) {
		return false
	}
	for k := range suffix {
		if suffix[k] != prev[k] {
			return false
		}
	}
	return true
}

package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// Measurement names.
const (
	MeasurementHomeState  = "home_state"
	MeasurementBusStats   = "bus_stats"
	MeasurementAgentStats = "agent_stats"
)

// HomeStatePoint records temperature and every boolean field of snap.
func HomeStatePoint(site string, snap state.Snapshot, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementHomeState,
		map[string]string{"site": site},
		map[string]any{
			"temperature":       snap.Temperature,
			"is_night":          snap.IsNight,
			"presence_expected": snap.PresenceExpected,
			"motion_detected":   snap.MotionDetected,
			"heating_on":        snap.HeatingOn,
			"fan_on":            snap.FanOn,
			"lights_on":         snap.LightsOn,
			"security_alert":    snap.SecurityAlert,
		},
		at,
	)
}

// BusStatsPoint records the bus counters.
func BusStatsPoint(site string, s bus.Stats, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementBusStats,
		map[string]string{"site": site},
		map[string]any{
			"sent":          s.Sent,
			"received":      s.Received,
			"lost":          s.Lost,
			"high_priority": s.HighPriority,
			"evicted":       s.Evicted,
			"queued":        s.Queued,
		},
		at,
	)
}

// AgentStatsPoint records one agent's counters, tagged by agent name.
func AgentStatsPoint(site string, s agent.Stats, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAgentStats,
		map[string]string{"site": site, "agent": s.Name, "status": string(s.Status)},
		map[string]any{
			"cycles":            s.Cycles,
			"messages_sent":     s.MessagesSent,
			"messages_received": s.MessagesReceived,
			"errors":            s.Errors,
			"busy_seconds":      s.BusyTime.Seconds(),
			"healthy":           s.Healthy,
		},
		at,
	)
}

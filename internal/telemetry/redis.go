package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// Redis key suffixes appended to the configured prefix.
const (
	redisStateKey     = ":state"
	redisEventChannel = ":events"
)

// RedisMirror keeps a Redis hash in step with the home state and publishes
// new event lines on a channel.
type RedisMirror struct {
	client   redis.Cmdable
	source   StateSource
	prefix   string
	interval time.Duration
	logger   Logger

	lastFields map[string]string
	events     eventTracker
}

// NewRedisMirror creates a mirror writing under prefix (e.g. "graylogic:home").
func NewRedisMirror(client redis.Cmdable, source StateSource, prefix string, interval time.Duration, logger Logger) *RedisMirror {
	return &RedisMirror{
		client:   client,
		source:   source,
		prefix:   prefix,
		interval: interval,
		logger:   orNoop(logger),
	}
}

// StateKey is the hash holding the current state.
func (m *RedisMirror) StateKey() string { return m.prefix + redisStateKey }

// EventChannel is the pub/sub channel for new event lines.
func (m *RedisMirror) EventChannel() string { return m.prefix + redisEventChannel }

// Run mirrors changes until ctx is cancelled.
func (m *RedisMirror) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if err := m.mirror(ctx); err != nil {
			m.logger.Warn("redis mirror failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *RedisMirror) mirror(ctx context.Context) error {
	snap := m.source.Snapshot()
	fields := stateFields(snap)
	fresh := m.events.pending(snap.Events)

	changed := !equalFields(fields, m.lastFields)
	if !changed && len(fresh) == 0 {
		m.events.commit(snap.Events, 0, 0)
		return nil
	}

	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if changed {
			pipe.HSet(ctx, m.StateKey(), fields)
		}
		for _, line := range fresh {
			pipe.Publish(ctx, m.EventChannel(), line)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing state to redis: %w", err)
	}
	m.lastFields = fields
	m.events.commit(snap.Events, len(fresh), len(fresh))
	return nil
}

// stateFields flattens the scalar fields of snap into hash values.
func stateFields(snap state.Snapshot) map[string]string {
	b := strconv.FormatBool
	return map[string]string{
		string(state.FieldIsNight):          b(snap.IsNight),
		string(state.FieldPresenceExpected): b(snap.PresenceExpected),
		string(state.FieldMotionDetected):   b(snap.MotionDetected),
		string(state.FieldTemperature):      strconv.FormatFloat(snap.Temperature, 'f', -1, 64),
		string(state.FieldHeatingOn):        b(snap.HeatingOn),
		string(state.FieldFanOn):            b(snap.FanOn),
		string(state.FieldLightsOn):         b(snap.LightsOn),
		string(state.FieldSecurityAlert):    b(snap.SecurityAlert),
	}
}

func equalFields(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

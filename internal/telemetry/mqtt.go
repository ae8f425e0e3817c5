package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-agents/internal/journal"
)

// Broker is the subset of the MQTT client used by the bridge.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
}

// Commander injects operator commands into the home.
type Commander interface {
	SendCommand(ctx context.Context, source string, target bus.Target, action bus.Action) error
}

// CommandPayload is the body accepted on graylogic/home/command/{target}.
type CommandPayload struct {
	Action string `json:"action"`
}

// EventPayload is published on graylogic/home/event for each new log line.
type EventPayload struct {
	Line      string    `json:"line"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTBridge mirrors the home onto MQTT topics and accepts commands.
type MQTTBridge struct {
	broker   Broker
	source   StateSource
	commands Commander
	interval time.Duration
	logger   Logger
	topics   mqtt.Topics
	now      func() time.Time

	lastState []byte
	events    eventTracker
}

// NewMQTTBridge creates a bridge. commands may be nil for a publish-only bridge.
func NewMQTTBridge(broker Broker, source StateSource, commands Commander, interval time.Duration, logger Logger) *MQTTBridge {
	return &MQTTBridge{
		broker:   broker,
		source:   source,
		commands: commands,
		interval: interval,
		logger:   orNoop(logger),
		now:      time.Now,
	}
}

// Run subscribes to commands and publishes changes until ctx is cancelled.
func (b *MQTTBridge) Run(ctx context.Context) error {
	if b.commands != nil {
		if err := b.broker.Subscribe(b.topics.AllCommands(), b.broker.QoS(), b.commandHandler(ctx)); err != nil {
			return fmt.Errorf("subscribing to commands: %w", err)
		}
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if err := b.publish(); err != nil {
			b.logger.Warn("mqtt publish failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// publish sends the state when it changed and any new event lines.
func (b *MQTTBridge) publish() error {
	snap := b.source.Snapshot()

	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if !bytes.Equal(payload, b.lastState) {
		if err := b.broker.Publish(b.topics.State(), payload, b.broker.QoS(), true); err != nil {
			return err
		}
		b.lastState = payload
	}

	fresh := b.events.pending(snap.Events)
	for i, line := range fresh {
		ev, err := json.Marshal(EventPayload{Line: line, Timestamp: b.now().UTC()})
		if err == nil {
			err = b.broker.Publish(b.topics.Event(), ev, b.broker.QoS(), false)
		}
		if err != nil {
			b.events.commit(snap.Events, len(fresh), i)
			return fmt.Errorf("publishing event: %w", err)
		}
	}
	b.events.commit(snap.Events, len(fresh), len(fresh))
	return nil
}

func (b *MQTTBridge) commandHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		target, ok := b.topics.ParseCommandTarget(topic)
		if !ok {
			return fmt.Errorf("unknown command topic %q", topic)
		}
		var cmd CommandPayload
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("decoding command: %w", err)
		}
		if err := b.commands.SendCommand(ctx, journal.SourceMQTT, target, bus.Action(cmd.Action)); err != nil {
			return err
		}
		b.logger.Info("mqtt command accepted", "target", target, "action", cmd.Action)
		return nil
	}
}

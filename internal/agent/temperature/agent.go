package temperature

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// Name identifies the temperature agent.
const Name = "temperature"

// effectFactor scales actuator power to one cycle's effect.
const effectFactor = 0.3

// Event log lines.
const (
	eventHeatingOn     = "[Temperatura] Temperatura baja -> calefacción activada"
	eventFanOn         = "[Temperatura] Temperatura alta -> ventilador activado"
	eventHeatingOff    = "[Temperatura] Temperatura óptima -> calefacción desactivada"
	eventFanOff        = "[Temperatura] Temperatura óptima -> ventilador desactivado"
	eventCommandFormat = "[Temperatura] Comando ejecutado: %s"
)

// Option configures a Policy.
type Option func(*Policy)

// WithRand sets the source of uniform values in [0, 1) used for drift.
func WithRand(f func() float64) Option {
	return func(p *Policy) {
		if f != nil {
			p.rand = f
		}
	}
}

// Policy regulates the simulated temperature.
type Policy struct {
	cfg    Config
	store  *state.Store
	logger agent.Logger
	rand   func() float64
}

// NewPolicy creates a temperature Policy.
func NewPolicy(cfg Config, store *state.Store, logger agent.Logger, opts ...Option) *Policy {
	if logger == nil {
		logger = agent.NoopLogger()
	}
	p := &Policy{
		cfg:    cfg,
		store:  store,
		logger: logger,
		rand:   rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewAgent wires a temperature Policy into a Runtime.
func NewAgent(b *bus.Bus, store *state.Store, cfg Config, timings agent.Timings, logger agent.Logger, opts ...Option) *agent.Runtime {
	return agent.New(timings.Config(Name, cfg.Interval), b, NewPolicy(cfg, store, logger, opts...), agent.WithLogger(logger))
}

// Cycle runs one regulation step.
func (p *Policy) Cycle(_ context.Context, mb agent.Mailbox) error {
	snap := p.store.Snapshot()

	temp := snap.Temperature + p.drift()
	if err := p.store.SetFloat(state.FieldTemperature, temp); err != nil {
		return fmt.Errorf("updating temperature: %w", err)
	}

	if err := p.regulate(temp, snap.HeatingOn, snap.FanOn); err != nil {
		return err
	}

	for _, msg := range mb.ReceiveAll() {
		if err := p.handle(msg); err != nil {
			return err
		}
	}

	return p.applyActuators()
}

// drift returns a uniform value in [-Variation, Variation].
func (p *Policy) drift() float64 {
	return (p.rand()*2 - 1) * p.cfg.Variation
}

// regulate switches the actuators for the given temperature.
func (p *Policy) regulate(temp float64, heating, fan bool) error {
	switch {
	case temp < p.cfg.Low && !heating:
		return p.switchActuator(state.FieldHeatingOn, true, eventHeatingOn)

	case temp > p.cfg.High && !fan:
		return p.switchActuator(state.FieldFanOn, true, eventFanOn)

	case temp >= p.cfg.OptimalMin && temp <= p.cfg.OptimalMax:
		if heating {
			if err := p.switchActuator(state.FieldHeatingOn, false, eventHeatingOff); err != nil {
				return err
			}
		}
		if fan {
			if err := p.switchActuator(state.FieldFanOn, false, eventFanOff); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Policy) switchActuator(f state.Field, on bool, event string) error {
	if err := p.store.SetBool(f, on); err != nil {
		return fmt.Errorf("switching %s: %w", f, err)
	}
	p.store.LogEvent(event)
	p.logger.Debug("actuator switched", "field", string(f), "on", on)
	return nil
}

// handle applies a temperature command. Other messages are dropped.
func (p *Policy) handle(msg bus.Message) error {
	cmd, ok := msg.Payload.(bus.Command)
	if !ok || cmd.Target != bus.TargetTemperature {
		return nil
	}

	var field state.Field
	var on bool
	switch cmd.Action {
	case bus.ActionHeatingOn:
		field, on = state.FieldHeatingOn, true
	case bus.ActionHeatingOff:
		field, on = state.FieldHeatingOn, false
	case bus.ActionFanOn:
		field, on = state.FieldFanOn, true
	case bus.ActionFanOff:
		field, on = state.FieldFanOn, false
	default:
		p.logger.Warn("unknown temperature action", "action", string(cmd.Action), "from", msg.From)
		return nil
	}

	if err := p.store.SetBool(field, on); err != nil {
		return fmt.Errorf("applying %s: %w", cmd.Action, err)
	}
	p.store.LogEvent(fmt.Sprintf(eventCommandFormat, cmd.Action))
	return nil
}

// applyActuators moves the temperature by the effect of whichever actuators
// are running. Both effects apply when both are on.
func (p *Policy) applyActuators() error {
	snap := p.store.Snapshot()
	if !snap.HeatingOn && !snap.FanOn {
		return nil
	}

	temp := snap.Temperature
	if snap.HeatingOn {
		temp += p.cfg.HeatingPower * effectFactor
	}
	if snap.FanOn {
		temp -= p.cfg.CoolingPower * effectFactor
	}

	if err := p.store.SetFloat(state.FieldTemperature, temp); err != nil {
		return fmt.Errorf("applying actuators: %w", err)
	}
	return nil
}

package security

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// Name identifies the security agent.
const Name = "security"

// alertReason is carried by the Alert message raised on intrusion.
const alertReason = "movimiento sin presencia"

// Event log lines.
const (
	eventMotion          = "[Seguridad] Movimiento detectado"
	eventSimulatedMotion = "[Seguridad] Movimiento simulado desde interfaz"
	eventAlert           = "[Seguridad] ¡ALERTA! Movimiento sin presencia"
	eventReset           = "[Seguridad] Alerta reiniciada INMEDIATAMENTE"
)

// Option configures a Policy.
type Option func(*Policy)

// WithClock overrides the clock used for the alert cooldown.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRand sets the source of uniform values in [0, 1) used to simulate
// the motion sensor.
func WithRand(f func() float64) Option {
	return func(p *Policy) {
		if f != nil {
			p.rand = f
		}
	}
}

// Policy detects motion and raises intrusion alerts.
type Policy struct {
	cfg    Config
	store  *state.Store
	logger agent.Logger
	now    func() time.Time
	rand   func() float64

	// lastAlert is zero when no alert is cooling down.
	lastAlert time.Time
}

// NewPolicy creates a security Policy.
func NewPolicy(cfg Config, store *state.Store, logger agent.Logger, opts ...Option) *Policy {
	if logger == nil {
		logger = agent.NoopLogger()
	}
	p := &Policy{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
		rand:   rand.Float64,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewAgent wires a security Policy into a Runtime.
func NewAgent(b *bus.Bus, store *state.Store, cfg Config, timings agent.Timings, logger agent.Logger, opts ...Option) *agent.Runtime {
	return agent.New(timings.Config(Name, cfg.Interval), b, NewPolicy(cfg, store, logger, opts...), agent.WithLogger(logger))
}

// OnStart logs the active settings.
func (p *Policy) OnStart(_ context.Context, _ agent.Mailbox) error {
	p.logger.Info("security configured",
		"alert_cooldown", p.cfg.AlertCooldown,
		"motion_probability", p.cfg.MotionProbability,
	)
	return nil
}

// OnStop clears the alert.
func (p *Policy) OnStop(_ agent.Mailbox) {
	if err := p.store.SetBool(state.FieldSecurityAlert, false); err != nil {
		p.logger.Error("clearing alert on stop", "error", err)
	}
}

// Cycle handles pending messages, then samples the simulated sensor.
func (p *Policy) Cycle(_ context.Context, mb agent.Mailbox) error {
	for _, msg := range mb.ReceiveAll() {
		if err := p.handle(mb, msg); err != nil {
			return err
		}
	}

	if p.rand() < p.cfg.MotionProbability {
		return p.detectMotion(mb)
	}
	return nil
}

func (p *Policy) handle(mb agent.Mailbox, msg bus.Message) error {
	switch pl := msg.Payload.(type) {
	case bus.SimulatedMotion:
		if err := p.detectMotion(mb); err != nil {
			return err
		}
		p.store.LogEvent(eventSimulatedMotion)

	case bus.Command:
		if pl.Target == bus.TargetSecurity && pl.Action == bus.ActionResetAlert {
			return p.reset()
		}

	case bus.AlertReset:
		return p.reset()

	case bus.Motion:
		if pl.Detected {
			return p.evaluate(mb)
		}
	}
	return nil
}

// detectMotion reports motion on the bus and, at night, asks for light.
func (p *Policy) detectMotion(mb agent.Mailbox) error {
	mb.Send(bus.Motion{Detected: true})
	p.store.LogEvent(eventMotion)

	if err := p.store.SetBool(state.FieldMotionDetected, true); err != nil {
		return fmt.Errorf("recording motion: %w", err)
	}

	night, err := p.store.Bool(state.FieldIsNight)
	if err != nil {
		return fmt.Errorf("reading day/night: %w", err)
	}
	if night {
		mb.Send(bus.Command{Target: bus.TargetLighting, Action: bus.ActionLightsOn})
	}
	return nil
}

// evaluate raises the alert for motion while nobody is expected.
func (p *Policy) evaluate(mb agent.Mailbox) error {
	presence, err := p.store.Bool(state.FieldPresenceExpected)
	if err != nil {
		return fmt.Errorf("reading presence: %w", err)
	}
	if presence {
		return nil
	}

	now := p.now()
	if !p.lastAlert.IsZero() && now.Sub(p.lastAlert) <= p.cfg.AlertCooldown {
		return nil
	}

	if err := p.store.SetBool(state.FieldSecurityAlert, true); err != nil {
		return fmt.Errorf("raising alert: %w", err)
	}
	p.lastAlert = now
	p.store.LogEvent(eventAlert)
	p.logger.Warn("intrusion alert raised")

	mb.Send(bus.Alert{Reason: alertReason})
	mb.Send(bus.Command{Target: bus.TargetLighting, Action: bus.ActionLightsOn})
	return nil
}

// reset clears the alert and the cooldown unconditionally.
func (p *Policy) reset() error {
	if err := p.store.SetBool(state.FieldSecurityAlert, false); err != nil {
		return fmt.Errorf("clearing alert: %w", err)
	}
	if err := p.store.SetBool(state.FieldMotionDetected, false); err != nil {
		return fmt.Errorf("clearing motion: %w", err)
	}
	p.lastAlert = time.Time{}
	p.store.LogEvent(eventReset)
	p.logger.Info("alert reset")
	return nil
}

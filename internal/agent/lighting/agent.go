package lighting

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// Name identifies the lighting agent.
const Name = "lighting"

// Event log lines.
const (
	eventDusk        = "[Iluminación] Anochecer detectado -> luces encendidas automáticamente"
	eventNightMotion = "[Iluminación] Movimiento detectado en noche -> luces encendidas"
	eventCommandOn   = "[Iluminación] Luces activadas por comando"
	eventCommandOff  = "[Iluminación] Luces desactivadas por comando"
	eventIdleOff     = "[Iluminación] Apagado automático por inactividad"
	eventDawnOff     = "[Iluminación] Apagado automático - Es de día"
)

// Option configures a Policy.
type Option func(*Policy)

// WithClock overrides the clock used for the idle timer.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		if now != nil {
			p.now = now
		}
	}
}

// Policy drives the lights from day/night, presence and motion.
//
// The zero lastMotion means no motion has been seen, which counts as idle
// for longer than any timeout.
type Policy struct {
	cfg    Config
	store  *state.Store
	logger agent.Logger
	now    func() time.Time

	wasNight   bool
	lastMotion time.Time
}

// NewPolicy creates a lighting Policy. The current day/night flag is taken
// as the starting point, so starting at night does not count as dusk.
func NewPolicy(cfg Config, store *state.Store, logger agent.Logger, opts ...Option) *Policy {
	if logger == nil {
		logger = agent.NoopLogger()
	}
	p := &Policy{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wasNight = store.Snapshot().IsNight
	return p
}

// NewAgent wires a lighting Policy into a Runtime.
func NewAgent(b *bus.Bus, store *state.Store, cfg Config, timings agent.Timings, logger agent.Logger, opts ...Option) *agent.Runtime {
	return agent.New(timings.Config(Name, cfg.Interval), b, NewPolicy(cfg, store, logger, opts...), agent.WithLogger(logger))
}

// OnStart re-reads the day/night flag and logs the active rules.
func (p *Policy) OnStart(_ context.Context, _ agent.Mailbox) error {
	p.wasNight = p.store.Snapshot().IsNight
	p.logger.Info("lighting configured",
		"idle_timeout", p.cfg.IdleTimeout,
		"auto_on_at_dusk", p.cfg.Behaviour.AutoOnAtDusk,
		"auto_off_at_dawn", p.cfg.Behaviour.AutoOffAtDawn,
	)
	return nil
}

// Cycle runs one lighting step: dusk check, messages, then auto-off.
func (p *Policy) Cycle(_ context.Context, mb agent.Mailbox) error {
	if err := p.checkDusk(); err != nil {
		return err
	}

	for _, msg := range mb.ReceiveAll() {
		if err := p.handle(msg); err != nil {
			return err
		}
	}

	return p.checkAutoOff()
}

func (p *Policy) checkDusk() error {
	snap := p.store.Snapshot()
	defer func() { p.wasNight = snap.IsNight }()

	if !p.cfg.Behaviour.AutoOnAtDusk {
		return nil
	}
	if snap.IsNight && !p.wasNight && snap.PresenceExpected && !snap.LightsOn {
		return p.setLights(true, eventDusk)
	}
	return nil
}

func (p *Policy) handle(msg bus.Message) error {
	switch pl := msg.Payload.(type) {
	case bus.Motion:
		if !pl.Detected || !p.cfg.Behaviour.OnWithMotionAtNight {
			return nil
		}
		night, err := p.store.Bool(state.FieldIsNight)
		if err != nil {
			return fmt.Errorf("reading day/night: %w", err)
		}
		if !night {
			return nil
		}
		p.lastMotion = p.now()
		return p.setLights(true, eventNightMotion)

	case bus.Command:
		if pl.Target != bus.TargetLighting {
			return nil
		}
		switch pl.Action {
		case bus.ActionLightsOn:
			return p.setLights(true, eventCommandOn)
		case bus.ActionLightsOff:
			return p.setLights(false, eventCommandOff)
		default:
			p.logger.Warn("unknown lighting action", "action", string(pl.Action), "from", msg.From)
		}
	}
	return nil
}

// checkAutoOff evaluates the switch-off rules; at most one fires. Lights on
// with nobody expected are governed by the idle timer alone, so the dawn
// rule never cuts the idle window short.
func (p *Policy) checkAutoOff() error {
	snap := p.store.Snapshot()
	b := p.cfg.Behaviour

	if b.KeepOnAtNightWithPresence && snap.IsNight && snap.PresenceExpected {
		return nil
	}

	if !snap.PresenceExpected && snap.LightsOn {
		if p.idleElapsed() {
			return p.setLights(false, eventIdleOff)
		}
		return nil
	}

	if b.AutoOffAtDawn && !snap.IsNight && snap.LightsOn && !snap.PresenceExpected {
		return p.setLights(false, eventDawnOff)
	}
	return nil
}

func (p *Policy) idleElapsed() bool {
	if p.lastMotion.IsZero() {
		return true
	}
	return p.now().Sub(p.lastMotion) > p.cfg.IdleTimeout
}

func (p *Policy) setLights(on bool, event string) error {
	if err := p.store.SetBool(state.FieldLightsOn, on); err != nil {
		return fmt.Errorf("switching lights: %w", err)
	}
	p.store.LogEvent(event)
	p.logger.Debug("lights switched", "on", on)
	return nil
}

// Package console is the operator surface of the home: the actions a person
// can take on the running system. The HTTP API, the MQTT bridge and the
// day/night schedule all act through a Service.
package console

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/journal"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// Name is the sender stamped on console messages.
const Name = "interfaz"

// Temperature adjustments are clamped to this range.
const (
	MinTemperature = 15.0
	MaxTemperature = 35.0
)

// DefaultSendTimeout bounds the wait for the bus lock.
const DefaultSendTimeout = 50 * time.Millisecond

// Event log lines.
const (
	eventPresenceNight  = "[Interfaz] Presencia activada en noche -> luces encendidas"
	eventPresenceOn     = "[Interfaz] Presencia: ACTIVADA"
	eventPresenceOff    = "[Interfaz] Presencia: DESACTIVADA"
	eventNight          = "[Interfaz] Modo cambiado a NOCHE"
	eventDay            = "[Interfaz] Modo cambiado a DÍA"
	eventDuskLights     = "[Interfaz] Anochecer con presencia -> luces encendidas"
	eventDawnLights     = "[Interfaz] Amanecer sin presencia -> luces apagadas"
	eventTempUp         = "[Interfaz] Temperatura aumentada"
	eventTempDown       = "[Interfaz] Temperatura disminuida"
	eventMotion         = "[Interfaz] Movimiento simulado"
	eventMotionFailed   = "[Interfaz] Error: Cola de mensajes llena"
	eventReset          = "[Interfaz] Alerta reiniciada INMEDIATAMENTE"
	eventResetFailed    = "[Interfaz] Error: No se pudo enviar reset"
	eventCommandPattern = "[Interfaz] Comando enviado: %s -> %s"
)

// Logger is the logging interface used by the console.
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

// Option configures a Service.
type Option func(*Service)

// WithJournal records every action in r.
func WithJournal(r journal.Recorder) Option {
	return func(s *Service) {
		s.journal = r
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSendTimeout sets the bus lock timeout for console messages.
func WithSendTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service applies operator actions to the store and the bus.
//
// Actions are serialised so that read-modify-write toggles from different
// surfaces do not interleave.
type Service struct {
	store       *state.Store
	bus         *bus.Bus
	journal     journal.Recorder
	logger      Logger
	sendTimeout time.Duration
	now         func() time.Time

	mu sync.Mutex
}

// New creates a console Service.
func New(store *state.Store, b *bus.Bus, opts ...Option) *Service {
	s := &Service{
		store:       store,
		bus:         b,
		logger:      noopLogger{},
		sendTimeout: DefaultSendTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current home state.
func (s *Service) Snapshot() state.Snapshot {
	return s.store.Snapshot()
}

// BusStats returns the bus counters.
func (s *Service) BusStats() bus.Stats {
	return s.bus.Stats()
}

// TogglePresence flips the presence flag and returns the new value.
// Turning presence on at night also switches the lights on.
func (s *Service) TogglePresence(ctx context.Context, source string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.store.Snapshot()
	present := !snap.PresenceExpected
	if err := s.store.SetBool(state.FieldPresenceExpected, present); err != nil {
		return false, err
	}

	switch {
	case present && snap.IsNight:
		if err := s.store.SetBool(state.FieldLightsOn, true); err != nil {
			return false, err
		}
		s.store.LogEvent(eventPresenceNight)
	case present:
		s.store.LogEvent(eventPresenceOn)
	default:
		s.store.LogEvent(eventPresenceOff)
	}

	s.record(ctx, "toggle_presence", source, fmt.Sprintf("presencia_esperada=%t", present))
	return present, nil
}

// ToggleNight flips the day/night flag and returns the new value.
func (s *Service) ToggleNight(ctx context.Context, source string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	night := !s.store.Snapshot().IsNight
	if err := s.setNightLocked(night); err != nil {
		return false, err
	}
	s.record(ctx, "toggle_night", source, fmt.Sprintf("es_noche=%t", night))
	return night, nil
}

// SetNight switches to night or day with the same side effects as
// ToggleNight. It reports whether anything changed.
func (s *Service) SetNight(ctx context.Context, source string, night bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store.Snapshot().IsNight == night {
		return false, nil
	}
	if err := s.setNightLocked(night); err != nil {
		return false, err
	}
	s.record(ctx, "set_night", source, fmt.Sprintf("es_noche=%t", night))
	return true, nil
}

func (s *Service) setNightLocked(night bool) error {
	if err := s.store.SetBool(state.FieldIsNight, night); err != nil {
		return err
	}
	snap := s.store.Snapshot()

	if night {
		s.store.LogEvent(eventNight)
		if snap.PresenceExpected && !snap.LightsOn {
			if err := s.store.SetBool(state.FieldLightsOn, true); err != nil {
				return err
			}
			s.store.LogEvent(eventDuskLights)
		}
		return nil
	}

	s.store.LogEvent(eventDay)
	if !snap.PresenceExpected && snap.LightsOn {
		if err := s.store.SetBool(state.FieldLightsOn, false); err != nil {
			return err
		}
		s.store.LogEvent(eventDawnLights)
	}
	return nil
}

// AdjustTemperature adds delta to the temperature, clamped to
// [MinTemperature, MaxTemperature], and returns the new value.
func (s *Service) AdjustTemperature(ctx context.Context, source string, delta float64) (float64, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return 0, ErrInvalidDelta
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.store.Float(state.FieldTemperature)
	if err != nil {
		return 0, err
	}
	next := math.Max(MinTemperature, math.Min(MaxTemperature, current+delta))
	if err := s.store.SetFloat(state.FieldTemperature, next); err != nil {
		return 0, err
	}

	if delta >= 0 {
		s.store.LogEvent(eventTempUp)
	} else {
		s.store.LogEvent(eventTempDown)
	}
	s.record(ctx, "adjust_temperature", source, fmt.Sprintf("delta=%.1f temperatura=%.1f", delta, next))
	return next, nil
}

// SimulateMotion asks the security agent to act as if its sensor fired.
func (s *Service) SimulateMotion(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.send(bus.SimulatedMotion{}, bus.PriorityHigh) {
		s.store.LogEvent(eventMotionFailed)
		return ErrSendFailed
	}
	s.store.LogEvent(eventMotion)
	s.record(ctx, "simulate_motion", source, "")
	return nil
}

// ResetAlert sends a critical reset command to the security agent and
// clears the alert flag at once.
func (s *Service) ResetAlert(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := bus.Command{Target: bus.TargetSecurity, Action: bus.ActionResetAlert}
	if !s.send(cmd, bus.PriorityCritical) {
		s.store.LogEvent(eventResetFailed)
		return ErrSendFailed
	}
	if err := s.store.SetBool(state.FieldSecurityAlert, false); err != nil {
		return err
	}
	s.store.LogEvent(eventReset)
	s.record(ctx, "reset_alert", source, "")
	return nil
}

// SendCommand injects a command for target.
func (s *Service) SendCommand(ctx context.Context, source string, target bus.Target, action bus.Action) error {
	if !target.Valid() || !target.Accepts(action) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidCommand, target, action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.send(bus.Command{Target: target, Action: action}, bus.PriorityCritical) {
		return ErrSendFailed
	}
	s.store.LogEvent(fmt.Sprintf(eventCommandPattern, target, action))
	s.record(ctx, "command", source, string(target)+"/"+string(action))
	return nil
}

// ClearLog empties the event log.
func (s *Service) ClearLog(ctx context.Context, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.ClearLog()
	s.record(ctx, "clear_log", source, "")
}

func (s *Service) send(p bus.Payload, priority bus.Priority) bool {
	ok := s.bus.Send(bus.Message{
		From:     Name,
		SentAt:   s.now(),
		Priority: priority,
		Payload:  p,
	}, s.sendTimeout)
	if !ok {
		s.logger.Warn("console send failed", "kind", string(p.Kind()))
	}
	return ok
}

// record journals an action. Journal failures are logged, not returned:
// the action has already taken effect.
func (s *Service) record(ctx context.Context, action, source, details string) {
	s.logger.Info("operator action", "action", action, "source", source)
	if s.journal == nil {
		return
	}
	err := s.journal.Record(ctx, &journal.Entry{
		Action:  action,
		Source:  source,
		Details: details,
	})
	if err != nil {
		s.logger.Warn("journal write failed", "action", action, "error", err)
	}
}

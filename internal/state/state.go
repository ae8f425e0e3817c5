package state

import (
	"fmt"
	"sync"
	"time"
)

// Field names a value in the world model.
// The string values are the names used on the wire (JSON, MQTT, Redis).
type Field string

// World model fields.
const (
	FieldIsNight          Field = "es_noche"
	FieldPresenceExpected Field = "presencia_esperada"
	FieldMotionDetected   Field = "movimiento_detectado"
	FieldTemperature      Field = "temperatura"
	FieldHeatingOn        Field = "calefaccion_activada"
	FieldFanOn            Field = "ventilador_activado"
	FieldLightsOn         Field = "luces_activadas"
	FieldSecurityAlert    Field = "alerta_seguridad"
	FieldEventLog         Field = "registro_eventos"
)

// allFields lists every field in a stable order.
var allFields = []Field{
	FieldIsNight,
	FieldPresenceExpected,
	FieldMotionDetected,
	FieldTemperature,
	FieldHeatingOn,
	FieldFanOn,
	FieldLightsOn,
	FieldSecurityAlert,
	FieldEventLog,
}

// Event log limits.
const (
	// MaxEvents is the number of event lines retained, newest first.
	MaxEvents = 10

	// eventTimeLayout is the timestamp prefix of each event line.
	eventTimeLayout = "15:04:05"
)

// Initial values for a freshly created store.
const (
	defaultTemperature      = 22.0
	defaultPresenceExpected = true
)

// Fields returns every known field in a stable order.
func Fields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// ParseField converts a wire name into a Field.
//
// Returns:
//   - Field: The matching field
//   - error: ErrUnknownField if name is not part of the world model
func ParseField(name string) (Field, error) {
	for _, f := range allFields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Snapshot is a point-in-time copy of every field.
// It shares no memory with the Store that produced it.
type Snapshot struct {
	IsNight          bool     `json:"es_noche"`
	PresenceExpected bool     `json:"presencia_esperada"`
	MotionDetected   bool     `json:"movimiento_detectado"`
	Temperature      float64  `json:"temperatura"`
	HeatingOn        bool     `json:"calefaccion_activada"`
	FanOn            bool     `json:"ventilador_activado"`
	LightsOn         bool     `json:"luces_activadas"`
	SecurityAlert    bool     `json:"alerta_seguridad"`
	Events           []string `json:"registro_eventos"`
}

// clone returns a deep copy of the snapshot.
func (s Snapshot) clone() Snapshot {
	out := s
	out.Events = make([]string, len(s.Events))
	copy(out.Events, s.Events)
	return out
}

// boolRef returns a pointer to the boolean backing field f, or nil.
func (s *Snapshot) boolRef(f Field) *bool {
	switch f {
	case FieldIsNight:
		return &s.IsNight
	case FieldPresenceExpected:
		return &s.PresenceExpected
	case FieldMotionDetected:
		return &s.MotionDetected
	case FieldHeatingOn:
		return &s.HeatingOn
	case FieldFanOn:
		return &s.FanOn
	case FieldLightsOn:
		return &s.LightsOn
	case FieldSecurityAlert:
		return &s.SecurityAlert
	default:
		return nil
	}
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to timestamp event lines.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the mutex-guarded world model.
//
// Thread Safety: all methods are safe for concurrent use. No method calls out
// to another component while holding the lock.
type Store struct {
	mu     sync.Mutex
	values Snapshot
	now    func() time.Time
}

// New creates a Store with the initial world: daytime, presence expected,
// 22.0 degrees, every actuator off and an empty event log.
func New(opts ...Option) *Store {
	s := &Store{
		values: Snapshot{
			PresenceExpected: defaultPresenceExpected,
			Temperature:      defaultTemperature,
			Events:           []string{},
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current value of a field.
//
// Boolean fields return bool, FieldTemperature returns float64 and
// FieldEventLog returns a copy of the event lines as []string.
func (s *Store) Get(f Field) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref := s.values.boolRef(f); ref != nil {
		return *ref, nil
	}
	switch f {
	case FieldTemperature:
		return s.values.Temperature, nil
	case FieldEventLog:
		events := make([]string, len(s.values.Events))
		copy(events, s.values.Events)
		return events, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
}

// Set overwrites a field.
//
// The value must have the field's Go type: bool for flags, float64 for
// FieldTemperature. The event log is only changed through LogEvent and
// ClearLog.
//
// Returns:
//   - error: ErrUnknownField, ErrTypeMismatch or ErrReadOnlyField, nil on success
func (s *Store) Set(f Field, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ref := s.values.boolRef(f); ref != nil {
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %q wants bool, got %T", ErrTypeMismatch, f, value)
		}
		*ref = v
		return nil
	}

	switch f {
	case FieldTemperature:
		v, ok := value.(float64)
		if !ok {
			return fmt.Errorf("%w: %q wants float64, got %T", ErrTypeMismatch, f, value)
		}
		s.values.Temperature = v
		return nil
	case FieldEventLog:
		return fmt.Errorf("%w: %q", ErrReadOnlyField, f)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
}

// Bool reads a boolean field.
func (s *Store) Bool(f Field) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := s.values.boolRef(f)
	if ref == nil {
		if f == FieldTemperature || f == FieldEventLog {
			return false, fmt.Errorf("%w: %q is not a bool", ErrTypeMismatch, f)
		}
		return false, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return *ref, nil
}

// SetBool writes a boolean field.
func (s *Store) SetBool(f Field, v bool) error {
	return s.Set(f, v)
}

// Float reads a numeric field.
func (s *Store) Float(f Field) (float64, error) {
	if f != FieldTemperature {
		if _, err := ParseField(string(f)); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %q is not a float64", ErrTypeMismatch, f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Temperature, nil
}

// SetFloat writes a numeric field.
func (s *Store) SetFloat(f Field, v float64) error {
	return s.Set(f, v)
}

// Snapshot returns a consistent copy of every field taken under one lock
// acquisition.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.clone()
}

// LogEvent prepends a timestamped line to the event log and drops the oldest
// lines beyond MaxEvents.
func (s *Store) LogEvent(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.now().Format(eventTimeLayout) + " - " + text

	events := make([]string, 0, MaxEvents)
	events = append(events, line)
	for _, e := range s.values.Events {
		if len(events) == MaxEvents {
			break
		}
		events = append(events, e)
	}
	s.values.Events = events
}

// Events returns a copy of the event log, newest first.
func (s *Store) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := make([]string, len(s.values.Events))
	copy(events, s.values.Events)
	return events
}

// ClearLog empties the event log.
func (s *Store) ClearLog() {
	s.mu.Lock()
	s.values.Events = []string{}
	s.mu.Unlock()
}

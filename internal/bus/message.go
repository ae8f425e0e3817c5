package bus

import "time"

// Priority orders delivery. Higher values are delivered first.
type Priority int

// Priority bands.
const (
	PriorityNormal   Priority = 0
	PriorityHigh     Priority = 1
	PriorityCritical Priority = 2
)

// String returns the band name.
func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Kind is the message discriminator ("tipo" on the wire).
type Kind string

// Message kinds.
const (
	KindCommand         Kind = "comando"
	KindAlertReset      Kind = "reiniciar_alerta"
	KindMotion          Kind = "movimiento"
	KindAlert           Kind = "alerta"
	KindSimulatedMotion Kind = "simular_movimiento"
)

// Target names the subsystem a Command is addressed to.
type Target string

// Command targets.
const (
	TargetTemperature Target = "temperatura"
	TargetLighting    Target = "iluminacion"
	TargetSecurity    Target = "seguridad"
)

// Valid reports whether t is a known target.
func (t Target) Valid() bool {
	switch t {
	case TargetTemperature, TargetLighting, TargetSecurity:
		return true
	}
	return false
}

// Action is the verb carried by a Command.
type Action string

// Command actions.
const (
	ActionHeatingOn  Action = "activar_calefaccion"
	ActionHeatingOff Action = "desactivar_calefaccion"
	ActionFanOn      Action = "activar_ventilador"
	ActionFanOff     Action = "desactivar_ventilador"
	ActionLightsOn   Action = "activar_luces"
	ActionLightsOff  Action = "desactivar_luces"
	ActionResetAlert Action = "reiniciar_alerta"
)

// targetActions lists the actions each target understands.
var targetActions = map[Target][]Action{
	TargetTemperature: {ActionHeatingOn, ActionHeatingOff, ActionFanOn, ActionFanOff},
	TargetLighting:    {ActionLightsOn, ActionLightsOff},
	TargetSecurity:    {ActionResetAlert},
}

// Accepts reports whether target t understands action a.
func (t Target) Accepts(a Action) bool {
	for _, known := range targetActions[t] {
		if known == a {
			return true
		}
	}
	return false
}

// Payload is the closed set of message bodies. Only the types in this
// package implement it.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Command asks the agent owning Target to perform Action.
type Command struct {
	Target Target
	Action Action
}

// AlertReset clears the security alert.
type AlertReset struct{}

// Motion reports a motion sensor reading.
type Motion struct {
	Detected bool
}

// Alert reports an alert raised by an agent.
type Alert struct {
	Reason string
}

// SimulatedMotion asks the security agent to act as if motion was sensed.
type SimulatedMotion struct{}

func (Command) Kind() Kind         { return KindCommand }
func (AlertReset) Kind() Kind      { return KindAlertReset }
func (Motion) Kind() Kind          { return KindMotion }
func (Alert) Kind() Kind           { return KindAlert }
func (SimulatedMotion) Kind() Kind { return KindSimulatedMotion }

func (Command) isPayload()         {}
func (AlertReset) isPayload()      {}
func (Motion) isPayload()          {}
func (Alert) isPayload()           {}
func (SimulatedMotion) isPayload() {}

// Message is the envelope carried by the bus.
//
// Messages are values: the bus stores a copy, so a sender mutating its own
// variable after Send has no effect on what receivers observe.
type Message struct {
	// ID is assigned by the bus when empty.
	ID string

	// From names the sending agent. Stamped by the agent runtime.
	From string

	// SentAt is the send time. Stamped by the agent runtime.
	SentAt time.Time

	// Priority is the sender's hint. On a received message it holds the
	// effective priority the bus used for ordering.
	Priority Priority

	Payload Payload
}

// Kind returns the payload's kind, or "" when there is no payload.
func (m Message) Kind() Kind {
	if m.Payload == nil {
		return ""
	}
	return m.Payload.Kind()
}

// InferPriority returns the priority implied by a kind.
// The second result is false for kinds that carry no implied priority.
func InferPriority(k Kind) (Priority, bool) {
	switch k {
	case KindCommand, KindAlertReset:
		return PriorityCritical, true
	case KindMotion, KindAlert:
		return PriorityHigh, true
	default:
		return PriorityNormal, false
	}
}

// EffectivePriority returns the priority the bus orders m by.
//
// A kind with an implied priority always wins over the sender's hint, even
// when the hint is lower: commands and alert resets are always critical.
func EffectivePriority(m Message) Priority {
	if p, ok := InferPriority(m.Kind()); ok {
		return p
	}
	return m.Priority
}

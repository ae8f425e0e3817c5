package lighting

import "time"

// Behaviour toggles the individual automatic rules.
type Behaviour struct {
	AutoOnAtDusk              bool
	AutoOffAtDawn             bool
	KeepOnAtNightWithPresence bool
	OnWithMotionAtNight       bool
}

// Config holds the lighting policy settings.
type Config struct {
	// IdleTimeout is how long after the last night-time motion the lights
	// may be switched off when nobody is expected.
	IdleTimeout time.Duration

	// Interval is the pause between cycles.
	Interval time.Duration

	Behaviour Behaviour
}

// DefaultConfig returns the standard lighting settings with every rule enabled.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 30 * time.Second,
		Interval:    50 * time.Millisecond,
		Behaviour: Behaviour{
			AutoOnAtDusk:              true,
			AutoOffAtDawn:             true,
			KeepOnAtNightWithPresence: true,
			OnWithMotionAtNight:       true,
		},
	}
}

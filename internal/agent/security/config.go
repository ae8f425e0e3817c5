package security

import "time"

// Config holds the security policy settings.
type Config struct {
	// MotionProbability is the per-cycle chance of a simulated sensor trigger.
	MotionProbability float64

	// AlertCooldown is the minimum time between two alerts.
	AlertCooldown time.Duration

	// Interval is the pause between cycles.
	Interval time.Duration
}

// DefaultConfig returns the standard security settings.
func DefaultConfig() Config {
	return Config{
		MotionProbability: 0.01,
		AlertCooldown:     5 * time.Second,
		Interval:          50 * time.Millisecond,
	}
}

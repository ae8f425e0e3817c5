package temperature

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the regulation bands and actuator strengths.
type Config struct {
	// Low and High are the thresholds that switch heating and the fan on.
	Low  float64
	High float64

	// OptimalMin and OptimalMax bound the band in which both actuators are
	// switched off.
	OptimalMin float64
	OptimalMax float64

	// HeatingPower and CoolingPower are the degrees per cycle, before scaling,
	// added by heating and removed by the fan.
	HeatingPower float64
	CoolingPower float64

	// Variation is the half-width of the uniform random drift applied every
	// cycle.
	Variation float64

	// Interval is the pause between cycles.
	Interval time.Duration
}

// DefaultConfig returns the standard regulation bands.
func DefaultConfig() Config {
	return Config{
		Low:          19.5,
		High:         26.0,
		OptimalMin:   20.5,
		OptimalMax:   24.0,
		HeatingPower: 0.08,
		CoolingPower: 0.10,
		Variation:    0.05,
		Interval:     300 * time.Millisecond,
	}
}

// Validate checks that the bands do not overlap.
func (c Config) Validate() error {
	var errs []string

	if c.Low >= c.OptimalMin {
		errs = append(errs, "low must be below optimal_min")
	}
	if c.OptimalMin > c.OptimalMax {
		errs = append(errs, "optimal_min must not exceed optimal_max")
	}
	if c.OptimalMax >= c.High {
		errs = append(errs, "optimal_max must be below high")
	}
	if c.HeatingPower < 0 || c.CoolingPower < 0 {
		errs = append(errs, "heating and cooling power must not be negative")
	}
	if c.Variation < 0 {
		errs = append(errs, "variation must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/nerrad567/gray-logic-agents/internal/agent"
	"github.com/nerrad567/gray-logic-agents/internal/agent/lighting"
	"github.com/nerrad567/gray-logic-agents/internal/agent/security"
	"github.com/nerrad567/gray-logic-agents/internal/agent/temperature"
	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-agents/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-agents/internal/state"
)

// buildAgents creates a runtime for each enabled agent, in start order.
func buildAgents(cfg *config.Config, b *bus.Bus, store *state.Store, log *logging.Logger) ([]*agent.Runtime, error) {
	timings := agent.Timings{
		ErrorCooldown: cfg.Agents.Runtime.ErrorCooldown,
		HealthWindow:  cfg.Agents.Runtime.HealthWindow,
	}

	var runtimes []*agent.Runtime

	if c := cfg.Agents.Temperature; c.Enabled {
		tc := temperature.Config{
			Low:          c.Low,
			High:         c.High,
			OptimalMin:   c.OptimalMin,
			OptimalMax:   c.OptimalMax,
			HeatingPower: c.HeatingPower,
			CoolingPower: c.CoolingPower,
			Variation:    c.Variation,
			Interval:     c.Interval,
		}
		if err := tc.Validate(); err != nil {
			return nil, fmt.Errorf("building %s agent: %w", temperature.Name, err)
		}
		runtimes = append(runtimes, temperature.NewAgent(b, store, tc, timings, log.Component(temperature.Name)))
	} else {
		log.Info("agent disabled", "agent", temperature.Name)
	}

	if c := cfg.Agents.Lighting; c.Enabled {
		runtimes = append(runtimes, lighting.NewAgent(b, store, lighting.Config{
			IdleTimeout: c.IdleTimeout,
			Interval:    c.Interval,
			Behaviour: lighting.Behaviour{
				AutoOnAtDusk:              c.AutoOnAtDusk,
				AutoOffAtDawn:             c.AutoOffAtDawn,
				KeepOnAtNightWithPresence: c.KeepOnAtNightWithPresence,
				OnWithMotionAtNight:       c.OnWithMotionAtNight,
			},
		}, timings, log.Component(lighting.Name)))
	} else {
		log.Info("agent disabled", "agent", lighting.Name)
	}

	if c := cfg.Agents.Security; c.Enabled {
		runtimes = append(runtimes, security.NewAgent(b, store, security.Config{
			MotionProbability: c.MotionProbability,
			AlertCooldown:     c.AlertCooldown,
			Interval:          c.Interval,
		}, timings, log.Component(security.Name)))
	} else {
		log.Info("agent disabled", "agent", security.Name)
	}

	return runtimes, nil
}

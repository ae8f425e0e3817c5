// Package config handles loading and validating Gray Logic Agents configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of agent bands, bus limits and enabled sinks
//   - Default value handling
//
// Durations (agent intervals, cooldowns, bus max age) are written in YAML
// as Go duration strings such as "300ms" or "5s".
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token, Redis password) should be
//     set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if errors.Is(err, fs.ErrNotExist) {
//	    cfg, err = config.LoadDefaults()
//	}
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

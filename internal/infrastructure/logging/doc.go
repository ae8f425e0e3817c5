// Package logging provides structured logging for Gray Logic Agents.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the agents, the bus and the
// console surfaces.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	busLogger := logger.Component("bus")
//	busLogger.Warn("message lost", "kind", "movimiento")
//
// The home event log shown on the panel is separate: it lives in the state
// store and carries Spanish operator-facing lines, while this package
// carries diagnostic logs.
package logging

// Package api implements the HTTP REST API and WebSocket server for the
// operator console.
//
// This package provides:
//   - REST endpoints for reading the home state and taking operator actions
//   - WebSocket hub pushing state snapshots as they change
//   - Agent, bus and journal inspection endpoints
//   - Middleware stack (request ID, logging, recovery, CORS, rate limiting)
//   - Prometheus /metrics and the embedded console page under /panel/
//
// # Architecture
//
// Every operator action is delegated to the console service, which applies
// it to the shared state or sends it on the message bus and records it in
// the operator journal. The API itself holds no home state.
//
// # Rate Limiting
//
// Mutating endpoints share a per-client token bucket configured under
// security.rate_limit. Reads are not limited.
package api

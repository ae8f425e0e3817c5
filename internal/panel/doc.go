// Package panel serves the operator console page embedded in the binary.
//
// The page is plain HTML, CSS and JavaScript under web/. It reads the home
// state over the /api/v1/ws WebSocket and drives operator actions through
// the REST API, with the same keyboard shortcuts as the desktop console
// (P, M, N, T, G, R).
package panel

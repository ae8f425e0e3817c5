package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-agents/internal/bus"
	"github.com/nerrad567/gray-logic-agents/internal/console"
	"github.com/nerrad567/gray-logic-agents/internal/journal"
)

// AdjustTemperatureRequest is the body of POST /temperature/adjust.
type AdjustTemperatureRequest struct {
	Delta *float64 `json:"delta"`
}

// CommandRequest is the body of POST /commands.
type CommandRequest struct {
	Target string `json:"target"`
	Action string `json:"action"`
}

// handleGetState returns the current home snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.console.Snapshot())
}

// handleTogglePresence flips presence_expected.
func (s *Server) handleTogglePresence(w http.ResponseWriter, r *http.Request) {
	present, err := s.console.TogglePresence(r.Context(), journal.SourceAPI)
	if err != nil {
		s.writeConsoleError(w, "toggle presence", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"presencia_esperada": present})
}

// handleToggleNight flips es_noche.
func (s *Server) handleToggleNight(w http.ResponseWriter, r *http.Request) {
	night, err := s.console.ToggleNight(r.Context(), journal.SourceAPI)
	if err != nil {
		s.writeConsoleError(w, "toggle night", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"es_noche": night})
}

// handleAdjustTemperature adds delta degrees, clamped by the console.
func (s *Server) handleAdjustTemperature(w http.ResponseWriter, r *http.Request) {
	var req AdjustTemperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Delta == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "delta is required")
		return
	}

	temp, err := s.console.AdjustTemperature(r.Context(), journal.SourceAPI, *req.Delta)
	if err != nil {
		s.writeConsoleError(w, "adjust temperature", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"temperatura": temp})
}

// handleSimulateMotion asks the security agent to treat the sensor as fired.
func (s *Server) handleSimulateMotion(w http.ResponseWriter, r *http.Request) {
	if err := s.console.SimulateMotion(r.Context(), journal.SourceAPI); err != nil {
		s.writeConsoleError(w, "simulate motion", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// handleResetAlert clears the security alert.
func (s *Server) handleResetAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.console.ResetAlert(r.Context(), journal.SourceAPI); err != nil {
		s.writeConsoleError(w, "reset alert", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// handleSendCommand injects a command for one agent.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Target == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "target and action are required")
		return
	}

	err := s.console.SendCommand(r.Context(), journal.SourceAPI, bus.Target(req.Target), bus.Action(req.Action))
	if err != nil {
		s.writeConsoleError(w, "send command", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// handleClearEvents empties the event log.
func (s *Server) handleClearEvents(w http.ResponseWriter, r *http.Request) {
	s.console.ClearLog(r.Context(), journal.SourceAPI)
	w.WriteHeader(http.StatusNoContent)
}

// writeConsoleError maps console errors onto HTTP responses.
func (s *Server) writeConsoleError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, console.ErrInvalidCommand), errors.Is(err, console.ErrInvalidDelta):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, console.ErrSendFailed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeBusBusy, "message bus busy, try again")
	default:
		s.logger.Error("console action failed", "op", op, "error", err)
		writeInternalError(w, "failed to "+op)
	}
}

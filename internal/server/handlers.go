package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/timetocall/callbridge/internal/call"
)

// startCallRequest is the body of POST /start-call.
type startCallRequest struct {
	CallID      string `json:"call_id"`
	PhoneNumber string `json:"phone_number"`
	Briefing    string `json:"briefing"`
	CallbackURL string `json:"callback_url"`
	Language    string `json:"language"`
	UserName    string `json:"user_name"`
}

// endCallRequest is the body of POST /end-call.
type endCallRequest struct {
	CallID string `json:"call_id"`
}

// webhookEnvelope mirrors the Telnyx Call Control webhook layout.
type webhookEnvelope struct {
	Data struct {
		EventType string `json:"event_type"`
		Payload   struct {
			CallControlID string `json:"call_control_id"`
		} `json:"payload"`
	} `json:"data"`
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	missing := ""
	switch {
	case req.CallID == "":
		missing = "call_id"
	case req.PhoneNumber == "":
		missing = "phone_number"
	case req.Briefing == "":
		missing = "briefing"
	case req.CallbackURL == "":
		missing = "callback_url"
	}
	if missing != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing required field: " + missing})
		return
	}

	if s.moderate != nil {
		if err := s.moderate(r.Context(), req.Briefing); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "briefing rejected: " + err.Error()})
			return
		}
	}

	controlID, err := s.engine.StartCall(r.Context(), call.Params{
		CallID:      req.CallID,
		PhoneNumber: req.PhoneNumber,
		Briefing:    req.Briefing,
		CallbackURL: req.CallbackURL,
		Language:    req.Language,
		UserName:    req.UserName,
	})
	if err != nil {
		slog.Error("start call failed", "call_id", req.CallID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to start call"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":                 "ok",
		"telnyx_call_control_id": controlID,
	})
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	var req endCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	// Ending an unknown or already-finished call is not an error; the
	// orchestrator only cares that the call is gone.
	s.engine.EndCall(r.Context(), req.CallID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("media stream accept failed", "err", err)
		return
	}

	if callID == "" {
		_ = conn.Close(websocket.StatusPolicyViolation, "call_id query parameter required")
		return
	}

	s.engine.HandleMediaWS(r.Context(), callID, conn)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var env webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	eventType := env.Data.EventType
	controlID := env.Data.Payload.CallControlID
	slog.Debug("telnyx webhook", "event_type", eventType, "control_id", controlID)

	switch eventType {
	case "call.answered":
		s.engine.HandleAnswered(r.Context(), controlID)
	case "call.hangup":
		s.engine.HandleHangup(r.Context(), controlID)
	case "call.ringing":
		s.engine.HandleRinging(controlID)
	case "call.initiated":
		// Informational only; the dial response already carried the ID.
	default:
		slog.Debug("ignoring webhook event", "event_type", eventType)
	}

	// Telnyx retries on non-2xx; every recognised-or-not event is acked.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

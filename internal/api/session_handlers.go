package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/dashboard"
)

// writeSessionError maps dashboard errors to responses
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dashboard.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Session not found", err.Error())
	case errors.Is(err, dashboard.ErrSessionForbidden):
		writeError(w, http.StatusForbidden, "Session belongs to another clinician", "")
	case errors.Is(err, dashboard.ErrUnknownPatient):
		writeError(w, http.StatusNotFound, "Patient not found", err.Error())
	case errors.Is(err, dashboard.ErrInvalidTab):
		writeError(w, http.StatusBadRequest, "Invalid tab", err.Error())
	case errors.Is(err, dashboard.ErrNoSelection):
		writeError(w, http.StatusConflict, "No patient selected", err.Error())
	case errors.Is(err, dashboard.ErrSessionClosed):
		writeError(w, http.StatusGone, "Session closed", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Request cancelled", err.Error())
	default:
		writeStoreError(w, r, err)
	}
}

// sessionFromRequest resolves {sid} for the authenticated clinician
func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*dashboard.Session, bool) {
	clinician, err := GetClinicianFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, ErrInvalidToken, err.Error())
		return nil, false
	}

	sess, err := s.sessions.Get(mux.Vars(r)["sid"], clinician.Email)
	if err != nil {
		writeSessionError(w, r, err)
		return nil, false
	}
	return sess, true
}

// CreateSessionHandler opens a dashboard session over the current roster
func (s *Server) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	clinician, err := GetClinicianFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, ErrInvalidToken, err.Error())
		return
	}

	sess, err := s.sessions.Create(r.Context(), clinician.Email)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	log.Info().Str("session", sess.ID).Str("owner", clinician.Email).Msg("Dashboard session created")
	writeJSON(w, http.StatusCreated, SessionResponse{SessionID: sess.ID, State: snap})
}

// GetSessionHandler returns the current view state
func (s *Server) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: sess.ID, State: snap})
}

// SelectPatientHandler selects a patient and starts its insight computation
func (s *Server) SelectPatientHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req SelectPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "")
		return
	}
	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "Missing patient", "Field 'patientId' is required")
		return
	}

	snap, err := sess.Select(r.Context(), req.PatientID)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: sess.ID, State: snap})
}

// SetTabHandler switches the active data view
func (s *Server) SetTabHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req SetTabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "")
		return
	}

	tab, err := dashboard.ParseTab(req.Tab)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}

	snap, err := sess.SetTab(r.Context(), tab)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{SessionID: sess.ID, State: snap})
}

// DeleteSessionHandler closes a session
func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	clinician, err := GetClinicianFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, ErrInvalidToken, err.Error())
		return
	}

	if err := s.sessions.Close(mux.Vars(r)["sid"], clinician.Email); err != nil {
		writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

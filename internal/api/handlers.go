package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/dashboard"
	"stealthcompany.com/holdmed/internal/insight"
	"stealthcompany.com/holdmed/internal/store"
)

// Server holds what the HTTP handlers need
type Server struct {
	store    store.Store
	engine   *insight.Engine
	sessions *dashboard.Manager
	auth     Authenticator
	tokens   *TokenIssuer
}

// NewServer creates the HTTP server state
func NewServer(st store.Store, engine *insight.Engine, sessions *dashboard.Manager, auth Authenticator, tokens *TokenIssuer) *Server {
	if engine == nil {
		engine = insight.NewEngine(nil)
	}
	return &Server{
		store:    st,
		engine:   engine,
		sessions: sessions,
		auth:     auth,
		tokens:   tokens,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, errMsg, message string) {
	writeJSON(w, status, ErrorResponse{Error: errMsg, Message: message})
}

// writeStoreError maps record store errors to responses
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "Patient not found", err.Error())
	case errors.Is(err, store.ErrIngestionInProgress):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "Records are being refreshed", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Record store error")
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
	}
}

// HealthHandler reports liveness
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: s.sessions.Count()})
}

// LoginHandler exchanges credentials for a clinician token
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Missing credentials", "Fields 'email' and 'password' are required")
		return
	}

	clinician, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Warn().Str("email", req.Email).Err(err).Msg(LogLoginFailed)
		writeError(w, http.StatusUnauthorized, "Invalid credentials", err.Error())
		return
	}

	token, expiresAt, err := s.tokens.Issue(clinician)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue token")
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	log.Info().Str("email", clinician.Email).Msg("Clinician logged in")
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		Name:      clinician.Name,
		Email:     clinician.Email,
		ExpiresAt: expiresAt,
	})
}

// ListPatientsHandler returns the roster summaries
func (s *Server) ListPatientsHandler(w http.ResponseWriter, r *http.Request) {
	patients, err := s.store.ListPatients(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	summaries := make([]clinical.PatientSummary, 0, len(patients))
	for _, p := range patients {
		summaries = append(summaries, p.Summary())
	}
	writeJSON(w, http.StatusOK, PatientsResponse{Patients: summaries, Count: len(summaries)})
}

func (s *Server) patientFromRequest(w http.ResponseWriter, r *http.Request) (*clinical.Patient, bool) {
	p, err := s.store.GetPatient(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, r, err)
		return nil, false
	}
	return p, true
}

// GetPatientHandler returns a full patient record
func (s *Server) GetPatientHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.patientFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PatientInsightHandler computes the risk insight of a patient on demand
func (s *Server) PatientInsightHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.patientFromRequest(w, r)
	if !ok {
		return
	}

	ri, err := s.engine.Compute(p)
	if err != nil {
		if errors.Is(err, insight.ErrNoVitalData) {
			writeError(w, http.StatusUnprocessableEntity, "Insight unavailable", err.Error())
			return
		}
		log.Error().Err(err).Str("patient", p.ID).Msg("Insight computation failed")
		writeError(w, http.StatusInternalServerError, "Insight computation failed", "")
		return
	}
	writeJSON(w, http.StatusOK, ri)
}

// PatientTrendsHandler returns per-metric trends
func (s *Server) PatientTrendsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.patientFromRequest(w, r)
	if !ok {
		return
	}
	trends := clinical.Trends(p)
	if trends == nil {
		trends = []clinical.Trend{}
	}
	writeJSON(w, http.StatusOK, TrendsResponse{PatientID: p.ID, Trends: trends})
}

// NotesDigestHandler extracts keywords from the posted notes, or from the
// latest note on record when none are posted.
func (s *Server) NotesDigestHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.patientFromRequest(w, r)
	if !ok {
		return
	}

	var req NotesDigestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON format", "")
			return
		}
	}

	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		if latest, ok := clinical.LatestNote(p); ok {
			notes = latest.Content
		}
	}
	if notes == "" {
		writeError(w, http.StatusBadRequest, "Missing notes", "Field 'notes' is required when the patient has no clinical notes")
		return
	}

	writeJSON(w, http.StatusOK, insight.DigestNote(notes))
}

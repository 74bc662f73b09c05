package api

import (
	"time"

	"stealthcompany.com/holdmed/internal/clinical"
	"stealthcompany.com/holdmed/internal/dashboard"
)

// Request Types
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SelectPatientRequest struct {
	PatientID string `json:"patientId"`
}

type SetTabRequest struct {
	Tab string `json:"tab"`
}

type NotesDigestRequest struct {
	Notes string `json:"notes"`
}

// Response Types
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

type PatientsResponse struct {
	Patients []clinical.PatientSummary `json:"patients"`
	Count    int                       `json:"count"`
}

type TrendsResponse struct {
	PatientID string           `json:"patient_id"`
	Trends    []clinical.Trend `json:"trends"`
}

type SessionResponse struct {
	SessionID string             `json:"sessionId"`
	State     dashboard.Snapshot `json:"state"`
}

package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"stealthcompany.com/holdmed/internal/metrics"
)

// SetupRoutes configures and returns the HTTP router
func SetupRoutes(s *Server) *mux.Router {
	r := mux.NewRouter()

	r.Use(metrics.MetricsMiddleware)
	r.Use(s.tokens.AuthMiddleware)

	r.HandleFunc(HealthPath, s.HealthHandler).Methods("GET")
	r.Handle(MetricsPath, promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc(LoginPath, s.LoginHandler).Methods("POST")

	// Patient records
	r.HandleFunc("/api/patients", s.ListPatientsHandler).Methods("GET")
	r.HandleFunc("/api/patients/{id}", s.GetPatientHandler).Methods("GET")
	r.HandleFunc("/api/patients/{id}/insight", s.PatientInsightHandler).Methods("GET")
	r.HandleFunc("/api/patients/{id}/trends", s.PatientTrendsHandler).Methods("GET")
	r.HandleFunc("/api/patients/{id}/notes/digest", s.NotesDigestHandler).Methods("POST")

	// Dashboard sessions
	r.HandleFunc("/api/sessions", s.CreateSessionHandler).Methods("POST")
	r.HandleFunc("/api/sessions/{sid}", s.GetSessionHandler).Methods("GET")
	r.HandleFunc("/api/sessions/{sid}", s.DeleteSessionHandler).Methods("DELETE")
	r.HandleFunc("/api/sessions/{sid}/select", s.SelectPatientHandler).Methods("POST")
	r.HandleFunc("/api/sessions/{sid}/tab", s.SetTabHandler).Methods("PUT")
	r.HandleFunc("/api/sessions/{sid}/events", s.SessionEventsHandler).Methods("GET")

	return r
}

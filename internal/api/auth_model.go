package api

import (
	"github.com/golang-jwt/jwt/v5"
)

// Context key types to avoid collisions
type contextKey string

const (
	ClinicianEmailKey contextKey = "clinicianEmail"
	ClinicianNameKey  contextKey = "clinicianName"
	JWTClaimsKey      contextKey = "jwtClaims"
)

// HTTP header constants
const (
	AuthorizationHeader = "Authorization"
	BearerPrefix        = "Bearer "
	AccessTokenParam    = "access_token"
)

// HTTP path constants
const (
	HealthPath  = "/health"
	MetricsPath = "/metrics"
	LoginPath   = "/api/login"
)

const TokenIssuerName = "holdmed"

// Error message constants
const (
	ErrAuthHeaderRequired = "Authorization header required"
	ErrInvalidAuthHeader  = "Invalid authorization header format"
	ErrInvalidToken       = "Invalid token"

	ErrClinicianNotFound  = "clinician not found in context"
	ErrInvalidTokenClaims = "invalid token claims"
	ErrTokenParseFailed   = "failed to parse token: %w"
	ErrTokenSignFailed    = "failed to sign token: %w"
	ErrMissingSubject     = "token has no subject"
)

// Log message constants
const (
	LogJWTValidationFailed = "JWT token validation failed"
	LogLoginFailed         = "Login failed"
)

// ClinicianClaims are the claims of tokens issued at login. The subject is
// the clinician email.
type ClinicianClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Clinician is the authenticated user of the dashboard
type Clinician struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

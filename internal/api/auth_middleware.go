package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on websocket handshakes, so upgrades may pass it as the
// access_token query parameter instead.
func bearerToken(r *http.Request) (string, string) {
	authHeader := r.Header.Get(AuthorizationHeader)
	if authHeader == "" {
		if websocket.IsWebSocketUpgrade(r) {
			if token := r.URL.Query().Get(AccessTokenParam); token != "" {
				return token, ""
			}
		}
		return "", ErrAuthHeaderRequired
	}

	if !strings.HasPrefix(authHeader, BearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
	if token == "" {
		return "", ErrInvalidAuthHeader
	}
	return token, ""
}

// AuthMiddleware validates clinician tokens and stores the clinician in the
// request context
func (ti *TokenIssuer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health check, metrics and login
		if r.URL.Path == HealthPath || r.URL.Path == MetricsPath || r.URL.Path == LoginPath {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, problem := bearerToken(r)
		if problem != "" {
			log.Warn().Str("path", r.URL.Path).Msg(problem)
			writeError(w, http.StatusUnauthorized, problem, "")
			return
		}

		claims, err := ti.Verify(tokenString)
		if err != nil {
			log.Error().Err(err).Str("path", r.URL.Path).Msg(LogJWTValidationFailed)
			writeError(w, http.StatusUnauthorized, ErrInvalidToken, "")
			return
		}

		ctx := context.WithValue(r.Context(), ClinicianEmailKey, claims.Subject)
		ctx = context.WithValue(ctx, ClinicianNameKey, claims.Name)
		ctx = context.WithValue(ctx, JWTClaimsKey, claims)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

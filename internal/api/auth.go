package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (Clinician, error)
}

// StaticAuthenticator accepts a single configured clinician. It is a stand-in
// for a real identity provider.
type StaticAuthenticator struct {
	clinician Clinician
	password  string
}

func NewStaticAuthenticator(email, password, name string) *StaticAuthenticator {
	return &StaticAuthenticator{
		clinician: Clinician{Name: name, Email: strings.ToLower(strings.TrimSpace(email))},
		password:  password,
	}
}

func (a *StaticAuthenticator) Authenticate(ctx context.Context, email, password string) (Clinician, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.clinician.Email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !emailOK || !passOK {
		return Clinician{}, ErrInvalidCredentials
	}
	return a.clinician, nil
}

// TokenIssuer signs and verifies HS256 clinician tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue signs a token for c and returns it with its expiry.
func (ti *TokenIssuer) Issue(c Clinician) (string, time.Time, error) {
	now := ti.now().UTC()
	expiresAt := now.Add(ti.ttl)

	claims := ClinicianClaims{
		Name:  c.Name,
		Email: c.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    TokenIssuerName,
			Subject:   c.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf(ErrTokenSignFailed, err)
	}
	return signed, expiresAt, nil
}

// Verify validates the signature, issuer and timing of tokenString.
func (ti *TokenIssuer) Verify(tokenString string) (*ClinicianClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ClinicianClaims{},
		func(t *jwt.Token) (interface{}, error) { return ti.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, fmt.Errorf(ErrTokenParseFailed, err)
	}

	claims, ok := token.Claims.(*ClinicianClaims)
	if !ok || !token.Valid {
		return nil, errors.New(ErrInvalidTokenClaims)
	}
	if claims.Subject == "" {
		return nil, errors.New(ErrMissingSubject)
	}
	return claims, nil
}

// GetClinicianFromContext returns the clinician the auth middleware stored.
func GetClinicianFromContext(ctx context.Context) (Clinician, error) {
	email, ok := ctx.Value(ClinicianEmailKey).(string)
	if !ok || email == "" {
		return Clinician{}, errors.New(ErrClinicianNotFound)
	}
	name, _ := ctx.Value(ClinicianNameKey).(string)
	return Clinician{Name: name, Email: email}, nil
}

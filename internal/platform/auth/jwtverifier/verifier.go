package jwtverifier

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Overland-East-Bay/trip-notifier/internal/platform/config"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Verifier checks the bearer tokens that trip-sharing backends present to the notification API.
// Tokens are HS256-signed with a shared secret.
type Verifier struct {
	cfg   config.APIAuthConfig
	clock Clock
}

func New(cfg config.APIAuthConfig) *Verifier {
	return NewWithOptions(cfg, nil)
}

func NewWithOptions(cfg config.APIAuthConfig, clock Clock) *Verifier {
	if clock == nil {
		clock = realClock{}
	}
	return &Verifier{cfg: cfg, clock: clock}
}

// Verify verifies a JWT and returns the authenticated subject from the `sub` claim.
//
// Verification:
// - HS256 signature with the configured secret
// - iss, aud, exp (required) and nbf when present, each with ClockSkew leeway
func (v *Verifier) Verify(ctx context.Context, token string) (string, error) {
	_ = ctx
	if v.cfg.Secret == "" {
		return "", ErrUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.cfg.ClockSkew),
		jwt.WithTimeFunc(v.clock.Now),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(v.cfg.Secret), nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return "", ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}

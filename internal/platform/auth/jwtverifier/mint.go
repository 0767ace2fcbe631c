package jwtverifier

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Overland-East-Bay/trip-notifier/internal/platform/config"
)

// Mint signs a bearer token accepted by a Verifier configured with cfg.
// It backs the `token mint` command and tests; production callers mint their own.
func Mint(cfg config.APIAuthConfig, sub string, now time.Time, ttl time.Duration) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("API_JWT_SECRET is required to mint a token")
	}
	if sub == "" {
		return "", errors.New("subject is required")
	}
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

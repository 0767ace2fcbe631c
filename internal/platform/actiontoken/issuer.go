// Package actiontoken issues and verifies the signed, time-limited tokens
// embedded in email action links (verify account, accept or reject a join request).
package actiontoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Overland-East-Bay/trip-notifier/internal/domain"
	clockport "github.com/Overland-East-Bay/trip-notifier/internal/ports/out/clock"
)

const (
	VerificationTTL  = 24 * time.Hour
	ParticipationTTL = 7 * 24 * time.Hour
)

// Purpose scopes a token to the endpoint that will accept it.
type Purpose string

const (
	PurposeVerifyEmail         Purpose = "verify_email"
	PurposeParticipationAction Purpose = "participation_action"
)

var (
	// ErrSecretMissing is returned when no signing secret is configured.
	ErrSecretMissing = errors.New("action token secret is not configured")
	ErrInvalidToken  = errors.New("invalid action token")
	ErrExpired       = errors.New("action token expired")
)

// Payload is what a token carries. Action is empty for verification tokens.
type Payload struct {
	SubjectID string
	Action    domain.ParticipationAction
	Purpose   Purpose
}

// Claims is the JWT body of an action token.
type Claims struct {
	Action  string `json:"action,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	issuer string
	clock  clockport.Clock
}

func NewIssuer(secret, issuer string, clk clockport.Clock) *Issuer {
	return &Issuer{secret: []byte(strings.TrimSpace(secret)), issuer: issuer, clock: clk}
}

// Issue signs p with HS256 and an expiry of ttl from now.
func (i *Issuer) Issue(p Payload, ttl time.Duration) (string, error) {
	if len(i.secret) == 0 {
		return "", ErrSecretMissing
	}
	if strings.TrimSpace(p.SubjectID) == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", ErrInvalidToken)
	}

	now := i.clock.Now()
	claims := Claims{
		Action:  string(p.Action),
		Purpose: string(p.Purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign action token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, purpose and expiry and returns the payload.
func (i *Issuer) Verify(token string, purpose Purpose) (Payload, error) {
	if len(i.secret) == 0 {
		return Payload{}, ErrSecretMissing
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Payload{}, ErrExpired
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Payload{}, ErrInvalidToken
	}
	if Purpose(claims.Purpose) != purpose {
		return Payload{}, fmt.Errorf("%w: purpose %q, want %q", ErrInvalidToken, claims.Purpose, purpose)
	}
	return Payload{
		SubjectID: claims.Subject,
		Action:    domain.ParticipationAction(claims.Action),
		Purpose:   Purpose(claims.Purpose),
	}, nil
}

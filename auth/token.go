package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tink/errors"
)

const issuer = "tink"

// Scope tells which side of a session a token speaks for.
type Scope string

const (
	ScopeFacilitator Scope = "facilitator"
	ScopeParticipant Scope = "participant"
)

// Claims binds a token to one session and one seat in it.
type Claims struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
	Scope         Scope  `json:"scope"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenIssuer(secret string, duration time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), duration: duration, now: now}
}

// Issue signs an HS256 token for participantID in sessionID.
func (i *TokenIssuer) Issue(sessionID, participantID string, scope Scope) (string, error) {
	now := i.now()
	claims := &Claims{
		SessionID:     sessionID,
		ParticipantID: participantID,
		Scope:         scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

// Validate checks the signature, algorithm, issuer and expiry of a token.
func (i *TokenIssuer) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(BearerToken(token), &Claims{}, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", errors.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid claims", errors.ErrUnauthorized)
	}
	return claims, nil
}

// Authorize validates token and checks it was issued for sessionID with scope.
func (i *TokenIssuer) Authorize(token, sessionID string, scope Scope) (*Claims, error) {
	claims, err := i.Validate(token)
	if err != nil {
		return nil, err
	}
	if claims.SessionID != sessionID {
		return nil, fmt.Errorf("%w: token belongs to another session", errors.ErrForbidden)
	}
	if claims.Scope != scope {
		return nil, fmt.Errorf("%w: %s scope required", errors.ErrForbidden, scope)
	}
	return claims, nil
}

// Package auth turns bearer tokens into actors.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const issuer = "service-dispatch"

// Claims are the JWT claims of an actor. The subject is the actor id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService for secret.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("jwt secret must be at least 16 bytes: %w", apperr.ErrInvalid)
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Issue creates a token for actor valid for ttl.
func (s *TokenService) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	if actor.ID == "" || !actor.Role.Valid() {
		return "", fmt.Errorf("actor %q/%q: %w", actor.ID, actor.Role, apperr.ErrInvalid)
	}
	now := s.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies a token and returns its actor. Every failure wraps
// apperr.ErrUnauthorized.
func (s *TokenService) Parse(token string) (domain.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Actor{}, fmt.Errorf("token expired: %w", apperr.ErrUnauthorized)
		}
		return domain.Actor{}, fmt.Errorf("parse token: %v: %w", err, apperr.ErrUnauthorized)
	}

	actor := domain.Actor{ID: claims.Subject, Role: domain.Role(claims.Role)}
	if actor.ID == "" || !actor.Role.Valid() {
		return domain.Actor{}, fmt.Errorf("token carries no valid actor: %w", apperr.ErrUnauthorized)
	}
	return actor, nil
}

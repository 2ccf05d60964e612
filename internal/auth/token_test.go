package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

const secret = "0123456789abcdef-test"

func TestTokenService_IssueAndParse(t *testing.T) {
	t.Parallel()

	s, err := NewTokenService(secret)
	require.NoError(t, err)

	want := domain.Actor{ID: "d1", Role: domain.RoleDriver}
	tok, err := s.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := s.Parse(tok)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTokenService_Rejects(t *testing.T) {
	t.Parallel()

	s, err := NewTokenService(secret)
	require.NoError(t, err)
	other, err := NewTokenService("another-secret-of-length")
	require.NoError(t, err)

	foreign, err := other.Issue(domain.Actor{ID: "a1", Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	_, err = s.Parse(foreign)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	expired, err := s.Issue(domain.Actor{ID: "a1", Role: domain.RoleAdmin}, -time.Minute)
	require.NoError(t, err)
	_, err = s.Parse(expired)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = s.Parse(badRole)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = s.Parse("not-a-token")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestTokenService_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService("short")
	require.ErrorIs(t, err, apperr.ErrInvalid)

	s, err := NewTokenService(secret)
	require.NoError(t, err)
	_, err = s.Issue(domain.Actor{ID: "x", Role: "root"}, time.Hour)
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestActorContext(t *testing.T) {
	t.Parallel()

	_, ok := ActorFrom(context.Background())
	require.False(t, ok)

	ctx := WithActor(context.Background(), domain.SystemActor)
	got, ok := ActorFrom(ctx)
	require.True(t, ok)
	require.Equal(t, domain.SystemActor, got)
}

package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	userID := uuid.New()

	token, err := svc.Generate(userID, "student@example.com", "student")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, "student@example.com", claims.Email)
	require.Equal(t, "student", claims.Role)
}

func TestJWTWrongSecret(t *testing.T) {
	svc := NewJWTService("secret-a", 1)
	token, err := svc.Generate(uuid.New(), "u@example.com", "instructor")
	require.NoError(t, err)

	other := NewJWTService("secret-b", 1)
	_, err = other.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -1) // already expired at issue time
	token, err := svc.Generate(uuid.New(), "u@example.com", "student")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTGarbage(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	_, err := svc.Validate("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

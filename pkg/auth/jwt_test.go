package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", "meditrack", time.Hour)
	sid := uuid.New()

	token, expiresAt, err := svc.GenerateSessionToken(sid, "dr.house", "doctor")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, sid.String(), claims.SessionID)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, "dr.house", claims.Subject)
}

func TestJWTService_Expired(t *testing.T) {
	svc := NewJWTService("test-secret", "meditrack", time.Minute).(*jwtService)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := svc.GenerateSessionToken(uuid.New(), "nurse", "nurse")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTService_WrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-a", "meditrack", time.Hour)
	verifier := NewJWTService("secret-b", "meditrack", time.Hour)

	token, _, err := issuer.GenerateSessionToken(uuid.New(), "admin", "admin")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_Garbage(t *testing.T) {
	svc := NewJWTService("secret", "meditrack", time.Hour)
	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

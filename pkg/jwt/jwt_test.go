package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	s := NewService("secret", time.Hour)
	token, err := s.GenerateToken("user-1", "a@example.com")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "a@example.com", claims.Email)

	_, err = NewService("other", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	s := NewService("secret", -time.Minute)
	token, err := s.GenerateToken("user-1", "")
	require.NoError(t, err)

	_, err = s.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestExpiresAtUnverified(t *testing.T) {
	token, err := NewService("secret", 10*time.Minute).GenerateToken("user-1", "")
	require.NoError(t, err)

	exp, err := ExpiresAt(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), exp, 5*time.Second)

	_, err = ExpiresAt("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

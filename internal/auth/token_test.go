// ABOUTME: Tests for JWT verification and generation
// ABOUTME: Covers round trips, expiry, wrong secrets, and missing claims

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))

	token, err := v.Generate("user-1", time.Hour)
	require.NoError(t, err)

	subject, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestVerifier_ExpiredToken(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))

	token, err := v.Generate("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifier_WrongSecret(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))
	other := NewVerifier([]byte("other-secret"))

	token, err := other.Generate("user-1", time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifier_MissingSubject(t *testing.T) {
	secret := []byte("test-secret")
	v := NewVerifier(secret)

	claims := jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.ErrorIs(t, err, ErrMissingClaim)
}

func TestVerifier_GarbageToken(t *testing.T) {
	v := NewVerifier([]byte("test-secret"))

	_, err := v.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

// ABOUTME: Tests for JWT token issuing and verification

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate(42, time.Hour)
	require.NoError(t, err)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestVerify_ExpiredToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate(42, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := NewJWTVerifier([]byte("secret-a"))
	verifier := NewJWTVerifier([]byte("secret-b"))

	token, err := issuer.Generate(42, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	_, err := v.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MissingSubClaim(t *testing.T) {
	secret := []byte("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = NewJWTVerifier(secret).Verify(signed)
	assert.ErrorIs(t, err, ErrMissingClaim)
}

func TestVerify_NonNumericSub(t *testing.T) {
	secret := []byte("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = NewJWTVerifier(secret).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACRoundTrip(t *testing.T) {
	v := NewHMACVerifier("secret")
	token, err := v.Issue("u1", time.Hour)
	require.NoError(t, err)

	uid, err := v.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestRejectsExpiredAndForeignTokens(t *testing.T) {
	v := NewHMACVerifier("secret")

	expired, err := v.Issue("u1", -time.Minute)
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), expired)
	assert.Error(t, err)

	other, err := NewHMACVerifier("other").Issue("u1", time.Hour)
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), other)
	assert.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.VerifyToken(context.Background(), noSubject)
	assert.Error(t, err)

	_, err = v.VerifyToken(context.Background(), "garbage")
	assert.Error(t, err)
}

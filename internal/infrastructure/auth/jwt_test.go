package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewTokenVerifier("secret")

	token, err := v.Sign(Identity{UserID: 42, Nickname: "ana"}, time.Hour)
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	require.EqualValues(t, 42, id.UserID)
	require.Equal(t, "ana", id.Nickname)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenVerifier("secret-a").Sign(Identity{UserID: 1, Nickname: "ana"}, time.Hour)
	require.NoError(t, err)

	_, err = NewTokenVerifier("secret-b").Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := NewTokenVerifier("secret")
	token, err := v.Sign(Identity{UserID: 1, Nickname: "ana"}, -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v := NewTokenVerifier("secret")
	_, err := v.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordGate(t *testing.T) {
	gate := NewPasswordGate(bcrypt.MinCost)

	digest, err := gate.Hash("secret123")
	require.NoError(t, err)
	require.NotEqual(t, "secret123", digest)

	require.True(t, gate.Verify("secret123", digest))
	require.False(t, gate.Verify("wrong", digest))
	require.False(t, gate.Verify("secret123", ""))
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret")

	token, err := tokens.Issue("user-7", time.Hour)
	require.NoError(t, err)

	userID, err := tokens.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-7", userID)
}

func TestTokensRejectForeignAndExpired(t *testing.T) {
	tokens := NewTokens("test-secret")
	other := NewTokens("other-secret")

	foreign, err := other.Issue("user-7", time.Hour)
	require.NoError(t, err)
	_, err = tokens.Verify(foreign)
	require.ErrorIs(t, err, ErrInvalidToken)

	issuedAt := time.Now().Add(-2 * time.Hour)
	tokens.now = func() time.Time { return issuedAt }
	stale, err := tokens.Issue("user-7", time.Hour)
	require.NoError(t, err)
	tokens.now = time.Now
	_, err = tokens.Verify(stale)
	require.ErrorIs(t, err, ErrInvalidToken)
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	req := require.New(t)
	m := NewTokenManager([]byte("secret"), "media-vault", time.Hour)

	token, err := m.Generate("user-42")
	req.NoError(err)

	claims, err := m.Verify(token)
	req.NoError(err)
	req.Equal("user-42", claims.OwnerID)
	req.Equal("media-vault", claims.Issuer)
}

func TestTokenManager_RejectsForeignKey(t *testing.T) {
	req := require.New(t)
	signer := NewTokenManager([]byte("key-a"), "media-vault", time.Hour)
	verifier := NewTokenManager([]byte("key-b"), "media-vault", time.Hour)

	token, err := signer.Generate("user-42")
	req.NoError(err)

	_, err = verifier.Verify(token)
	req.Error(err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	req := require.New(t)
	m := NewTokenManager([]byte("secret"), "media-vault", -time.Minute)

	token, err := m.Generate("user-42")
	req.NoError(err)

	_, err = m.Verify(token)
	req.Error(err)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	m := NewTokenManager([]byte("secret"), "media-vault", time.Hour)
	_, err := m.Verify("definitely.not.ajwt")
	require.Error(t, err)
}

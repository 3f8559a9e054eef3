package security_test

import (
	"testing"

	"github.com/localstall/stallmarket-backend/pkg/config"
	"github.com/localstall/stallmarket-backend/pkg/security"
	"github.com/stretchr/testify/require"
)

var fastArgon = config.PasswordConfig{
	ArgonMemoryKB:    1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestHashAndVerifyToken(t *testing.T) {
	token, err := security.GenerateRefreshToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	hash, err := security.HashToken(token, fastArgon)
	require.NoError(t, err)
	require.NotContains(t, hash, token)

	ok, err := security.VerifyToken(token, hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = security.VerifyToken("bogus", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGenerateRefreshTokenIsUnique(t *testing.T) {
	a, err := security.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := security.GenerateRefreshToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHashTokenRejectsEmpty(t *testing.T) {
	_, err := security.HashToken("", fastArgon)
	require.Error(t, err)
}

func TestVerifyTokenBadHash(t *testing.T) {
	_, err := security.VerifyToken("irrelevant", "not-a-hash")
	require.ErrorIs(t, err, security.ErrInvalidHash)
}

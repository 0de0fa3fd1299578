package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	InitWithSecret("test-secret")

	token, err := CreateAccessToken(42)
	require.NoError(t, err)

	id, err := AuthenticateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	InitWithSecret("test-secret")

	_, err := AuthenticateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestAuthenticateRejectsWrongSecret(t *testing.T) {
	InitWithSecret("secret-a")
	token, err := CreateAccessToken(7)
	require.NoError(t, err)

	InitWithSecret("secret-b")
	_, err = AuthenticateToken(token)
	assert.Error(t, err)
}

func TestRefreshTokenCarriesJTI(t *testing.T) {
	InitWithSecret("test-secret")

	token, jti, err := CreateRefreshToken(9)
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	id, parsedJTI, err := AuthenticateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, jti, parsedJTI)
}

func TestAccessTokenIsNotARefreshToken(t *testing.T) {
	InitWithSecret("test-secret")

	token, err := CreateAccessToken(9)
	require.NoError(t, err)

	_, _, err = AuthenticateRefreshToken(token)
	assert.Error(t, err)
}

func TestRefreshTokenHashRoundTrip(t *testing.T) {
	hash, err := HashRefreshToken("some-jti")
	require.NoError(t, err)

	ok, err := CompareRefreshToken("some-jti", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CompareRefreshToken("other-jti", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	_, err := CompareRefreshToken("jti", "$argon2id$bogus")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

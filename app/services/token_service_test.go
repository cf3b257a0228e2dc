// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing
func createTestTokenService() (TokenService, error) {
	return NewTokenService(
		15*time.Minute,
		7*24*time.Hour,
		"test-issuer",
		"test-audience",
		"test-secret-key-for-jwt-signing-32-chars",
	)
}

func TestNewTokenService(t *testing.T) {
	t.Run("ValidConfiguration", func(t *testing.T) {
		service, err := createTestTokenService()
		assert.NoError(t, err)
		assert.NotNil(t, service)
	})

	t.Run("MissingSecretKey", func(t *testing.T) {
		service, err := NewTokenService(15*time.Minute, 7*24*time.Hour, "test-issuer", "test-audience", "")
		assert.Error(t, err)
		assert.Nil(t, service)
	})

	t.Run("EmptyIssuerAndAudience", func(t *testing.T) {
		service, err := NewTokenService(15*time.Minute, 7*24*time.Hour, "", "", "test-secret-key-for-jwt-signing-32-chars")
		assert.NoError(t, err)
		assert.NotNil(t, service)
	})
}

func TestGenerateAndValidateTokens(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	t.Run("RoundTrip", func(t *testing.T) {
		accessToken, refreshToken, err := service.GenerateTokens(42)
		require.NoError(t, err)
		assert.NotEmpty(t, accessToken)
		assert.NotEmpty(t, refreshToken)
		assert.NotEqual(t, accessToken, refreshToken)

		claims, err := service.ValidateToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.CustomerID)
		assert.Equal(t, "access", claims.TokenType)
		assert.NotEmpty(t, claims.TokenID)
		assert.True(t, claims.ExpiresAt.After(time.Now()))

		refreshClaims, err := service.ValidateToken(refreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh", refreshClaims.TokenType)
		assert.NotEqual(t, claims.TokenID, refreshClaims.TokenID)
	})

	t.Run("GarbageToken", func(t *testing.T) {
		_, err := service.ValidateToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("WrongSignature", func(t *testing.T) {
		other, err := NewTokenService(15*time.Minute, 7*24*time.Hour, "test-issuer", "test-audience", "a-completely-different-signing-key!!")
		require.NoError(t, err)

		accessToken, _, err := other.GenerateTokens(42)
		require.NoError(t, err)

		_, err = service.ValidateToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		shortLived, err := NewTokenService(-1*time.Minute, 7*24*time.Hour, "test-issuer", "test-audience", "test-secret-key-for-jwt-signing-32-chars")
		require.NoError(t, err)

		accessToken, _, err := shortLived.GenerateTokens(42)
		require.NoError(t, err)

		_, err = shortLived.ValidateToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})
}

func TestRefreshToken(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	t.Run("RefreshTokenRotates", func(t *testing.T) {
		_, refreshToken, err := service.GenerateTokens(7)
		require.NoError(t, err)

		newAccess, newRefresh, err := service.RefreshToken(refreshToken)
		require.NoError(t, err)
		assert.NotEmpty(t, newAccess)
		assert.NotEmpty(t, newRefresh)
		assert.NotEqual(t, refreshToken, newRefresh)

		claims, err := service.ValidateToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, uint(7), claims.CustomerID)
	})

	t.Run("AccessTokenRejectedForRefresh", func(t *testing.T) {
		accessToken, _, err := service.GenerateTokens(7)
		require.NoError(t, err)

		_, _, err = service.RefreshToken(accessToken)
		assert.Error(t, err)
	})
}

func TestAdminTokens(t *testing.T) {
	service, err := createTestTokenService()
	require.NoError(t, err)

	t.Run("AdminRoundTrip", func(t *testing.T) {
		accessToken, _, err := service.GenerateAdminTokens(3)
		require.NoError(t, err)

		claims, err := service.ValidateAdminToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, uint(3), claims.AdminID)
		assert.Equal(t, "access", claims.TokenType)
	})

	t.Run("CustomerTokenNotValidAsAdmin", func(t *testing.T) {
		accessToken, _, err := service.GenerateTokens(42)
		require.NoError(t, err)

		_, err = service.ValidateAdminToken(accessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

// Package businessflow_test contains integration tests for authentication workflows
package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/kajiya-works/kajiya/app/dto"
	"github.com/kajiya-works/kajiya/app/services"
	businessflow "github.com/kajiya-works/kajiya/business_flow"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/repository"
	testingutil "github.com/kajiya-works/kajiya/testing"
	"github.com/kajiya-works/kajiya/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		customerRepo := repository.NewCustomerRepository(testDB.DB)
		sessionRepo := repository.NewCustomerSessionRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)

		tokenService, err := services.NewTokenService(
			1*time.Hour,
			24*time.Hour,
			"test-issuer",
			"test-audience",
			"test-secret-key-for-jwt-signing-32-chars",
		)
		require.NoError(t, err)

		loginFlow := businessflow.NewLoginFlow(
			customerRepo,
			sessionRepo,
			auditRepo,
			tokenService,
			testDB.DB,
		)

		metadata := businessflow.NewClientMetadata("127.0.0.1", "Test User Agent")

		t.Run("SuccessfulLogin", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			result, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    customer.Email,
				Password: "TestPass123!",
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.True(t, result.Success)
			assert.NotEmpty(t, result.Data.AccessToken)
			assert.NotEmpty(t, result.Data.RefreshToken)
			assert.Equal(t, "Bearer", result.Data.TokenType)
			assert.True(t, result.Data.ExpiresAt.After(time.Now()))

			// Last login timestamp is stamped
			stored, err := customerRepo.ByID(context.Background(), customer.ID)
			require.NoError(t, err)
			require.NotNil(t, stored.LastLoginAt)

			// Access token carries the customer identity
			claims, err := tokenService.ValidateToken(result.Data.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, customer.ID, claims.CustomerID)
		})

		t.Run("UnknownEmail", func(t *testing.T) {
			_, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    "nobody@example.com",
				Password: "TestPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsCustomerNotFound(err))
		})

		t.Run("IncorrectPassword", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			_, err = loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    customer.Email,
				Password: "WrongPassword!",
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrIncorrectPassword)

			// Failed attempt is audited
			failures, err := auditRepo.ListByAction(context.Background(), models.AuditActionLoginFailed, 10, 0)
			require.NoError(t, err)
			assert.NotEmpty(t, failures)
		})

		t.Run("InactiveAccount", func(t *testing.T) {
			customer, err := fixtures.CreateInactiveCustomer()
			require.NoError(t, err)

			_, err = loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    customer.Email,
				Password: "TestPass123!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountInactive(err))
		})

		t.Run("RefreshTokenRotatesSession", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			loginResult, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    customer.Email,
				Password: "TestPass123!",
			}, metadata)
			require.NoError(t, err)

			refreshResult, err := loginFlow.RefreshToken(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: loginResult.Data.RefreshToken,
			}, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, refreshResult.Data.AccessToken)
			assert.NotEqual(t, loginResult.Data.RefreshToken, refreshResult.Data.RefreshToken)

			// The old refresh token cannot be replayed
			_, err = loginFlow.RefreshToken(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: loginResult.Data.RefreshToken,
			}, metadata)
			require.Error(t, err)
		})

		t.Run("RefreshWithUnknownToken", func(t *testing.T) {
			_, err := loginFlow.RefreshToken(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: "never-issued-token",
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrSessionNotFound)
		})

		t.Run("LogoutEndsAllSessions", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			loginResult, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    customer.Email,
				Password: "TestPass123!",
			}, metadata)
			require.NoError(t, err)

			logoutResult, err := loginFlow.Logout(context.Background(), &dto.LogoutRequest{
				CustomerID: customer.ID,
			}, metadata)
			require.NoError(t, err)
			assert.True(t, logoutResult.Success)

			// Session no longer usable for refresh
			_, err = loginFlow.RefreshToken(context.Background(), &dto.RefreshTokenRequest{
				RefreshToken: loginResult.Data.RefreshToken,
			}, metadata)
			require.Error(t, err)
		})

		t.Run("SessionPersistedWithClientMetadata", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			result, err := loginFlow.Login(context.Background(), &dto.LoginRequest{
				Email:    customer.Email,
				Password: "TestPass123!",
			}, metadata)
			require.NoError(t, err)

			session, err := sessionRepo.BySessionToken(context.Background(), result.Data.AccessToken)
			require.NoError(t, err)
			require.NotNil(t, session)
			assert.True(t, utils.IsTrue(session.IsActive))
			require.NotNil(t, session.IPAddress)
			assert.Equal(t, "127.0.0.1", *session.IPAddress)
		})

		return nil
	})
	require.NoError(t, err)
}

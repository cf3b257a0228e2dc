// Package repository_test contains integration tests for the quote data access layer
package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/repository"
	testingutil "github.com/kajiya-works/kajiya/testing"
	"github.com/kajiya-works/kajiya/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		quoteRepo := repository.NewQuoteRepository(testDB.DB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		t.Run("ByUUID", func(t *testing.T) {
			quote, err := fixtures.CreateTestQuote(customer.ID, models.QuoteStatusDraft)
			require.NoError(t, err)

			found, err := quoteRepo.ByUUID(ctx, quote.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, quote.ID, found.ID)
			assert.Equal(t, 1, found.Version)

			missing, err := quoteRepo.ByUUID(ctx, "00000000-0000-0000-0000-000000000000")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("UpdateWithVersionMatchBumps", func(t *testing.T) {
			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 10)
			require.NoError(t, err)

			updated, err := quoteRepo.UpdateWithVersion(ctx, quote.ID, 1, true, map[string]any{
				"subtotal": 120.0,
				"status":   models.QuoteStatusPriced,
			})
			require.NoError(t, err)
			require.NotNil(t, updated)
			assert.Equal(t, 2, updated.Version)
			assert.Equal(t, 120.0, updated.Subtotal)
			assert.Equal(t, models.QuoteStatusPriced, updated.Status)
		})

		t.Run("UpdateWithVersionMismatchConflicts", func(t *testing.T) {
			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 10)
			require.NoError(t, err)

			_, err = quoteRepo.UpdateWithVersion(ctx, quote.ID, 5, true, map[string]any{
				"subtotal": 999.0,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrVersionConflict)

			// The losing write leaves no trace
			stored, err := quoteRepo.ByID(ctx, quote.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, stored.Version)
			assert.Equal(t, 100.0, stored.Subtotal)
		})

		t.Run("UpdateWithVersionNoBump", func(t *testing.T) {
			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 10)
			require.NoError(t, err)

			newExpiry := utils.UTCNowAdd(20 * 24 * time.Hour)
			updated, err := quoteRepo.UpdateWithVersion(ctx, quote.ID, 1, false, map[string]any{
				"expires_at": newExpiry,
			})
			require.NoError(t, err)
			assert.Equal(t, 1, updated.Version)
			require.NotNil(t, updated.ExpiresAt)
			assert.WithinDuration(t, newExpiry, *updated.ExpiresAt, time.Second)
		})

		t.Run("LostUpdateRace", func(t *testing.T) {
			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 10)
			require.NoError(t, err)

			// First writer wins and bumps the version
			_, err = quoteRepo.UpdateWithVersion(ctx, quote.ID, 1, true, map[string]any{
				"subtotal": 110.0,
			})
			require.NoError(t, err)

			// Second writer still holds the stale version
			_, err = quoteRepo.UpdateWithVersion(ctx, quote.ID, 1, true, map[string]any{
				"subtotal": 90.0,
			})
			assert.ErrorIs(t, err, repository.ErrVersionConflict)
		})

		t.Run("ListExpiring", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			customer, err = fixtures.CreateTestCustomer()
			require.NoError(t, err)

			pastDue, err := fixtures.CreateSentQuote(customer.ID, 100, -1)
			require.NoError(t, err)
			_, err = fixtures.CreateSentQuote(customer.ID, 100, 30)
			require.NoError(t, err)

			// Accepted quotes never expire out from under the customer
			accepted, err := fixtures.CreateSentQuote(customer.ID, 100, -1)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(accepted).Update("status", models.QuoteStatusAccepted).Error)

			expiring, err := quoteRepo.ListExpiring(ctx, utils.UTCNow(), 100)
			require.NoError(t, err)
			require.Len(t, expiring, 1)
			assert.Equal(t, pastDue.ID, expiring[0].ID)
		})

		t.Run("ListStaleDrafts", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			customer, err = fixtures.CreateTestCustomer()
			require.NoError(t, err)

			backdated := map[string]any{
				"created_at": utils.UTCNowAdd(-20 * 24 * time.Hour),
				"updated_at": utils.UTCNowAdd(-20 * 24 * time.Hour),
			}

			stale, err := fixtures.CreateTestQuote(customer.ID, models.QuoteStatusDraft)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(stale).UpdateColumns(backdated).Error)

			_, err = fixtures.CreateTestQuote(customer.ID, models.QuoteStatusDraft)
			require.NoError(t, err)

			// Sent quotes are never abandoned by the sweep
			sentOld, err := fixtures.CreateSentQuote(customer.ID, 100, 10)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(sentOld).UpdateColumns(backdated).Error)

			drafts, err := quoteRepo.ListStaleDrafts(ctx, utils.UTCNowAdd(-14*24*time.Hour), 100)
			require.NoError(t, err)
			require.Len(t, drafts, 1)
			assert.Equal(t, stale.ID, drafts[0].ID)
		})

		return nil
	})
	require.NoError(t, err)
}

// Package businessflow_test contains integration tests for admin quote operations
package businessflow_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kajiya-works/kajiya/app/dto"
	businessflow "github.com/kajiya-works/kajiya/business_flow"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/repository"
	testingutil "github.com/kajiya-works/kajiya/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdminQuoteFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		quoteRepo := repository.NewQuoteRepository(testDB.DB)
		lineRepo := repository.NewQuoteLineRepository(testDB.DB)
		customerRepo := repository.NewCustomerRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)

		adminFlow := businessflow.NewAdminQuoteFlow(
			quoteRepo,
			lineRepo,
			customerRepo,
			auditRepo,
			testDB.DB,
		)

		metadata := businessflow.NewClientMetadata("10.0.0.1", "Admin Console")
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		t.Run("ListQuotesAcrossCustomers", func(t *testing.T) {
			other, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			_, err = fixtures.CreateTestQuote(customer.ID, models.QuoteStatusDraft)
			require.NoError(t, err)
			_, err = fixtures.CreateSentQuote(other.ID, 250, 10)
			require.NoError(t, err)

			listed, err := adminFlow.ListQuotes(ctx, &dto.AdminListQuotesRequest{Page: 1, PageSize: 50})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, listed.Total, int64(2))

			sent := "sent"
			filtered, err := adminFlow.ListQuotes(ctx, &dto.AdminListQuotesRequest{Status: &sent, Page: 1, PageSize: 50})
			require.NoError(t, err)
			for _, item := range filtered.Items {
				assert.Equal(t, "sent", item.Status)
			}

			unknown := "half-sent"
			_, err = adminFlow.ListQuotes(ctx, &dto.AdminListQuotesRequest{Status: &unknown})
			require.Error(t, err)
		})

		t.Run("ForceExpire", func(t *testing.T) {
			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 10)
			require.NoError(t, err)

			result, err := adminFlow.ForceExpire(ctx, &dto.AdminForceExpireRequest{UUID: quote.UUID.String()}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "expired", result.Status)

			stored, err := quoteRepo.ByID(ctx, quote.ID)
			require.NoError(t, err)
			assert.Equal(t, models.QuoteStatusExpired, stored.Status)

			// Already expired quotes cannot be expired again
			_, err = adminFlow.ForceExpire(ctx, &dto.AdminForceExpireRequest{UUID: quote.UUID.String()}, metadata)
			require.Error(t, err)
		})

		t.Run("ForceExpireUnknownQuote", func(t *testing.T) {
			_, err := adminFlow.ForceExpire(ctx, &dto.AdminForceExpireRequest{
				UUID: "00000000-0000-0000-0000-000000000000",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsQuoteNotFound(err))
		})

		t.Run("MarkReviewed", func(t *testing.T) {
			quote, err := fixtures.CreateTestQuote(customer.ID, models.QuoteStatusNeedsReview)
			require.NoError(t, err)

			result, err := adminFlow.MarkReviewed(ctx, &dto.AdminMarkReviewedRequest{UUID: quote.UUID.String()}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "reviewed", result.Status)

			stored, err := quoteRepo.ByID(ctx, quote.ID)
			require.NoError(t, err)
			assert.Equal(t, models.QuoteStatusReviewed, stored.Status)

			approvals, err := auditRepo.ListByAction(ctx, models.AuditActionQuoteReviewed, 10, 0)
			require.NoError(t, err)
			assert.NotEmpty(t, approvals)
		})

		t.Run("MarkReviewedRejectedOutsideReview", func(t *testing.T) {
			quote, err := fixtures.CreateTestQuote(customer.ID, models.QuoteStatusDraft)
			require.NoError(t, err)

			_, err = adminFlow.MarkReviewed(ctx, &dto.AdminMarkReviewedRequest{UUID: quote.UUID.String()}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrQuoteNotReviewable)
		})

		t.Run("ExportQuotes", func(t *testing.T) {
			_, err := fixtures.CreateSentQuote(customer.ID, 321.5, 10)
			require.NoError(t, err)

			filename, payload, err := adminFlow.ExportQuotes(ctx, &dto.AdminExportQuotesRequest{})
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(filename, ".xlsx"))
			require.NotEmpty(t, payload)

			// The workbook groups quotes by status, one sheet per status
			workbook, err := excelize.OpenReader(bytes.NewReader(payload))
			require.NoError(t, err)
			defer workbook.Close()
			assert.Contains(t, workbook.GetSheetList(), "sent")

			rows, err := workbook.GetRows("sent")
			require.NoError(t, err)
			require.Greater(t, len(rows), 1)
			assert.Equal(t, "uuid", rows[0][0])
		})

		return nil
	})
	require.NoError(t, err)
}

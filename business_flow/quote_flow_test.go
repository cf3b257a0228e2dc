// Package businessflow_test contains integration tests for quote workflows
package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/kajiya-works/kajiya/app/dto"
	"github.com/kajiya-works/kajiya/app/services"
	businessflow "github.com/kajiya-works/kajiya/business_flow"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/pricing"
	"github.com/kajiya-works/kajiya/repository"
	testingutil "github.com/kajiya-works/kajiya/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func machinableGeometry() dto.GeometryDTO {
	return dto.GeometryDTO{
		VolumeMm3:            42000,
		SurfaceAreaMm2:       18500,
		BBoxXMm:              120,
		BBoxYMm:              60,
		BBoxZMm:              25,
		MachiningTimeMinutes: 35,
		Complexity:           "moderate",
	}
}

func addLineRequest(quoteUUID string, customerID uint) *dto.AddQuoteLineRequest {
	return &dto.AddQuoteLineRequest{
		QuoteUUID:  quoteUUID,
		CustomerID: customerID,
		PartName:   "mounting-bracket",
		Process:    "cnc-milling",
		Material:   "aluminum-6061",
		Quantity:   10,
		Geometry:   machinableGeometry(),
	}
}

// staticMaterialFeed serves fixed per-kg rates in place of the live feed
type staticMaterialFeed struct {
	prices map[string]float64
}

func (f *staticMaterialFeed) PricePerKg(ctx context.Context, materialKey string) (float64, error) {
	if price, ok := f.prices[materialKey]; ok {
		return price, nil
	}
	return 0, services.ErrMaterialUnknown
}

func (f *staticMaterialFeed) Refresh(ctx context.Context) error { return nil }

func TestQuoteFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		quoteRepo := repository.NewQuoteRepository(testDB.DB)
		lineRepo := repository.NewQuoteLineRepository(testDB.DB)
		customerRepo := repository.NewCustomerRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)

		calculator, err := pricing.NewCalculator(nil, nil)
		require.NoError(t, err)

		quoteFlow := businessflow.NewQuoteFlow(
			quoteRepo,
			lineRepo,
			customerRepo,
			auditRepo,
			calculator,
			nil,
			testPricingConfig(),
			testDB.DB,
		)

		metadata := businessflow.NewClientMetadata("127.0.0.1", "Test User Agent")
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		t.Run("CreateQuoteStartsAsDraft", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{
				CustomerID: customer.ID,
				Tags:       []string{"aerospace"},
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "draft", created.Status)
			assert.NotEmpty(t, created.UUID)

			fetched, err := quoteFlow.GetQuote(ctx, &dto.GetQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "draft", fetched.Status)
			assert.Zero(t, fetched.Subtotal)
			require.NotNil(t, fetched.Banner)
			assert.Equal(t, "none", fetched.Banner.State)
		})

		t.Run("AddLinePricesImmediately", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			added, err := quoteFlow.AddQuoteLine(ctx, addLineRequest(created.UUID, customer.ID), metadata)
			require.NoError(t, err)

			require.NotNil(t, added.Line.Pricing)
			assert.False(t, added.Line.Pricing.RequiresManualQuote)
			assert.Greater(t, added.Line.Pricing.UnitPrice, 0.0)
			assert.Len(t, added.Options, 3)

			// Subtotal tracks the sum of selected-tier line totals
			assert.InDelta(t, added.Line.Pricing.TotalPrice, added.Subtotal, 0.01)

			fetched, err := quoteFlow.GetQuote(ctx, &dto.GetQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "priced", fetched.Status)
			require.Len(t, fetched.Lines, 1)
		})

		t.Run("UpdateLineRecomputesSubtotal", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			added, err := quoteFlow.AddQuoteLine(ctx, addLineRequest(created.UUID, customer.ID), metadata)
			require.NoError(t, err)

			newQuantity := 100
			updated, err := quoteFlow.UpdateQuoteLine(ctx, &dto.UpdateQuoteLineRequest{
				QuoteUUID:  created.UUID,
				LineUUID:   added.Line.UUID,
				CustomerID: customer.ID,
				Quantity:   &newQuantity,
			}, metadata)
			require.NoError(t, err)

			assert.Equal(t, 100, updated.Line.Quantity)
			assert.Greater(t, updated.Subtotal, added.Subtotal)
			assert.InDelta(t, updated.Line.Pricing.TotalPrice, updated.Subtotal, 0.01)

			// Higher volume amortizes setup, so the unit price drops
			assert.Less(t, updated.Line.Pricing.UnitPrice, added.Line.Pricing.UnitPrice)
		})

		t.Run("RemoveOnlyLineReturnsToDraft", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			added, err := quoteFlow.AddQuoteLine(ctx, addLineRequest(created.UUID, customer.ID), metadata)
			require.NoError(t, err)

			removed, err := quoteFlow.RemoveQuoteLine(ctx, &dto.RemoveQuoteLineRequest{
				QuoteUUID:  created.UUID,
				LineUUID:   added.Line.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Zero(t, removed.Subtotal)

			fetched, err := quoteFlow.GetQuote(ctx, &dto.GetQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "draft", fetched.Status)
		})

		t.Run("SelectLeadOptionPinsTier", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			added, err := quoteFlow.AddQuoteLine(ctx, addLineRequest(created.UUID, customer.ID), metadata)
			require.NoError(t, err)
			assert.Equal(t, "standard", added.Line.SelectedTier)

			selected, err := quoteFlow.SelectLeadOption(ctx, &dto.SelectLeadOptionRequest{
				QuoteUUID:  created.UUID,
				LineUUID:   added.Line.UUID,
				CustomerID: customer.ID,
				Tier:       "expedited",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "expedited", selected.Line.SelectedTier)
			require.NotNil(t, selected.Line.Pricing)
			assert.InDelta(t, selected.Line.Pricing.TotalPrice, selected.Subtotal, 0.01)

			// Expedited production plus faster shipping shortens the promise
			assert.Less(t, selected.Line.Pricing.LeadTimeDays, added.Options[0].LeadTimeDays)

			_, err = quoteFlow.SelectLeadOption(ctx, &dto.SelectLeadOptionRequest{
				QuoteUUID:  created.UUID,
				LineUUID:   added.Line.UUID,
				CustomerID: customer.ID,
				Tier:       "overnight",
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrUnknownLeadTier)
		})

		t.Run("ManualQuotePartParksQuoteInReview", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			req := addLineRequest(created.UUID, customer.ID)
			req.Geometry.BBoxZMm = 0.2
			added, err := quoteFlow.AddQuoteLine(ctx, req, metadata)
			require.NoError(t, err)

			require.NotNil(t, added.Line.Pricing)
			assert.True(t, added.Line.Pricing.RequiresManualQuote)
			assert.Zero(t, added.Line.Pricing.UnitPrice)
			assert.Zero(t, added.Subtotal)

			fetched, err := quoteFlow.GetQuote(ctx, &dto.GetQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "needs_review", fetched.Status)

			// A manual-review part blocks sending
			_, err = quoteFlow.SendQuote(ctx, &dto.SendQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrQuoteNotSendable)
		})

		t.Run("SendStartsExpirationClock", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			_, err = quoteFlow.AddQuoteLine(ctx, addLineRequest(created.UUID, customer.ID), metadata)
			require.NoError(t, err)

			sent, err := quoteFlow.SendQuote(ctx, &dto.SendQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "sent", sent.Status)
			require.NotNil(t, sent.ExpiresAt)
			assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), *sent.ExpiresAt, time.Minute)

			// Sent quotes are read-only for line edits
			_, err = quoteFlow.AddQuoteLine(ctx, addLineRequest(created.UUID, customer.ID), metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrQuoteNotEditable)
		})

		t.Run("SendRejectedForEmptyDraft", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			_, err = quoteFlow.SendQuote(ctx, &dto.SendQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrQuoteNotSendable)
		})

		t.Run("AcceptSentQuote", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)
			_, err = quoteFlow.AddQuoteLine(ctx, addLineRequest(created.UUID, customer.ID), metadata)
			require.NoError(t, err)
			_, err = quoteFlow.SendQuote(ctx, &dto.SendQuoteRequest{UUID: created.UUID, CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			accepted, err := quoteFlow.AcceptQuote(ctx, &dto.AcceptQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "accepted", accepted.Status)

			// Accepted is terminal
			_, err = quoteFlow.AcceptQuote(ctx, &dto.AcceptQuoteRequest{
				UUID:       created.UUID,
				CustomerID: customer.ID,
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrQuoteNotAcceptable)
		})

		t.Run("AcceptRejectedPastExpiry", func(t *testing.T) {
			quote, err := fixtures.CreateSentQuote(customer.ID, 100, -1)
			require.NoError(t, err)

			_, err = quoteFlow.AcceptQuote(ctx, &dto.AcceptQuoteRequest{
				UUID:       quote.UUID.String(),
				CustomerID: customer.ID,
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrQuoteExpiredReadOnly)
		})

		t.Run("QuotesHiddenFromOtherCustomers", func(t *testing.T) {
			created, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)

			stranger, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			_, err = quoteFlow.GetQuote(ctx, &dto.GetQuoteRequest{
				UUID:       created.UUID,
				CustomerID: stranger.ID,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsQuoteNotFound(err))
		})

		t.Run("ListQuotesPagedNewestFirst", func(t *testing.T) {
			owner, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				_, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: owner.ID}, metadata)
				require.NoError(t, err)
			}
			_, err = fixtures.CreateTestQuote(owner.ID, models.QuoteStatusAccepted)
			require.NoError(t, err)

			listed, err := quoteFlow.ListQuotes(ctx, &dto.ListQuotesRequest{
				CustomerID: owner.ID,
				Page:       1,
				PageSize:   2,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, int64(4), listed.Total)
			assert.Len(t, listed.Items, 2)

			draft := "draft"
			drafts, err := quoteFlow.ListQuotes(ctx, &dto.ListQuotesRequest{
				CustomerID: owner.ID,
				Status:     &draft,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, int64(3), drafts.Total)
		})

		t.Run("LiveMaterialPriceFlowsIntoLinePricing", func(t *testing.T) {
			// Same part priced with the feed at 10x the catalog aluminum rate
			feed := &staticMaterialFeed{prices: map[string]float64{"aluminum-6061": 85}}
			liveFlow := businessflow.NewQuoteFlow(
				quoteRepo,
				lineRepo,
				customerRepo,
				auditRepo,
				calculator,
				feed,
				testPricingConfig(),
				testDB.DB,
			)

			catalogQuote, err := quoteFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)
			catalogLine, err := quoteFlow.AddQuoteLine(ctx, addLineRequest(catalogQuote.UUID, customer.ID), metadata)
			require.NoError(t, err)
			require.NotNil(t, catalogLine.Line.Pricing)

			liveQuote, err := liveFlow.CreateQuote(ctx, &dto.CreateQuoteRequest{CustomerID: customer.ID}, metadata)
			require.NoError(t, err)
			liveLine, err := liveFlow.AddQuoteLine(ctx, addLineRequest(liveQuote.UUID, customer.ID), metadata)
			require.NoError(t, err)
			require.NotNil(t, liveLine.Line.Pricing)

			assert.Greater(t, liveLine.Line.Pricing.MaterialCost, catalogLine.Line.Pricing.MaterialCost)
			assert.Greater(t, liveLine.Line.Pricing.UnitPrice, catalogLine.Line.Pricing.UnitPrice)
		})

		return nil
	})
	require.NoError(t, err)
}

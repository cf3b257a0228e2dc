// Package businessflow_test contains integration tests for revision workflows
package businessflow_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kajiya-works/kajiya/app/dto"
	businessflow "github.com/kajiya-works/kajiya/business_flow"
	"github.com/kajiya-works/kajiya/config"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/repository"
	testingutil "github.com/kajiya-works/kajiya/testing"
	"github.com/kajiya-works/kajiya/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rc := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := rc.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	return rc
}

func testPricingConfig() config.PricingConfig {
	return config.PricingConfig{
		EconomyMarkup:      0.20,
		StandardMarkup:     0.25,
		ExpeditedMarkup:    0.30,
		DefaultExpiryDays:  30,
		MaxExtensionDays:   90,
		ReviewThresholdPct: 1000, // effectively disabled unless a test overrides it
		RepriceLockTTL:     utils.RepriceLockTTL,
	}
}

func TestRevisionFlow(t *testing.T) {
	rc := testRedisClient(t)
	defer rc.Close()

	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		quoteRepo := repository.NewQuoteRepository(testDB.DB)
		lineRepo := repository.NewQuoteLineRepository(testDB.DB)
		revisionRepo := repository.NewQuoteRevisionRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)

		cacheConfig := &config.CacheConfig{
			Enabled:     true,
			Provider:    "redis",
			RedisPrefix: fmt.Sprintf("kajiya-test-%d:", time.Now().UnixNano()),
		}

		revisionFlow := businessflow.NewRevisionFlow(
			quoteRepo,
			lineRepo,
			revisionRepo,
			auditRepo,
			nil,
			testPricingConfig(),
			cacheConfig,
			rc,
			testDB.DB,
		)

		metadata := businessflow.NewClientMetadata("127.0.0.1", "Test User Agent")

		t.Run("RepriceBumpsVersionAndRestartsExpiry", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 250, 5)
			require.NoError(t, err)

			line, err := fixtures.CreateTestQuoteLine(quote.ID, 10)
			require.NoError(t, err)
			require.NoError(t, fixtures.PriceTestLine(line, 25))

			result, err := revisionFlow.RepriceQuote(context.Background(), &dto.RepriceQuoteRequest{
				UUID:            quote.UUID.String(),
				CustomerID:      customer.ID,
				ExpectedVersion: 1,
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, 2, result.Version)
			assert.Equal(t, models.QuoteStatusPriced.String(), result.Status)
			assert.False(t, result.NeedsReview)
			assert.Greater(t, result.Subtotal, 0.0)
			require.NotNil(t, result.ExpiresAt)
			assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), *result.ExpiresAt, time.Minute)
			require.NotNil(t, result.RepricedAt)

			// Revision row records the version transition
			revisions, err := revisionRepo.ListByQuote(context.Background(), quote.ID, 10, 0)
			require.NoError(t, err)
			require.Len(t, revisions, 1)
			assert.Equal(t, models.RevisionKindReprice, revisions[0].Kind)
			assert.Equal(t, 1, revisions[0].FromVersion)
			assert.Equal(t, 2, revisions[0].ToVersion)
			require.NotNil(t, revisions[0].OldSubtotal)
			assert.Equal(t, 250.0, *revisions[0].OldSubtotal)
		})

		t.Run("RepriceVersionConflict", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 5)
			require.NoError(t, err)

			_, err = revisionFlow.RepriceQuote(context.Background(), &dto.RepriceQuoteRequest{
				UUID:            quote.UUID.String(),
				CustomerID:      customer.ID,
				ExpectedVersion: 7,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsQuoteVersionConflict(err))

			// The losing attempt is recorded for forensics
			conflicts, err := auditRepo.ListByAction(context.Background(), models.AuditActionRepriceConflict, 10, 0)
			require.NoError(t, err)
			assert.NotEmpty(t, conflicts)

			// Stored quote is untouched
			stored, err := quoteRepo.ByID(context.Background(), quote.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, stored.Version)
			assert.Equal(t, models.QuoteStatusSent, stored.Status)
		})

		t.Run("RepriceRevivesExpiredQuote", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 100, -3)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(quote).Update("status", models.QuoteStatusExpired).Error)

			line, err := fixtures.CreateTestQuoteLine(quote.ID, 5)
			require.NoError(t, err)
			require.NoError(t, fixtures.PriceTestLine(line, 20))

			result, err := revisionFlow.RepriceQuote(context.Background(), &dto.RepriceQuoteRequest{
				UUID:            quote.UUID.String(),
				CustomerID:      customer.ID,
				ExpectedVersion: 1,
			}, metadata)
			require.NoError(t, err)

			assert.Equal(t, models.QuoteStatusPriced.String(), result.Status)
			require.NotNil(t, result.ExpiresAt)
			assert.True(t, result.ExpiresAt.After(time.Now().UTC()))
		})

		t.Run("ConcurrentRepricesSingleWinner", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 250, 5)
			require.NoError(t, err)

			line, err := fixtures.CreateTestQuoteLine(quote.ID, 10)
			require.NoError(t, err)
			require.NoError(t, fixtures.PriceTestLine(line, 25))

			// Both requests race from the same starting version; the lock and
			// the version check together must let exactly one through
			results := make(chan error, 2)
			var wg sync.WaitGroup
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := revisionFlow.RepriceQuote(context.Background(), &dto.RepriceQuoteRequest{
						UUID:            quote.UUID.String(),
						CustomerID:      customer.ID,
						ExpectedVersion: 1,
					}, metadata)
					results <- err
				}()
			}
			wg.Wait()
			close(results)

			successes := 0
			rejections := 0
			for err := range results {
				if err == nil {
					successes++
					continue
				}
				if businessflow.IsQuoteVersionConflict(err) || businessflow.IsRepriceInProgress(err) {
					rejections++
				}
			}
			assert.Equal(t, 1, successes)
			assert.Equal(t, 1, rejections)

			// The quote advanced exactly one version and exactly one revision
			// row exists
			stored, err := quoteRepo.ByID(context.Background(), quote.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, stored.Version)

			revisions, err := revisionRepo.ListByQuote(context.Background(), quote.ID, 10, 0)
			require.NoError(t, err)
			assert.Len(t, revisions, 1)
		})

		t.Run("RepriceLockBackendDownIsTransient", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 5)
			require.NoError(t, err)

			// Nothing listens on port 1, so the lock acquisition fails with a
			// connection error rather than lock contention
			deadRC := redis.NewClient(&redis.Options{
				Addr:        "127.0.0.1:1",
				DialTimeout: 100 * time.Millisecond,
				MaxRetries:  -1,
			})
			defer deadRC.Close()

			downFlow := businessflow.NewRevisionFlow(
				quoteRepo,
				lineRepo,
				revisionRepo,
				auditRepo,
				nil,
				testPricingConfig(),
				cacheConfig,
				deadRC,
				testDB.DB,
			)

			_, err = downFlow.RepriceQuote(context.Background(), &dto.RepriceQuoteRequest{
				UUID:            quote.UUID.String(),
				CustomerID:      customer.ID,
				ExpectedVersion: 1,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsStoreUnavailable(err))
			assert.False(t, businessflow.IsRepriceInProgress(err))
		})

		t.Run("RepriceRejectedWhileLockHeld", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 5)
			require.NoError(t, err)

			lockKey := fmt.Sprintf("%squote:reprice-lock:%s", cacheConfig.RedisPrefix, quote.UUID.String())
			require.NoError(t, rc.SetNX(context.Background(), lockKey, "1", time.Minute).Err())
			defer rc.Del(context.Background(), lockKey)

			_, err = revisionFlow.RepriceQuote(context.Background(), &dto.RepriceQuoteRequest{
				UUID:            quote.UUID.String(),
				CustomerID:      customer.ID,
				ExpectedVersion: 1,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsRepriceInProgress(err))
		})

		t.Run("RepriceRejectedForDraft", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateTestQuote(customer.ID, models.QuoteStatusDraft)
			require.NoError(t, err)

			_, err = revisionFlow.RepriceQuote(context.Background(), &dto.RepriceQuoteRequest{
				UUID:            quote.UUID.String(),
				CustomerID:      customer.ID,
				ExpectedVersion: 1,
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrQuoteNotRepriceable)
		})

		t.Run("RepriceHiddenFromOtherCustomers", func(t *testing.T) {
			owner, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)
			stranger, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(owner.ID, 100, 5)
			require.NoError(t, err)

			_, err = revisionFlow.RepriceQuote(context.Background(), &dto.RepriceQuoteRequest{
				UUID:            quote.UUID.String(),
				CustomerID:      stranger.ID,
				ExpectedVersion: 1,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsQuoteNotFound(err))
		})

		t.Run("ExtendFromCurrentExpiry", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 10)
			require.NoError(t, err)
			oldExpiry := *quote.ExpiresAt

			result, err := revisionFlow.ExtendExpiration(context.Background(), &dto.ExtendExpirationRequest{
				UUID:       quote.UUID.String(),
				CustomerID: customer.ID,
				Days:       5,
			}, metadata)
			require.NoError(t, err)

			assert.Equal(t, models.QuoteStatusSent.String(), result.Status)
			require.NotNil(t, result.NewExpiresAt)
			assert.WithinDuration(t, oldExpiry.Add(5*24*time.Hour), *result.NewExpiresAt, time.Second)

			// Extension never bumps the version
			stored, err := quoteRepo.ByID(context.Background(), quote.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, stored.Version)

			revisions, err := revisionRepo.ListByQuote(context.Background(), quote.ID, 10, 0)
			require.NoError(t, err)
			require.Len(t, revisions, 1)
			assert.Equal(t, models.RevisionKindExtend, revisions[0].Kind)
			assert.Equal(t, revisions[0].FromVersion, revisions[0].ToVersion)
		})

		t.Run("ExtendRevivesExpiredQuote", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 100, -2)
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Model(quote).Update("status", models.QuoteStatusExpired).Error)

			result, err := revisionFlow.ExtendExpiration(context.Background(), &dto.ExtendExpirationRequest{
				UUID:       quote.UUID.String(),
				CustomerID: customer.ID,
				Days:       10,
			}, metadata)
			require.NoError(t, err)

			assert.Equal(t, models.QuoteStatusSent.String(), result.Status)
			require.NotNil(t, result.NewExpiresAt)
			assert.WithinDuration(t, time.Now().UTC().Add(10*24*time.Hour), *result.NewExpiresAt, time.Minute)
		})

		t.Run("ExtendBeyondMaximumWindow", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 80)
			require.NoError(t, err)

			_, err = revisionFlow.ExtendExpiration(context.Background(), &dto.ExtendExpirationRequest{
				UUID:       quote.UUID.String(),
				CustomerID: customer.ID,
				Days:       30,
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrExtensionLimitReached)
		})

		t.Run("ExtendInvalidDays", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateSentQuote(customer.ID, 100, 10)
			require.NoError(t, err)

			_, err = revisionFlow.ExtendExpiration(context.Background(), &dto.ExtendExpirationRequest{
				UUID:       quote.UUID.String(),
				CustomerID: customer.ID,
				Days:       0,
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrInvalidExtensionDays)
		})

		t.Run("ExtendRejectedForDraft", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateTestQuote(customer.ID, models.QuoteStatusDraft)
			require.NoError(t, err)

			_, err = revisionFlow.ExtendExpiration(context.Background(), &dto.ExtendExpirationRequest{
				UUID:       quote.UUID.String(),
				CustomerID: customer.ID,
				Days:       5,
			}, metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrQuoteNotExtendable)
		})

		t.Run("ListRevisionsTimeline", func(t *testing.T) {
			customer, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			quote, err := fixtures.CreateTestQuote(customer.ID, models.QuoteStatusSent)
			require.NoError(t, err)

			_, err = fixtures.CreateTestRevision(quote.ID, 1, 2)
			require.NoError(t, err)
			_, err = fixtures.CreateTestRevision(quote.ID, 2, 3)
			require.NoError(t, err)

			result, err := revisionFlow.ListRevisions(context.Background(), &dto.ListRevisionsRequest{
				UUID:       quote.UUID.String(),
				CustomerID: customer.ID,
				Page:       1,
				PageSize:   10,
			}, metadata)
			require.NoError(t, err)

			assert.Equal(t, int64(2), result.Total)
			require.Len(t, result.Items, 2)
		})

		return nil
	})
	require.NoError(t, err)
}

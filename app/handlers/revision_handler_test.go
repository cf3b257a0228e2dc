// Package handlers_test contains HTTP-level tests for the revision endpoints
package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/kajiya-works/kajiya/app/dto"
	"github.com/kajiya-works/kajiya/app/handlers"
	businessflow "github.com/kajiya-works/kajiya/business_flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRevisionFlow returns canned results so handler mapping can be tested
// without a database
type stubRevisionFlow struct {
	repriceErr error
	extendErr  error
}

func (s *stubRevisionFlow) RepriceQuote(ctx context.Context, req *dto.RepriceQuoteRequest, metadata *businessflow.ClientMetadata) (*dto.RepriceQuoteResponse, error) {
	if s.repriceErr != nil {
		return nil, s.repriceErr
	}
	return &dto.RepriceQuoteResponse{
		Message: "Quote repriced",
		Status:  "priced",
		Version: req.ExpectedVersion + 1,
	}, nil
}

func (s *stubRevisionFlow) ExtendExpiration(ctx context.Context, req *dto.ExtendExpirationRequest, metadata *businessflow.ClientMetadata) (*dto.ExtendExpirationResponse, error) {
	if s.extendErr != nil {
		return nil, s.extendErr
	}
	return &dto.ExtendExpirationResponse{
		Message: "Quote expiration extended",
		Status:  "sent",
	}, nil
}

func (s *stubRevisionFlow) ListRevisions(ctx context.Context, req *dto.ListRevisionsRequest, metadata *businessflow.ClientMetadata) (*dto.ListRevisionsResponse, error) {
	return &dto.ListRevisionsResponse{Message: "Revisions retrieved successfully"}, nil
}

func newRevisionApp(flow businessflow.RevisionFlow) *fiber.App {
	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		c.Locals("customer_id", uint(1))
		return c.Next()
	})

	handler := handlers.NewRevisionHandler(flow)
	app.Post("/quotes/:uuid/reprice", handler.RepriceQuote)
	app.Post("/quotes/:uuid/extend", handler.ExtendExpiration)
	return app
}

func TestRepriceQuoteErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name: "StoreUnavailableAnswers503",
			err: businessflow.NewBusinessError("STORE_UNAVAILABLE", "Reprice lock backend unavailable",
				fmt.Errorf("%w: dial tcp 127.0.0.1:6379: connection refused", businessflow.ErrStoreUnavailable)),
			wantStatus: fiber.StatusServiceUnavailable,
			wantCode:   "STORE_UNAVAILABLE",
		},
		{
			name:       "VersionConflictAnswers409",
			err:        businessflow.NewBusinessError("QUOTE_VERSION_CONFLICT", "Quote was modified by another request", businessflow.ErrQuoteVersionConflict),
			wantStatus: fiber.StatusConflict,
			wantCode:   "QUOTE_VERSION_CONFLICT",
		},
		{
			name:       "RepriceInProgressAnswers409",
			err:        businessflow.NewBusinessError("REPRICE_IN_PROGRESS", "A reprice is already in progress for this quote", businessflow.ErrRepriceInProgress),
			wantStatus: fiber.StatusConflict,
			wantCode:   "REPRICE_IN_PROGRESS",
		},
		{
			name:       "MissingQuoteAnswers404",
			err:        businessflow.NewBusinessError("QUOTE_NOT_FOUND", "Quote not found", businessflow.ErrQuoteNotFound),
			wantStatus: fiber.StatusNotFound,
			wantCode:   "QUOTE_NOT_FOUND",
		},
		{
			name:       "UnclassifiedFailureAnswers500",
			err:        businessflow.NewBusinessError("REPRICE_FAILED", "Failed to reprice quote", errors.New("constraint violation")),
			wantStatus: fiber.StatusInternalServerError,
			wantCode:   "REPRICE_FAILED",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newRevisionApp(&stubRevisionFlow{repriceErr: tc.err})

			req := httptest.NewRequest(fiber.MethodPost,
				"/quotes/9a6e1a2e-2b5f-4a51-8cf0-1f6d54a3c001/reprice",
				strings.NewReader(`{"expected_version":1}`))
			req.Header.Set("Content-Type", "application/json")

			res, err := app.Test(req)
			require.NoError(t, err)
			defer res.Body.Close()

			assert.Equal(t, tc.wantStatus, res.StatusCode)
			body, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tc.wantCode)
		})
	}
}

func TestExtendExpirationStoreUnavailable(t *testing.T) {
	app := newRevisionApp(&stubRevisionFlow{
		extendErr: businessflow.NewBusinessError("EXTENSION_FAILED", "Failed to extend quote expiration",
			fmt.Errorf("%w: write tcp: broken pipe", businessflow.ErrStoreUnavailable)),
	})

	req := httptest.NewRequest(fiber.MethodPost,
		"/quotes/9a6e1a2e-2b5f-4a51-8cf0-1f6d54a3c001/extend",
		strings.NewReader(`{"days":5}`))
	req.Header.Set("Content-Type", "application/json")

	res, err := app.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, fiber.StatusServiceUnavailable, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "STORE_UNAVAILABLE")
}

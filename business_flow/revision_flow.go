// Package businessflow contains the core business logic and use cases for quote revision workflows
package businessflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kajiya-works/kajiya/app/dto"
	"github.com/kajiya-works/kajiya/app/services"
	"github.com/kajiya-works/kajiya/config"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/pricing"
	"github.com/kajiya-works/kajiya/repository"
	"github.com/kajiya-works/kajiya/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// RevisionFlow handles reprice and expiration-extension workflows
type RevisionFlow interface {
	RepriceQuote(ctx context.Context, req *dto.RepriceQuoteRequest, metadata *ClientMetadata) (*dto.RepriceQuoteResponse, error)
	ExtendExpiration(ctx context.Context, req *dto.ExtendExpirationRequest, metadata *ClientMetadata) (*dto.ExtendExpirationResponse, error)
	ListRevisions(ctx context.Context, req *dto.ListRevisionsRequest, metadata *ClientMetadata) (*dto.ListRevisionsResponse, error)
}

// RevisionFlowImpl implements the revision business flow
type RevisionFlowImpl struct {
	quoteRepo      repository.QuoteRepository
	lineRepo       repository.QuoteLineRepository
	revisionRepo   repository.QuoteRevisionRepository
	auditRepo      repository.AuditLogRepository
	materialPrices services.MaterialPriceService
	pricingConfig  config.PricingConfig
	cacheConfig    *config.CacheConfig
	rc             *redis.Client
	db             *gorm.DB
}

// NewRevisionFlow creates a new revision flow instance. materialPrices may be
// nil, in which case repricing uses catalog material rates.
func NewRevisionFlow(
	quoteRepo repository.QuoteRepository,
	lineRepo repository.QuoteLineRepository,
	revisionRepo repository.QuoteRevisionRepository,
	auditRepo repository.AuditLogRepository,
	materialPrices services.MaterialPriceService,
	pricingConfig config.PricingConfig,
	cacheConfig *config.CacheConfig,
	rc *redis.Client,
	db *gorm.DB,
) RevisionFlow {
	return &RevisionFlowImpl{
		quoteRepo:      quoteRepo,
		lineRepo:       lineRepo,
		revisionRepo:   revisionRepo,
		auditRepo:      auditRepo,
		materialPrices: materialPrices,
		pricingConfig:  pricingConfig,
		cacheConfig:    cacheConfig,
		rc:             rc,
		db:             db,
	}
}

// RepriceQuote reprices every line against the current cost model under a
// per-quote distributed lock, guarded by an optimistic version check. A
// successful reprice bumps the version, restarts the expiration clock, and
// revives expired quotes. A subtotal swing beyond the review threshold parks
// the quote in needs_review instead of priced.
func (s *RevisionFlowImpl) RepriceQuote(ctx context.Context, req *dto.RepriceQuoteRequest, metadata *ClientMetadata) (*dto.RepriceQuoteResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if !canRepriceQuote(quote.Status) {
		return nil, NewBusinessError("QUOTE_NOT_REPRICEABLE", "Quote cannot be repriced in current status", ErrQuoteNotRepriceable)
	}
	if quote.Version != req.ExpectedVersion {
		s.auditConflict(ctx, quote, req.ExpectedVersion, metadata)
		return nil, NewBusinessError("QUOTE_VERSION_CONFLICT", "Quote was modified by another request", ErrQuoteVersionConflict)
	}

	release, err := acquireRepriceLock(ctx, s.rc, *s.cacheConfig, quote.UUID.String(), s.pricingConfig.RepriceLockTTL)
	if err != nil {
		if errors.Is(err, ErrRepriceInProgress) {
			return nil, NewBusinessError("REPRICE_IN_PROGRESS", "A reprice is already in progress for this quote", err)
		}
		// Lock backend unreachable: transient, retryable by the caller
		return nil, NewBusinessError("STORE_UNAVAILABLE", "Reprice lock backend unavailable",
			fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	defer release()

	lines, err := s.lineRepo.ByQuoteID(ctx, quote.ID)
	if err != nil {
		return nil, NewBusinessError("REPRICE_FAILED", "Failed to load quote lines", wrapTransient(err))
	}

	oldSubtotal := quote.Subtotal
	now := utils.UTCNow()

	var newSubtotal float64
	needsReview := false
	snapshots := make(map[uint]*models.PricingSnapshot, len(lines))
	for _, line := range lines {
		part := pricing.Part{
			Process:           line.Process,
			Material:          line.Material,
			Finish:            line.Finish,
			Tolerance:         line.Tolerance,
			Quantity:          line.Quantity,
			Geometry:          line.Geometry,
			MaterialCostPerKg: liveMaterialCost(ctx, s.materialPrices, line.Material),
		}
		breakdown, err := pricing.ComputeBreakdown(part, line.SelectedTier)
		if err != nil {
			return nil, NewBusinessError("REPRICE_FAILED", "Failed to reprice quote line", err)
		}
		snapshot := breakdown.Snapshot(now)
		snapshots[line.ID] = snapshot
		if snapshot.RequiresManualQuote {
			needsReview = true
			continue
		}
		newSubtotal += snapshot.TotalPrice
	}
	newSubtotal = round2(newSubtotal)

	// A large swing means the old price no longer resembles reality; a human
	// reviews before the customer sees it.
	if oldSubtotal > 0 {
		swing := math.Abs(newSubtotal-oldSubtotal) / oldSubtotal
		if swing > s.pricingConfig.ReviewThresholdPct {
			needsReview = true
		}
	}

	newStatus := models.QuoteStatusPriced
	if needsReview {
		newStatus = models.QuoteStatusNeedsReview
	}

	expiresAt := now.Add(time.Duration(s.pricingConfig.DefaultExpiryDays) * 24 * time.Hour)
	newVersion := quote.Version + 1

	var updated *models.Quote
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		for lineID, snapshot := range snapshots {
			if err := s.lineRepo.UpdatePricing(txCtx, lineID, snapshot); err != nil {
				return err
			}
		}

		updated, err = s.quoteRepo.UpdateWithVersion(txCtx, quote.ID, req.ExpectedVersion, true, map[string]any{
			"status":      newStatus,
			"subtotal":    newSubtotal,
			"expires_at":  expiresAt,
			"repriced_at": now,
		})
		if err != nil {
			return err
		}

		revision := &models.QuoteRevision{
			QuoteID:       quote.ID,
			Kind:          models.RevisionKindReprice,
			FromVersion:   quote.Version,
			ToVersion:     newVersion,
			ChangedFields: []string{"subtotal", "expires_at", "repriced_at", "status"},
			OldSubtotal:   &oldSubtotal,
			NewSubtotal:   &newSubtotal,
			OldExpires:    quote.ExpiresAt,
			NewExpires:    &expiresAt,
			ActorType:     "customer",
			ActorID:       &req.CustomerID,
		}
		return s.revisionRepo.Save(txCtx, revision)
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			s.auditConflict(ctx, quote, req.ExpectedVersion, metadata)
			return nil, NewBusinessError("QUOTE_VERSION_CONFLICT", "Quote was modified by another request", ErrQuoteVersionConflict)
		}
		return nil, NewBusinessError("REPRICE_FAILED", "Failed to reprice quote", wrapTransient(err))
	}

	msg := fmt.Sprintf("Quote repriced: %s, v%d -> v%d, subtotal %.2f -> %.2f",
		quote.UUID.String(), quote.Version, updated.Version, oldSubtotal, newSubtotal)
	_ = s.createAuditLog(ctx, quote.CustomerID, models.AuditActionQuoteRepriced, msg, true, nil, metadata)

	return &dto.RepriceQuoteResponse{
		Message:     "Quote repriced",
		Status:      updated.Status.String(),
		Version:     updated.Version,
		Subtotal:    updated.Subtotal,
		RepricedAt:  updated.RepricedAt,
		ExpiresAt:   updated.ExpiresAt,
		NeedsReview: needsReview,
	}, nil
}

// ExtendExpiration pushes the expiry of a sent quote out by the requested
// number of days. An already expired quote extends from now and is revived to
// sent; an active one extends from its current expiry. The new expiry can
// never land more than MaxExtensionDays past now.
func (s *RevisionFlowImpl) ExtendExpiration(ctx context.Context, req *dto.ExtendExpirationRequest, metadata *ClientMetadata) (*dto.ExtendExpirationResponse, error) {
	if req.Days <= 0 {
		return nil, NewBusinessError("EXTENSION_INVALID", "Extension days must be positive", ErrInvalidExtensionDays)
	}

	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if !canExtendQuote(quote.Status) {
		return nil, NewBusinessError("QUOTE_NOT_EXTENDABLE", "Quote cannot be extended in current status", ErrQuoteNotExtendable)
	}
	if quote.ExpiresAt == nil {
		return nil, NewBusinessError("QUOTE_NOT_EXTENDABLE", "Quote has no expiry to extend", ErrQuoteNotExtendable)
	}

	now := utils.UTCNow()
	base := *quote.ExpiresAt
	newStatus := quote.Status
	if quote.Status == models.QuoteStatusExpired || base.Before(now) {
		base = now
		newStatus = models.QuoteStatusSent
	}

	newExpiresAt := base.Add(time.Duration(req.Days) * 24 * time.Hour)
	limit := now.Add(time.Duration(s.pricingConfig.MaxExtensionDays) * 24 * time.Hour)
	if newExpiresAt.After(limit) {
		return nil, NewBusinessError("EXTENSION_LIMIT", "Extension exceeds the maximum allowed window", ErrExtensionLimitReached)
	}

	oldExpiresAt := *quote.ExpiresAt
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		_, err := s.quoteRepo.UpdateWithVersion(txCtx, quote.ID, quote.Version, false, map[string]any{
			"status":     newStatus,
			"expires_at": newExpiresAt,
		})
		if err != nil {
			return err
		}

		revision := &models.QuoteRevision{
			QuoteID:       quote.ID,
			Kind:          models.RevisionKindExtend,
			FromVersion:   quote.Version,
			ToVersion:     quote.Version,
			ChangedFields: []string{"expires_at"},
			OldExpires:    &oldExpiresAt,
			NewExpires:    &newExpiresAt,
			ActorType:     "customer",
			ActorID:       &req.CustomerID,
		}
		return s.revisionRepo.Save(txCtx, revision)
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, NewBusinessError("QUOTE_VERSION_CONFLICT", "Quote was modified by another request", ErrQuoteVersionConflict)
		}
		return nil, NewBusinessError("EXTENSION_FAILED", "Failed to extend quote expiration", wrapTransient(err))
	}

	msg := fmt.Sprintf("Quote extended: %s, expires %s", quote.UUID.String(), newExpiresAt.Format(time.RFC3339))
	_ = s.createAuditLog(ctx, quote.CustomerID, models.AuditActionQuoteExtended, msg, true, nil, metadata)

	return &dto.ExtendExpirationResponse{
		Message:      "Quote expiration extended",
		Status:       newStatus.String(),
		NewExpiresAt: &newExpiresAt,
	}, nil
}

// ListRevisions returns the quote's revision timeline, newest first
func (s *RevisionFlowImpl) ListRevisions(ctx context.Context, req *dto.ListRevisionsRequest, metadata *ClientMetadata) (*dto.ListRevisionsResponse, error) {
	page, pageSize := normalizePagination(req.Page, req.PageSize)

	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	filter := models.QuoteRevisionFilter{QuoteID: &quote.ID}
	total, err := s.revisionRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("REVISION_LIST_FAILED", "Failed to count revisions", err)
	}

	revisions, err := s.revisionRepo.ListByQuote(ctx, quote.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("REVISION_LIST_FAILED", "Failed to list revisions", err)
	}

	items := make([]dto.RevisionDTO, 0, len(revisions))
	for _, revision := range revisions {
		items = append(items, ToRevisionDTO(*revision))
	}

	return &dto.ListRevisionsResponse{
		Message: "Revisions retrieved successfully",
		Items:   items,
		Total:   total,
	}, nil
}

// auditConflict records a losing optimistic update for forensics
func (s *RevisionFlowImpl) auditConflict(ctx context.Context, quote *models.Quote, expectedVersion int, metadata *ClientMetadata) {
	msg := fmt.Sprintf("Reprice conflict on quote %s: expected v%d, stored v%d",
		quote.UUID.String(), expectedVersion, quote.Version)
	_ = s.createAuditLog(ctx, quote.CustomerID, models.AuditActionRepriceConflict, msg, false, &msg, metadata)
}

// createAuditLog creates an audit log entry for the revision operation
func (s *RevisionFlowImpl) createAuditLog(ctx context.Context, customerID uint, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		CustomerID:   &customerID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errorMsg,
	}

	requestID := ctx.Value(utils.RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	if err := s.auditRepo.Save(ctx, audit); err != nil {
		return err
	}

	return nil
}

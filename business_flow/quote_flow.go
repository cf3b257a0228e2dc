// Package businessflow contains the core business logic and use cases for quote workflows
package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/kajiya-works/kajiya/app/dto"
	"github.com/kajiya-works/kajiya/app/services"
	"github.com/kajiya-works/kajiya/config"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/pricing"
	"github.com/kajiya-works/kajiya/repository"
	"github.com/kajiya-works/kajiya/utils"
	"gorm.io/gorm"
)

const maxLinesPerQuote = 50

// QuoteFlow handles the quote business logic
type QuoteFlow interface {
	CreateQuote(ctx context.Context, req *dto.CreateQuoteRequest, metadata *ClientMetadata) (*dto.CreateQuoteResponse, error)
	GetQuote(ctx context.Context, req *dto.GetQuoteRequest, metadata *ClientMetadata) (*dto.GetQuoteResponse, error)
	ListQuotes(ctx context.Context, req *dto.ListQuotesRequest, metadata *ClientMetadata) (*dto.ListQuotesResponse, error)
	AddQuoteLine(ctx context.Context, req *dto.AddQuoteLineRequest, metadata *ClientMetadata) (*dto.AddQuoteLineResponse, error)
	UpdateQuoteLine(ctx context.Context, req *dto.UpdateQuoteLineRequest, metadata *ClientMetadata) (*dto.UpdateQuoteLineResponse, error)
	RemoveQuoteLine(ctx context.Context, req *dto.RemoveQuoteLineRequest, metadata *ClientMetadata) (*dto.RemoveQuoteLineResponse, error)
	GetLeadOptions(ctx context.Context, req *dto.GetLeadOptionsRequest, metadata *ClientMetadata) (*dto.GetLeadOptionsResponse, error)
	SelectLeadOption(ctx context.Context, req *dto.SelectLeadOptionRequest, metadata *ClientMetadata) (*dto.SelectLeadOptionResponse, error)
	SendQuote(ctx context.Context, req *dto.SendQuoteRequest, metadata *ClientMetadata) (*dto.SendQuoteResponse, error)
	AcceptQuote(ctx context.Context, req *dto.AcceptQuoteRequest, metadata *ClientMetadata) (*dto.AcceptQuoteResponse, error)
}

// QuoteFlowImpl implements the quote business flow
type QuoteFlowImpl struct {
	quoteRepo      repository.QuoteRepository
	lineRepo       repository.QuoteLineRepository
	customerRepo   repository.CustomerRepository
	auditRepo      repository.AuditLogRepository
	calculator     *pricing.Calculator
	materialPrices services.MaterialPriceService
	pricingConfig  config.PricingConfig
	db             *gorm.DB
}

// NewQuoteFlow creates a new quote flow instance. materialPrices may be nil,
// in which case pricing uses catalog material rates.
func NewQuoteFlow(
	quoteRepo repository.QuoteRepository,
	lineRepo repository.QuoteLineRepository,
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditLogRepository,
	calculator *pricing.Calculator,
	materialPrices services.MaterialPriceService,
	pricingConfig config.PricingConfig,
	db *gorm.DB,
) QuoteFlow {
	return &QuoteFlowImpl{
		quoteRepo:      quoteRepo,
		lineRepo:       lineRepo,
		customerRepo:   customerRepo,
		auditRepo:      auditRepo,
		calculator:     calculator,
		materialPrices: materialPrices,
		pricingConfig:  pricingConfig,
		db:             db,
	}
}

// CreateQuote opens a new empty draft quote for the customer
func (s *QuoteFlowImpl) CreateQuote(ctx context.Context, req *dto.CreateQuoteRequest, metadata *ClientMetadata) (*dto.CreateQuoteResponse, error) {
	customer, err := s.getCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, NewBusinessError("CUSTOMER_LOOKUP_FAILED", "Failed to lookup customer", err)
	}

	quote := &models.Quote{
		CustomerID: customer.ID,
		Status:     models.QuoteStatusDraft,
		Currency:   utils.USDCurrency,
		Tags:       req.Tags,
	}

	if err := s.quoteRepo.Save(ctx, quote); err != nil {
		errMsg := fmt.Sprintf("Quote creation failed: %s", err.Error())
		_ = s.createAuditLog(ctx, customer, models.AuditActionQuoteCreated, errMsg, false, &errMsg, metadata)
		return nil, NewBusinessError("QUOTE_CREATION_FAILED", "Quote creation failed", err)
	}

	msg := fmt.Sprintf("Quote created: %s", quote.UUID.String())
	_ = s.createAuditLog(ctx, customer, models.AuditActionQuoteCreated, msg, true, nil, metadata)

	return &dto.CreateQuoteResponse{
		Message:   "Quote created successfully",
		ID:        quote.ID,
		UUID:      quote.UUID.String(),
		Status:    quote.Status.String(),
		CreatedAt: formatRFC3339(quote.CreatedAt),
	}, nil
}

// GetQuote returns a quote with its lines and the derived expiration banner
func (s *QuoteFlowImpl) GetQuote(ctx context.Context, req *dto.GetQuoteRequest, metadata *ClientMetadata) (*dto.GetQuoteResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	resp := ToQuoteDTO(*quote)

	now := utils.UTCNow()
	canExtend := canExtendQuote(quote.Status)
	canReprice := canRepriceQuote(quote.Status)
	banner := pricing.BannerFor(pricing.ProjectStatus(quote.Status), quote.ExpiresAt, now, canExtend, canReprice)
	resp.Banner = &dto.ExpirationBannerDTO{
		State:      string(banner.State),
		Message:    banner.Message,
		DaysLeft:   banner.DaysLeft,
		HoursLeft:  banner.HoursLeft,
		CanExtend:  banner.CanExtend,
		CanReprice: banner.CanReprice,
	}

	return &resp, nil
}

// ListQuotes returns the customer's quotes, newest first
func (s *QuoteFlowImpl) ListQuotes(ctx context.Context, req *dto.ListQuotesRequest, metadata *ClientMetadata) (*dto.ListQuotesResponse, error) {
	page, pageSize := normalizePagination(req.Page, req.PageSize)

	filter := models.QuoteFilter{CustomerID: &req.CustomerID}
	if req.Status != nil {
		status := models.QuoteStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessError("QUOTE_LIST_VALIDATION_FAILED", "Invalid status filter", nil)
		}
		filter.Status = &status
	}

	total, err := s.quoteRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LIST_FAILED", "Failed to count quotes", err)
	}

	quotes, err := s.quoteRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LIST_FAILED", "Failed to list quotes", err)
	}

	items := make([]dto.GetQuoteResponse, 0, len(quotes))
	for _, quote := range quotes {
		items = append(items, ToQuoteDTO(*quote))
	}

	return &dto.ListQuotesResponse{
		Message:  "Quotes retrieved successfully",
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// AddQuoteLine adds a configured part to the quote, prices it immediately, and
// recomputes the quote subtotal
func (s *QuoteFlowImpl) AddQuoteLine(ctx context.Context, req *dto.AddQuoteLineRequest, metadata *ClientMetadata) (*dto.AddQuoteLineResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.QuoteUUID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(quote.Status); err != nil {
		return nil, err
	}
	if len(quote.Lines) >= maxLinesPerQuote {
		return nil, NewBusinessError("QUOTE_LINE_LIMIT", "Quote line limit exceeded", ErrLineLimitExceeded)
	}

	finish := req.Finish
	if finish == "" {
		finish = pricing.FinishAsMachined
	}
	tolerance := req.Tolerance
	if tolerance == "" {
		tolerance = pricing.ToleranceStandard
	}

	line := &models.QuoteLine{
		QuoteID:      quote.ID,
		PartName:     req.PartName,
		FileKey:      req.FileKey,
		Process:      req.Process,
		Material:     req.Material,
		Finish:       finish,
		Tolerance:    tolerance,
		Quantity:     req.Quantity,
		SelectedTier: models.LeadTierStandard,
		Geometry:     req.Geometry.ToModel(),
	}

	snapshot, err := s.priceLine(ctx, line)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LINE_PRICING_FAILED", "Failed to price part", err)
	}
	line.Pricing = snapshot

	var updated *models.Quote
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.lineRepo.Save(txCtx, line); err != nil {
			return err
		}
		updated, err = s.recomputeQuote(txCtx, quote.ID)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("QUOTE_LINE_ADD_FAILED", "Failed to add quote line", err)
	}

	options, err := s.computeOptions(ctx, *line)
	if err != nil {
		return nil, NewBusinessError("LEAD_OPTIONS_FAILED", "Failed to compute lead options", err)
	}

	return &dto.AddQuoteLineResponse{
		Message:  "Part added to quote",
		Line:     ToQuoteLineDTO(*line),
		Options:  options,
		Subtotal: updated.Subtotal,
	}, nil
}

// UpdateQuoteLine applies a partial update to a line, reprices it, and
// recomputes the quote subtotal
func (s *QuoteFlowImpl) UpdateQuoteLine(ctx context.Context, req *dto.UpdateQuoteLineRequest, metadata *ClientMetadata) (*dto.UpdateQuoteLineResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.QuoteUUID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(quote.Status); err != nil {
		return nil, err
	}

	line, err := getOwnedLine(ctx, s.lineRepo, quote, req.LineUUID)
	if err != nil {
		return nil, err
	}

	if req.Material != nil {
		line.Material = *req.Material
	}
	if req.Finish != nil {
		line.Finish = *req.Finish
	}
	if req.Tolerance != nil {
		line.Tolerance = *req.Tolerance
	}
	if req.Quantity != nil {
		line.Quantity = *req.Quantity
	}
	if req.Geometry != nil {
		line.Geometry = req.Geometry.ToModel()
	}

	snapshot, err := s.priceLine(ctx, line)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LINE_PRICING_FAILED", "Failed to price part", err)
	}
	line.Pricing = snapshot

	var updated *models.Quote
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.lineRepo.Update(txCtx, *line); err != nil {
			return err
		}
		updated, err = s.recomputeQuote(txCtx, quote.ID)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("QUOTE_LINE_UPDATE_FAILED", "Failed to update quote line", err)
	}

	options, err := s.computeOptions(ctx, *line)
	if err != nil {
		return nil, NewBusinessError("LEAD_OPTIONS_FAILED", "Failed to compute lead options", err)
	}

	return &dto.UpdateQuoteLineResponse{
		Message:  "Quote line updated",
		Line:     ToQuoteLineDTO(*line),
		Options:  options,
		Subtotal: updated.Subtotal,
	}, nil
}

// RemoveQuoteLine removes a line and recomputes the quote subtotal
func (s *QuoteFlowImpl) RemoveQuoteLine(ctx context.Context, req *dto.RemoveQuoteLineRequest, metadata *ClientMetadata) (*dto.RemoveQuoteLineResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.QuoteUUID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(quote.Status); err != nil {
		return nil, err
	}

	line, err := getOwnedLine(ctx, s.lineRepo, quote, req.LineUUID)
	if err != nil {
		return nil, err
	}

	var updated *models.Quote
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.lineRepo.Delete(txCtx, line.ID); err != nil {
			return err
		}
		updated, err = s.recomputeQuote(txCtx, quote.ID)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("QUOTE_LINE_REMOVE_FAILED", "Failed to remove quote line", err)
	}

	return &dto.RemoveQuoteLineResponse{
		Message:  "Quote line removed",
		Subtotal: updated.Subtotal,
	}, nil
}

// GetLeadOptions prices all delivery tiers for one line
func (s *QuoteFlowImpl) GetLeadOptions(ctx context.Context, req *dto.GetLeadOptionsRequest, metadata *ClientMetadata) (*dto.GetLeadOptionsResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.QuoteUUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	line, err := getOwnedLine(ctx, s.lineRepo, quote, req.LineUUID)
	if err != nil {
		return nil, err
	}

	options, err := s.computeOptions(ctx, *line)
	if err != nil {
		return nil, NewBusinessError("LEAD_OPTIONS_FAILED", "Failed to compute lead options", err)
	}

	return &dto.GetLeadOptionsResponse{
		Message: "Lead options computed",
		Options: options,
	}, nil
}

// SelectLeadOption pins a line to a delivery tier and reprices it at that tier
func (s *QuoteFlowImpl) SelectLeadOption(ctx context.Context, req *dto.SelectLeadOptionRequest, metadata *ClientMetadata) (*dto.SelectLeadOptionResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.QuoteUUID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := ensureEditable(quote.Status); err != nil {
		return nil, err
	}

	tier := models.LeadTier(req.Tier)
	if !tier.Valid() {
		return nil, NewBusinessError("LEAD_TIER_INVALID", "Unknown lead tier", ErrUnknownLeadTier)
	}

	line, err := getOwnedLine(ctx, s.lineRepo, quote, req.LineUUID)
	if err != nil {
		return nil, err
	}

	line.SelectedTier = tier
	snapshot, err := s.priceLine(ctx, line)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LINE_PRICING_FAILED", "Failed to price part", err)
	}
	line.Pricing = snapshot

	var updated *models.Quote
	err = repository.WithTransaction(ctx, s.db, func(txCtx context.Context) error {
		if err := s.lineRepo.Update(txCtx, *line); err != nil {
			return err
		}
		updated, err = s.recomputeQuote(txCtx, quote.ID)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("LEAD_TIER_SELECT_FAILED", "Failed to select lead option", err)
	}

	return &dto.SelectLeadOptionResponse{
		Message:  "Lead option selected",
		Line:     ToQuoteLineDTO(*line),
		Subtotal: updated.Subtotal,
	}, nil
}

// SendQuote finalizes a priced quote and starts its expiration clock
func (s *QuoteFlowImpl) SendQuote(ctx context.Context, req *dto.SendQuoteRequest, metadata *ClientMetadata) (*dto.SendQuoteResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if quote.Status != models.QuoteStatusPriced && quote.Status != models.QuoteStatusReviewed {
		return nil, NewBusinessError("QUOTE_NOT_SENDABLE", "Quote cannot be sent in current status", ErrQuoteNotSendable)
	}
	if len(quote.Lines) == 0 {
		return nil, NewBusinessError("QUOTE_NOT_SENDABLE", "Quote has no lines to send", ErrQuoteNotSendable)
	}
	for _, line := range quote.Lines {
		if line.Pricing == nil || line.Pricing.RequiresManualQuote {
			return nil, NewBusinessError("QUOTE_NOT_SENDABLE", "Quote contains unpriced or manual-review parts", ErrQuoteNotSendable)
		}
	}

	expiresAt := utils.UTCNowAdd(time.Duration(s.pricingConfig.DefaultExpiryDays) * 24 * time.Hour)
	quote.Status = models.QuoteStatusSent
	quote.ExpiresAt = &expiresAt

	if err := s.quoteRepo.Update(ctx, *quote); err != nil {
		return nil, NewBusinessError("QUOTE_SEND_FAILED", "Failed to send quote", err)
	}

	msg := fmt.Sprintf("Quote sent: %s, expires %s", quote.UUID.String(), expiresAt.Format(time.RFC3339))
	_ = s.createAuditLog(ctx, quote.Customer, models.AuditActionQuoteSent, msg, true, nil, metadata)

	return &dto.SendQuoteResponse{
		Message:   "Quote sent",
		Status:    models.QuoteStatusSent.String(),
		ExpiresAt: &expiresAt,
	}, nil
}

// AcceptQuote marks a sent, unexpired quote as accepted
func (s *QuoteFlowImpl) AcceptQuote(ctx context.Context, req *dto.AcceptQuoteRequest, metadata *ClientMetadata) (*dto.AcceptQuoteResponse, error) {
	quote, err := getOwnedQuote(ctx, s.quoteRepo, req.UUID, req.CustomerID)
	if err != nil {
		return nil, err
	}

	if quote.Status != models.QuoteStatusSent {
		return nil, NewBusinessError("QUOTE_NOT_ACCEPTABLE", "Quote cannot be accepted in current status", ErrQuoteNotAcceptable)
	}
	if utils.IsExpiredPtr(quote.ExpiresAt) {
		return nil, NewBusinessError("QUOTE_EXPIRED", "Quote has expired and is read-only", ErrQuoteExpiredReadOnly)
	}

	if err := s.quoteRepo.UpdateStatus(ctx, quote.ID, models.QuoteStatusAccepted); err != nil {
		return nil, NewBusinessError("QUOTE_ACCEPT_FAILED", "Failed to accept quote", err)
	}

	msg := fmt.Sprintf("Quote accepted: %s", quote.UUID.String())
	_ = s.createAuditLog(ctx, quote.Customer, models.AuditActionQuoteAccepted, msg, true, nil, metadata)

	return &dto.AcceptQuoteResponse{
		Message: "Quote accepted",
		Status:  models.QuoteStatusAccepted.String(),
	}, nil
}

// priceLine computes a fresh pricing snapshot for the line at its selected tier
func (s *QuoteFlowImpl) priceLine(ctx context.Context, line *models.QuoteLine) (*models.PricingSnapshot, error) {
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
		return nil, err
	}

	return breakdown.Snapshot(utils.UTCNow()), nil
}

// computeOptions prices all tiers for a line through the shared calculator
func (s *QuoteFlowImpl) computeOptions(ctx context.Context, line models.QuoteLine) ([]dto.LeadOption, error) {
	part := pricing.Part{
		Process:           line.Process,
		Material:          line.Material,
		Finish:            line.Finish,
		Tolerance:         line.Tolerance,
		Quantity:          line.Quantity,
		Geometry:          line.Geometry,
		MaterialCostPerKg: liveMaterialCost(ctx, s.materialPrices, line.Material),
	}

	options, err := s.calculator.ComputeLeadOptions(part)
	if err != nil {
		return nil, err
	}

	out := make([]dto.LeadOption, 0, len(options))
	for _, option := range options {
		out = append(out, dto.LeadOption{
			Tier:           option.Tier.String(),
			Badge:          option.Badge,
			LeadTimeDays:   option.LeadTimeDays,
			UnitPrice:      option.UnitPrice,
			MarketingPrice: option.MarketingPrice,
			Savings:        option.Savings,
		})
	}
	return out, nil
}

// recomputeQuote rebuilds the quote subtotal and pre-send status from its
// lines. Any manual-review line parks the quote in needs_review; a quote with
// no lines falls back to draft.
func (s *QuoteFlowImpl) recomputeQuote(ctx context.Context, quoteID uint) (*models.Quote, error) {
	quote, err := s.quoteRepo.ByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, ErrQuoteNotFound
	}

	lines, err := s.lineRepo.ByQuoteID(ctx, quoteID)
	if err != nil {
		return nil, err
	}

	var subtotal float64
	needsReview := false
	for _, line := range lines {
		if line.Pricing == nil {
			continue
		}
		if line.Pricing.RequiresManualQuote {
			needsReview = true
			continue
		}
		subtotal += line.Pricing.TotalPrice
	}

	quote.Subtotal = round2(subtotal)
	switch {
	case len(lines) == 0:
		quote.Status = models.QuoteStatusDraft
	case needsReview:
		quote.Status = models.QuoteStatusNeedsReview
	default:
		quote.Status = models.QuoteStatusPriced
	}

	if err := s.quoteRepo.Update(ctx, *quote); err != nil {
		return nil, err
	}

	return quote, nil
}

// liveMaterialCost resolves the per-kg rate from the material price feed.
// Returns 0 when no feed is configured or the feed has no answer, which tells
// the cost engine to use the catalog rate.
func liveMaterialCost(ctx context.Context, feed services.MaterialPriceService, materialKey string) float64 {
	if feed == nil {
		return 0
	}
	price, err := feed.PricePerKg(ctx, materialKey)
	if err != nil {
		return 0
	}
	return price
}

// getCustomer fetches an active customer or fails with the flow sentinels
func (s *QuoteFlowImpl) getCustomer(ctx context.Context, customerID uint) (*models.Customer, error) {
	customer, err := s.customerRepo.ByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}
	if !utils.IsTrue(customer.IsActive) {
		return nil, ErrAccountInactive
	}
	return customer, nil
}

// getOwnedQuote fetches a quote and verifies ownership. Missing quotes and
// foreign quotes are indistinguishable to the caller.
func getOwnedQuote(ctx context.Context, quoteRepo repository.QuoteRepository, quoteUUID string, customerID uint) (*models.Quote, error) {
	quote, err := quoteRepo.ByUUID(ctx, quoteUUID)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LOOKUP_FAILED", "Failed to lookup quote", err)
	}
	if quote == nil {
		return nil, NewBusinessError("QUOTE_NOT_FOUND", "Quote not found", ErrQuoteNotFound)
	}
	if quote.CustomerID != customerID {
		return nil, NewBusinessError("QUOTE_NOT_FOUND", "Quote not found", ErrQuoteNotFound)
	}
	return quote, nil
}

// getOwnedLine fetches a line and verifies it belongs to the quote
func getOwnedLine(ctx context.Context, lineRepo repository.QuoteLineRepository, quote *models.Quote, lineUUID string) (*models.QuoteLine, error) {
	line, err := lineRepo.ByUUID(ctx, lineUUID)
	if err != nil {
		return nil, NewBusinessError("QUOTE_LINE_LOOKUP_FAILED", "Failed to lookup quote line", err)
	}
	if line == nil || line.QuoteID != quote.ID {
		return nil, NewBusinessError("QUOTE_LINE_NOT_FOUND", "Quote line not found", ErrQuoteLineNotFound)
	}
	return line, nil
}

// ensureEditable rejects mutations on quotes past the editing window
func ensureEditable(status models.QuoteStatus) error {
	switch status {
	case models.QuoteStatusDraft, models.QuoteStatusAnalyzing, models.QuoteStatusPriced,
		models.QuoteStatusNeedsReview, models.QuoteStatusReviewed:
		return nil
	case models.QuoteStatusExpired:
		return NewBusinessError("QUOTE_EXPIRED", "Quote has expired and is read-only", ErrQuoteExpiredReadOnly)
	default:
		return NewBusinessError("QUOTE_NOT_EDITABLE", "Quote cannot be modified in current status", ErrQuoteNotEditable)
	}
}

// canRepriceQuote reports whether a reprice makes sense for the status
func canRepriceQuote(status models.QuoteStatus) bool {
	switch status {
	case models.QuoteStatusPriced, models.QuoteStatusNeedsReview, models.QuoteStatusReviewed,
		models.QuoteStatusSent, models.QuoteStatusExpired:
		return true
	default:
		return false
	}
}

// canExtendQuote reports whether the expiry can be pushed out for the status
func canExtendQuote(status models.QuoteStatus) bool {
	switch status {
	case models.QuoteStatusSent, models.QuoteStatusExpired:
		return true
	default:
		return false
	}
}

// createAuditLog creates an audit log entry for the quote operation
func (s *QuoteFlowImpl) createAuditLog(ctx context.Context, customer *models.Customer, action, description string, success bool, errorMsg *string, metadata *ClientMetadata) error {
	var customerID *uint
	if customer != nil {
		customerID = &customer.ID
	}

	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		CustomerID:   customerID,
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

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

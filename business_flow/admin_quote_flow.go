// Package businessflow contains the core business logic and use cases for admin quote operations
package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kajiya-works/kajiya/app/dto"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/repository"
	"github.com/kajiya-works/kajiya/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// AdminQuoteFlow handles back-office quote operations
type AdminQuoteFlow interface {
	ListQuotes(ctx context.Context, req *dto.AdminListQuotesRequest) (*dto.AdminListQuotesResponse, error)
	ForceExpire(ctx context.Context, req *dto.AdminForceExpireRequest, metadata *ClientMetadata) (*dto.AdminForceExpireResponse, error)
	MarkReviewed(ctx context.Context, req *dto.AdminMarkReviewedRequest, metadata *ClientMetadata) (*dto.AdminMarkReviewedResponse, error)
	ExportQuotes(ctx context.Context, req *dto.AdminExportQuotesRequest) (string, []byte, error)
}

// AdminQuoteFlowImpl implements the admin quote flow
type AdminQuoteFlowImpl struct {
	quoteRepo    repository.QuoteRepository
	lineRepo     repository.QuoteLineRepository
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditLogRepository
	db           *gorm.DB
}

// NewAdminQuoteFlow creates a new admin quote flow instance
func NewAdminQuoteFlow(
	quoteRepo repository.QuoteRepository,
	lineRepo repository.QuoteLineRepository,
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) AdminQuoteFlow {
	return &AdminQuoteFlowImpl{
		quoteRepo:    quoteRepo,
		lineRepo:     lineRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		db:           db,
	}
}

// ListQuotes returns a paginated quote list across all customers
func (f *AdminQuoteFlowImpl) ListQuotes(ctx context.Context, req *dto.AdminListQuotesRequest) (*dto.AdminListQuotesResponse, error) {
	page, pageSize := normalizePagination(req.Page, req.PageSize)

	filter, err := adminQuoteFilter(req.Status, req.CustomerID, req.CreatedAfter, req.CreatedBefore)
	if err != nil {
		return nil, err
	}

	total, err := f.quoteRepo.Count(ctx, *filter)
	if err != nil {
		return nil, NewBusinessError("ADMIN_QUOTE_LIST_FAILED", "Failed to count quotes", err)
	}

	quotes, err := f.quoteRepo.ByFilter(ctx, *filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("ADMIN_QUOTE_LIST_FAILED", "Failed to list quotes", err)
	}

	items := make([]dto.AdminQuoteItem, 0, len(quotes))
	for _, quote := range quotes {
		items = append(items, f.toAdminItem(ctx, quote))
	}

	return &dto.AdminListQuotesResponse{
		Message:  "Quotes retrieved successfully",
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ForceExpire expires a quote immediately regardless of its expiry timestamp
func (f *AdminQuoteFlowImpl) ForceExpire(ctx context.Context, req *dto.AdminForceExpireRequest, metadata *ClientMetadata) (*dto.AdminForceExpireResponse, error) {
	quote, err := f.quoteRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("ADMIN_FORCE_EXPIRE_FAILED", "Failed to load quote", err)
	}
	if quote == nil {
		return nil, NewBusinessError("QUOTE_NOT_FOUND", "Quote not found", ErrQuoteNotFound)
	}

	if quote.Status.Terminal() || quote.Status == models.QuoteStatusExpired {
		return nil, NewBusinessError("QUOTE_NOT_EXPIRABLE", "Quote cannot be expired in current status", ErrQuoteNotEditable)
	}

	if err := f.quoteRepo.UpdateStatus(ctx, quote.ID, models.QuoteStatusExpired); err != nil {
		return nil, NewBusinessError("ADMIN_FORCE_EXPIRE_FAILED", "Failed to expire quote", err)
	}

	desc := fmt.Sprintf("Quote force-expired by admin: %s", quote.UUID.String())
	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}
	_ = f.auditRepo.Save(ctx, &models.AuditLog{
		CustomerID:  &quote.CustomerID,
		Action:      models.AuditActionQuoteExpired,
		Description: &desc,
		Success:     utils.ToPtr(true),
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	})

	return &dto.AdminForceExpireResponse{
		Message: "Quote expired",
		Status:  models.QuoteStatusExpired.String(),
	}, nil
}

// MarkReviewed approves a quote parked in needs_review and returns it to the
// customer-facing priced path
func (f *AdminQuoteFlowImpl) MarkReviewed(ctx context.Context, req *dto.AdminMarkReviewedRequest, metadata *ClientMetadata) (*dto.AdminMarkReviewedResponse, error) {
	quote, err := f.quoteRepo.ByUUID(ctx, req.UUID)
	if err != nil {
		return nil, NewBusinessError("ADMIN_MARK_REVIEWED_FAILED", "Failed to load quote", err)
	}
	if quote == nil {
		return nil, NewBusinessError("QUOTE_NOT_FOUND", "Quote not found", ErrQuoteNotFound)
	}

	if quote.Status != models.QuoteStatusNeedsReview {
		return nil, NewBusinessError("QUOTE_NOT_REVIEWABLE", "Quote is not awaiting review", ErrQuoteNotReviewable)
	}

	if err := f.quoteRepo.UpdateStatus(ctx, quote.ID, models.QuoteStatusReviewed); err != nil {
		return nil, NewBusinessError("ADMIN_MARK_REVIEWED_FAILED", "Failed to mark quote reviewed", err)
	}

	desc := fmt.Sprintf("Quote approved after review: %s", quote.UUID.String())
	ipAddress := ""
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}
	_ = f.auditRepo.Save(ctx, &models.AuditLog{
		CustomerID:  &quote.CustomerID,
		Action:      models.AuditActionQuoteReviewed,
		Description: &desc,
		Success:     utils.ToPtr(true),
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	})

	return &dto.AdminMarkReviewedResponse{
		Message: "Quote reviewed",
		Status:  models.QuoteStatusReviewed.String(),
	}, nil
}

// ExportQuotes builds an Excel workbook of quotes matching the filter, one
// sheet per status
func (f *AdminQuoteFlowImpl) ExportQuotes(ctx context.Context, req *dto.AdminExportQuotesRequest) (string, []byte, error) {
	filter, err := adminQuoteFilter(req.Status, nil, req.CreatedAfter, req.CreatedBefore)
	if err != nil {
		return "", nil, err
	}

	quotes, err := f.quoteRepo.ByFilter(ctx, *filter, "status ASC, created_at ASC", 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("ADMIN_QUOTE_EXPORT_FAILED", "Failed to fetch quotes for export", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	byStatus := make(map[string][]*models.Quote)
	order := make([]string, 0)
	for _, quote := range quotes {
		status := quote.Status.String()
		if _, ok := byStatus[status]; !ok {
			order = append(order, status)
		}
		byStatus[status] = append(byStatus[status], quote)
	}
	if len(order) == 0 {
		order = append(order, "quotes")
	}

	header := []string{"uuid", "customer_id", "customer_email", "status", "currency", "subtotal", "version", "expires_at", "repriced_at", "created_at"}
	for i, status := range order {
		if i == 0 {
			xl.SetSheetName(xl.GetSheetName(0), status)
		} else {
			_, _ = xl.NewSheet(status)
		}
		_ = xl.SetSheetRow(status, "A1", &header)

		for ri, quote := range byStatus[status] {
			email := ""
			if quote.Customer != nil {
				email = quote.Customer.Email
			}
			expires := ""
			if quote.ExpiresAt != nil {
				expires = quote.ExpiresAt.UTC().Format(time.RFC3339)
			}
			repriced := ""
			if quote.RepricedAt != nil {
				repriced = quote.RepricedAt.UTC().Format(time.RFC3339)
			}
			record := []string{
				quote.UUID.String(),
				strconv.FormatUint(uint64(quote.CustomerID), 10),
				email,
				quote.Status.String(),
				quote.Currency,
				strconv.FormatFloat(quote.Subtotal, 'f', 2, 64),
				strconv.Itoa(quote.Version),
				expires,
				repriced,
				quote.CreatedAt.UTC().Format(time.RFC3339),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
			_ = xl.SetSheetRow(status, cellRef, &record)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("quotes_export_%s.xlsx", utils.UTCNow().Format("20060102_150405"))
	return filename, buf.Bytes(), nil
}

func (f *AdminQuoteFlowImpl) toAdminItem(ctx context.Context, quote *models.Quote) dto.AdminQuoteItem {
	item := dto.AdminQuoteItem{
		UUID:       quote.UUID.String(),
		CustomerID: quote.CustomerID,
		Status:     quote.Status.String(),
		Currency:   quote.Currency,
		Subtotal:   quote.Subtotal,
		Version:    quote.Version,
		ExpiresAt:  quote.ExpiresAt,
		CreatedAt:  quote.CreatedAt,
	}

	if quote.Customer != nil {
		item.CustomerEmail = quote.Customer.Email
	} else if customer, err := f.customerRepo.ByID(ctx, quote.CustomerID); err == nil && customer != nil {
		item.CustomerEmail = customer.Email
	}

	if lineCount, err := f.lineRepo.Count(ctx, models.QuoteLineFilter{QuoteID: &quote.ID}); err == nil {
		item.LineCount = int(lineCount)
	}

	return item
}

func adminQuoteFilter(status *string, customerID *uint, createdAfter, createdBefore *time.Time) (*models.QuoteFilter, error) {
	filter := &models.QuoteFilter{
		CustomerID:    customerID,
		CreatedAfter:  createdAfter,
		CreatedBefore: createdBefore,
	}
	if status != nil && *status != "" {
		st := models.QuoteStatus(*status)
		if !st.Valid() {
			return nil, NewBusinessErrorf("VALIDATION_ERROR", "unknown quote status: %s", nil, *status)
		}
		filter.Status = &st
	}
	if createdAfter != nil && createdBefore != nil && createdAfter.After(*createdBefore) {
		return nil, NewBusinessError("VALIDATION_ERROR", "created_after cannot be after created_before", ErrStartDateAfterEndDate)
	}
	return filter, nil
}

// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/kajiya-works/kajiya/app/dto"
	businessflow "github.com/kajiya-works/kajiya/business_flow"
	"github.com/kajiya-works/kajiya/utils"
)

// AdminQuoteHandlerInterface defines the contract for admin quote handlers
type AdminQuoteHandlerInterface interface {
	ListQuotes(c fiber.Ctx) error
	ForceExpire(c fiber.Ctx) error
	MarkReviewed(c fiber.Ctx) error
	ExportQuotes(c fiber.Ctx) error
}

// AdminQuoteHandler handles back-office quote HTTP requests
type AdminQuoteHandler struct {
	adminFlow businessflow.AdminQuoteFlow
	validator *validator.Validate
}

// NewAdminQuoteHandler creates a new admin quote handler
func NewAdminQuoteHandler(adminFlow businessflow.AdminQuoteFlow) *AdminQuoteHandler {
	return &AdminQuoteHandler{
		adminFlow: adminFlow,
		validator: validator.New(),
	}
}

func (h *AdminQuoteHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdminQuoteHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListQuotes lists quotes across all customers
// @Summary Admin List Quotes
// @Description Retrieve quotes across all customers with pagination and filters
// @Tags Admin
// @Accept json
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Items per page (max 100)"
// @Param status query string false "Filter by status"
// @Param customer_id query int false "Filter by customer ID"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListQuotesResponse}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/quotes [get]
func (h *AdminQuoteHandler) ListQuotes(c fiber.Ctx) error {
	req := &dto.AdminListQuotesRequest{Page: 1, PageSize: 20}
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		req.Page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size", "20")); err == nil && v > 0 {
		req.PageSize = v
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if v, err := strconv.ParseUint(c.Query("customer_id"), 10, 64); err == nil && v > 0 {
		customerID := uint(v)
		req.CustomerID = &customerID
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.adminFlow.ListQuotes(h.createRequestContext(c, "/api/v1/admin/quotes"), req)
	if err != nil {
		log.Println("Admin list quotes failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list quotes", "ADMIN_QUOTE_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quotes retrieved successfully", fiber.Map{
		"message":   result.Message,
		"items":     result.Items,
		"total":     result.Total,
		"page":      result.Page,
		"page_size": result.PageSize,
	})
}

// ForceExpire expires a quote immediately
// @Summary Admin Force Expire Quote
// @Description Expire a quote immediately regardless of its expiry timestamp
// @Tags Admin
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AdminForceExpireResponse}
// @Failure 403 {object} dto.APIResponse "Quote not expirable"
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/quotes/{uuid}/expire [post]
func (h *AdminQuoteHandler) ForceExpire(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	req := &dto.AdminForceExpireRequest{UUID: quoteUUID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.adminFlow.ForceExpire(h.createRequestContext(c, "/api/v1/admin/quotes/"+quoteUUID+"/expire"), req, metadata)
	if err != nil {
		if businessflow.IsQuoteNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
		}

		log.Println("Admin force expire failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to expire quote", "ADMIN_FORCE_EXPIRE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote expired", result)
}

// MarkReviewed approves a quote awaiting manual review
// @Summary Admin Mark Quote Reviewed
// @Description Approve a quote parked in needs_review
// @Tags Admin
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AdminMarkReviewedResponse}
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 409 {object} dto.APIResponse "Quote not awaiting review"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/quotes/{uuid}/review [post]
func (h *AdminQuoteHandler) MarkReviewed(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	req := &dto.AdminMarkReviewedRequest{UUID: quoteUUID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.adminFlow.MarkReviewed(h.createRequestContext(c, "/api/v1/admin/quotes/"+quoteUUID+"/review"), req, metadata)
	if err != nil {
		if businessflow.IsQuoteNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
		}
		if errors.Is(err, businessflow.ErrQuoteNotReviewable) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Quote is not awaiting review", "QUOTE_NOT_REVIEWABLE", nil)
		}

		log.Println("Admin mark reviewed failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark quote reviewed", "ADMIN_MARK_REVIEWED_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote reviewed", result)
}

// ExportQuotes streams an Excel workbook of quotes
// @Summary Admin Export Quotes
// @Description Export quotes matching the filter as an Excel workbook
// @Tags Admin
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param status query string false "Filter by status"
// @Success 200 {file} binary "Excel workbook"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/quotes/export [get]
func (h *AdminQuoteHandler) ExportQuotes(c fiber.Ctx) error {
	req := &dto.AdminExportQuotesRequest{}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}

	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	filename, payload, err := h.adminFlow.ExportQuotes(h.createRequestContext(c, "/api/v1/admin/quotes/export"), req)
	if err != nil {
		log.Println("Admin export quotes failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export quotes", "ADMIN_QUOTE_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
	return c.Send(payload)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *AdminQuoteHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)

	return ctx
}

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

// RevisionHandlerInterface defines the contract for revision handlers
type RevisionHandlerInterface interface {
	RepriceQuote(c fiber.Ctx) error
	ExtendExpiration(c fiber.Ctx) error
	ListRevisions(c fiber.Ctx) error
}

// RevisionHandler handles reprice and extension HTTP requests
type RevisionHandler struct {
	revisionFlow businessflow.RevisionFlow
	validator    *validator.Validate
}

// NewRevisionHandler creates a new revision handler
func NewRevisionHandler(revisionFlow businessflow.RevisionFlow) *RevisionHandler {
	return &RevisionHandler{
		revisionFlow: revisionFlow,
		validator:    validator.New(),
	}
}

func (h *RevisionHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RevisionHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RepriceQuote reprices a quote against the current cost model
// @Summary Reprice Quote
// @Description Reprice every line of a quote; guarded by optimistic versioning and a per-quote lock
// @Tags Revisions
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Param request body dto.RepriceQuoteRequest true "Expected quote version"
// @Success 200 {object} dto.APIResponse{data=dto.RepriceQuoteResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 409 {object} dto.APIResponse "Version conflict or reprice in progress"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Failure 503 {object} dto.APIResponse "Store temporarily unavailable, retry later"
// @Router /api/v1/quotes/{uuid}/reprice [post]
func (h *RevisionHandler) RepriceQuote(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	var req dto.RepriceQuoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = quoteUUID

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}
	req.CustomerID = customerID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.revisionFlow.RepriceQuote(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/reprice"), &req, metadata)
	if err != nil {
		if businessflow.IsQuoteNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
		}
		if businessflow.IsQuoteVersionConflict(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Quote was modified by another request", "QUOTE_VERSION_CONFLICT", nil)
		}
		if businessflow.IsRepriceInProgress(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "A reprice is already in progress for this quote", "REPRICE_IN_PROGRESS", nil)
		}
		if errors.Is(err, businessflow.ErrQuoteNotRepriceable) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Quote cannot be repriced in current status", "QUOTE_NOT_REPRICEABLE", nil)
		}
		if businessflow.IsStoreUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Service temporarily unavailable, retry later", "STORE_UNAVAILABLE", nil)
		}

		log.Println("Reprice quote failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reprice quote", "REPRICE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote repriced successfully", result)
}

// ExtendExpiration pushes a quote's expiry out
// @Summary Extend Quote Expiration
// @Description Extend the expiry of a sent or expired quote by a number of days
// @Tags Revisions
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Param request body dto.ExtendExpirationRequest true "Extension days"
// @Success 200 {object} dto.APIResponse{data=dto.ExtendExpirationResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Quote not extendable"
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 422 {object} dto.APIResponse "Extension exceeds the allowed window"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Failure 503 {object} dto.APIResponse "Store temporarily unavailable, retry later"
// @Router /api/v1/quotes/{uuid}/extend [post]
func (h *RevisionHandler) ExtendExpiration(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	var req dto.ExtendExpirationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.UUID = quoteUUID

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}
	req.CustomerID = customerID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.revisionFlow.ExtendExpiration(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/extend"), &req, metadata)
	if err != nil {
		if businessflow.IsQuoteNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
		}
		if errors.Is(err, businessflow.ErrQuoteNotExtendable) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Quote cannot be extended in current status", "QUOTE_NOT_EXTENDABLE", nil)
		}
		if errors.Is(err, businessflow.ErrInvalidExtensionDays) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Extension days must be positive", "EXTENSION_INVALID", nil)
		}
		if errors.Is(err, businessflow.ErrExtensionLimitReached) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Extension exceeds the maximum allowed window", "EXTENSION_LIMIT", nil)
		}
		if businessflow.IsQuoteVersionConflict(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Quote was modified by another request", "QUOTE_VERSION_CONFLICT", nil)
		}
		if businessflow.IsStoreUnavailable(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "Service temporarily unavailable, retry later", "STORE_UNAVAILABLE", nil)
		}

		log.Println("Extend expiration failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to extend quote expiration", "EXTENSION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote expiration extended successfully", result)
}

// ListRevisions returns a quote's revision timeline
// @Summary List Quote Revisions
// @Description Retrieve the revision timeline of a quote, newest first
// @Tags Revisions
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Param page query int false "Page number"
// @Param page_size query int false "Items per page (max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListRevisionsResponse}
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid}/revisions [get]
func (h *RevisionHandler) ListRevisions(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	page := 1
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	pageSize := 20
	if v, err := strconv.Atoi(c.Query("page_size", "20")); err == nil && v > 0 {
		pageSize = v
	}
	if pageSize > 100 {
		pageSize = 100
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	req := &dto.ListRevisionsRequest{
		UUID:       quoteUUID,
		CustomerID: customerID,
		Page:       page,
		PageSize:   pageSize,
	}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.revisionFlow.ListRevisions(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/revisions"), req, metadata)
	if err != nil {
		if businessflow.IsQuoteNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
		}

		log.Println("List revisions failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list revisions", "REVISION_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Revisions retrieved successfully", fiber.Map{
		"message": result.Message,
		"items":   result.Items,
		"total":   result.Total,
	})
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *RevisionHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)

	return ctx
}

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

// QuoteHandlerInterface defines the contract for quote handlers
type QuoteHandlerInterface interface {
	CreateQuote(c fiber.Ctx) error
	GetQuote(c fiber.Ctx) error
	ListQuotes(c fiber.Ctx) error
	AddQuoteLine(c fiber.Ctx) error
	UpdateQuoteLine(c fiber.Ctx) error
	RemoveQuoteLine(c fiber.Ctx) error
	GetLeadOptions(c fiber.Ctx) error
	SelectLeadOption(c fiber.Ctx) error
	SendQuote(c fiber.Ctx) error
	AcceptQuote(c fiber.Ctx) error
}

// QuoteHandler handles quote-related HTTP requests
type QuoteHandler struct {
	quoteFlow businessflow.QuoteFlow
	validator *validator.Validate
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quoteFlow businessflow.QuoteFlow) *QuoteHandler {
	return &QuoteHandler{
		quoteFlow: quoteFlow,
		validator: validator.New(),
	}
}

func (h *QuoteHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *QuoteHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateQuote handles quote creation
// @Summary Create Quote
// @Description Create a new empty quote for the authenticated customer
// @Tags Quotes
// @Accept json
// @Produce json
// @Param request body dto.CreateQuoteRequest true "Quote creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateQuoteResponse} "Quote created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized - customer not found or inactive"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes [post]
func (h *QuoteHandler) CreateQuote(c fiber.Ctx) error {
	var req dto.CreateQuoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}
	req.CustomerID = customerID

	result, err := h.quoteFlow.CreateQuote(h.createRequestContext(c, "/api/v1/quotes"), &req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Quote creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Quote creation failed", "QUOTE_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Quote created successfully", fiber.Map{
		"message":    result.Message,
		"uuid":       result.UUID,
		"status":     result.Status,
		"created_at": result.CreatedAt,
	})
}

// GetQuote returns one quote with lines and the recomputed expiration banner
// @Summary Get Quote
// @Description Retrieve a quote with its lines and expiration banner state
// @Tags Quotes
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetQuoteResponse}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid} [get]
func (h *QuoteHandler) GetQuote(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	req := &dto.GetQuoteRequest{UUID: quoteUUID, CustomerID: customerID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.quoteFlow.GetQuote(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID), req, metadata)
	if err != nil {
		if businessflow.IsQuoteNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
		}

		log.Println("Get quote failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to retrieve quote", "GET_QUOTE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote retrieved successfully", result)
}

// ListQuotes returns the customer's quotes with pagination and status filter
// @Summary List Quotes
// @Description Retrieve the authenticated customer's quotes with pagination and status filter
// @Tags Quotes
// @Accept json
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Items per page (max 100)"
// @Param status query string false "Filter by status"
// @Success 200 {object} dto.APIResponse{data=dto.ListQuotesResponse}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes [get]
func (h *QuoteHandler) ListQuotes(c fiber.Ctx) error {
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

	req := &dto.ListQuotesRequest{
		CustomerID: customerID,
		Page:       page,
		PageSize:   pageSize,
	}
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

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.quoteFlow.ListQuotes(h.createRequestContext(c, "/api/v1/quotes"), req, metadata)
	if err != nil {
		if businessflow.IsCustomerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("List quotes failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list quotes", "LIST_QUOTES_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quotes retrieved successfully", fiber.Map{
		"message":   result.Message,
		"items":     result.Items,
		"total":     result.Total,
		"page":      result.Page,
		"page_size": result.PageSize,
	})
}

// AddQuoteLine adds a configured part line to a quote
// @Summary Add Quote Line
// @Description Add a part line to a quote; the line is priced immediately
// @Tags Quotes
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Param request body dto.AddQuoteLineRequest true "Part line data"
// @Success 201 {object} dto.APIResponse{data=dto.AddQuoteLineResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Quote not editable"
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid}/lines [post]
func (h *QuoteHandler) AddQuoteLine(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	var req dto.AddQuoteLineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.QuoteUUID = quoteUUID

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

	result, err := h.quoteFlow.AddQuoteLine(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/lines"), &req, metadata)
	if err != nil {
		return h.quoteLineError(c, err, "Failed to add quote line", "ADD_QUOTE_LINE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Quote line added successfully", result)
}

// UpdateQuoteLine applies a partial update to a line and reprices it
// @Summary Update Quote Line
// @Description Update material, finish, tolerance, quantity, or geometry of a line
// @Tags Quotes
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Param line_uuid path string true "Line UUID"
// @Param request body dto.UpdateQuoteLineRequest true "Line update data"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateQuoteLineResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Quote not editable"
// @Failure 404 {object} dto.APIResponse "Quote or line not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid}/lines/{line_uuid} [patch]
func (h *QuoteHandler) UpdateQuoteLine(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	lineUUID := c.Params("line_uuid")
	if quoteUUID == "" || lineUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID and line UUID are required", "MISSING_QUOTE_UUID", nil)
	}

	var req dto.UpdateQuoteLineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.QuoteUUID = quoteUUID
	req.LineUUID = lineUUID

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

	result, err := h.quoteFlow.UpdateQuoteLine(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/lines/"+lineUUID), &req, metadata)
	if err != nil {
		return h.quoteLineError(c, err, "Failed to update quote line", "UPDATE_QUOTE_LINE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote line updated successfully", result)
}

// RemoveQuoteLine deletes a line and recomputes the subtotal
// @Summary Remove Quote Line
// @Description Remove a part line from a quote
// @Tags Quotes
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Param line_uuid path string true "Line UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RemoveQuoteLineResponse}
// @Failure 403 {object} dto.APIResponse "Quote not editable"
// @Failure 404 {object} dto.APIResponse "Quote or line not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid}/lines/{line_uuid} [delete]
func (h *QuoteHandler) RemoveQuoteLine(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	lineUUID := c.Params("line_uuid")
	if quoteUUID == "" || lineUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID and line UUID are required", "MISSING_QUOTE_UUID", nil)
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	req := &dto.RemoveQuoteLineRequest{
		QuoteUUID:  quoteUUID,
		LineUUID:   lineUUID,
		CustomerID: customerID,
	}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.quoteFlow.RemoveQuoteLine(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/lines/"+lineUUID), req, metadata)
	if err != nil {
		return h.quoteLineError(c, err, "Failed to remove quote line", "REMOVE_QUOTE_LINE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote line removed successfully", result)
}

// GetLeadOptions prices every lead tier of a line
// @Summary Get Lead Options
// @Description Price the economy, standard, and expedited options of a line
// @Tags Quotes
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Param line_uuid path string true "Line UUID"
// @Success 200 {object} dto.APIResponse{data=dto.GetLeadOptionsResponse}
// @Failure 404 {object} dto.APIResponse "Quote or line not found"
// @Failure 422 {object} dto.APIResponse "Part requires manual quoting"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid}/lines/{line_uuid}/options [get]
func (h *QuoteHandler) GetLeadOptions(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	lineUUID := c.Params("line_uuid")
	if quoteUUID == "" || lineUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID and line UUID are required", "MISSING_QUOTE_UUID", nil)
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	req := &dto.GetLeadOptionsRequest{
		QuoteUUID:  quoteUUID,
		LineUUID:   lineUUID,
		CustomerID: customerID,
	}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.quoteFlow.GetLeadOptions(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/lines/"+lineUUID+"/options"), req, metadata)
	if err != nil {
		if businessflow.IsManualQuoteRequired(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Part requires manual quoting", "MANUAL_QUOTE_REQUIRED", nil)
		}
		return h.quoteLineError(c, err, "Failed to compute lead options", "GET_LEAD_OPTIONS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead options computed successfully", result)
}

// SelectLeadOption pins a line to a lead tier and reprices it
// @Summary Select Lead Option
// @Description Pin a line to one of the lead tiers
// @Tags Quotes
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Param line_uuid path string true "Line UUID"
// @Param request body dto.SelectLeadOptionRequest true "Tier selection"
// @Success 200 {object} dto.APIResponse{data=dto.SelectLeadOptionResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Quote or line not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid}/lines/{line_uuid}/select-option [post]
func (h *QuoteHandler) SelectLeadOption(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	lineUUID := c.Params("line_uuid")
	if quoteUUID == "" || lineUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID and line UUID are required", "MISSING_QUOTE_UUID", nil)
	}

	var req dto.SelectLeadOptionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.QuoteUUID = quoteUUID
	req.LineUUID = lineUUID

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

	result, err := h.quoteFlow.SelectLeadOption(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/lines/"+lineUUID+"/select-option"), &req, metadata)
	if err != nil {
		return h.quoteLineError(c, err, "Failed to select lead option", "SELECT_LEAD_OPTION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Lead option selected successfully", result)
}

// SendQuote finalizes a priced quote and starts its expiration clock
// @Summary Send Quote
// @Description Finalize a priced quote so the customer can accept it
// @Tags Quotes
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.SendQuoteResponse}
// @Failure 403 {object} dto.APIResponse "Quote not sendable"
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid}/send [post]
func (h *QuoteHandler) SendQuote(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	req := &dto.SendQuoteRequest{UUID: quoteUUID, CustomerID: customerID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.quoteFlow.SendQuote(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/send"), req, metadata)
	if err != nil {
		if businessflow.IsQuoteNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
		}
		if errors.Is(err, businessflow.ErrQuoteNotSendable) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Quote has no priced lines to send", "QUOTE_NOT_SENDABLE", nil)
		}
		if errors.Is(err, businessflow.ErrQuoteNotEditable) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Quote cannot be sent in current status", "QUOTE_NOT_SENDABLE", nil)
		}

		log.Println("Send quote failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to send quote", "SEND_QUOTE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote sent successfully", result)
}

// AcceptQuote accepts a sent quote before its expiry
// @Summary Accept Quote
// @Description Accept a sent quote; expired quotes cannot be accepted
// @Tags Quotes
// @Accept json
// @Produce json
// @Param uuid path string true "Quote UUID"
// @Success 200 {object} dto.APIResponse{data=dto.AcceptQuoteResponse}
// @Failure 403 {object} dto.APIResponse "Quote not acceptable"
// @Failure 404 {object} dto.APIResponse "Quote not found"
// @Failure 410 {object} dto.APIResponse "Quote expired"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/quotes/{uuid}/accept [post]
func (h *QuoteHandler) AcceptQuote(c fiber.Ctx) error {
	quoteUUID := c.Params("uuid")
	if quoteUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quote UUID is required", "MISSING_QUOTE_UUID", nil)
	}

	customerID, ok := c.Locals("customer_id").(uint)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	req := &dto.AcceptQuoteRequest{UUID: quoteUUID, CustomerID: customerID}
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.quoteFlow.AcceptQuote(h.createRequestContext(c, "/api/v1/quotes/"+quoteUUID+"/accept"), req, metadata)
	if err != nil {
		if businessflow.IsQuoteNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
		}
		if businessflow.IsQuoteExpiredReadOnly(err) {
			return h.ErrorResponse(c, fiber.StatusGone, "Quote has expired", "QUOTE_EXPIRED", nil)
		}
		if errors.Is(err, businessflow.ErrQuoteNotAcceptable) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Quote cannot be accepted in current status", "QUOTE_NOT_ACCEPTABLE", nil)
		}

		log.Println("Accept quote failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to accept quote", "ACCEPT_QUOTE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Quote accepted successfully", result)
}

// quoteLineError maps shared quote/line business errors onto HTTP responses
func (h *QuoteHandler) quoteLineError(c fiber.Ctx, err error, genericMsg, genericCode string) error {
	if businessflow.IsCustomerNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
	}
	if businessflow.IsAccountInactive(err) {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
	}
	if businessflow.IsQuoteNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Quote not found", "QUOTE_NOT_FOUND", nil)
	}
	if errors.Is(err, businessflow.ErrQuoteLineNotFound) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Quote line not found", "QUOTE_LINE_NOT_FOUND", nil)
	}
	if businessflow.IsQuoteExpiredReadOnly(err) {
		return h.ErrorResponse(c, fiber.StatusGone, "Quote has expired and is read-only", "QUOTE_EXPIRED", nil)
	}
	if errors.Is(err, businessflow.ErrQuoteNotEditable) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Quote cannot be modified in current status", "QUOTE_NOT_EDITABLE", nil)
	}
	if errors.Is(err, businessflow.ErrLineLimitExceeded) {
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Quote line limit exceeded", "LINE_LIMIT_EXCEEDED", nil)
	}
	if errors.Is(err, businessflow.ErrUnknownProcess) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown manufacturing process", "UNKNOWN_PROCESS", nil)
	}
	if errors.Is(err, businessflow.ErrUnknownLeadTier) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown lead tier", "UNKNOWN_LEAD_TIER", nil)
	}
	if errors.Is(err, businessflow.ErrInvalidQuantity) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Quantity must be positive", "INVALID_QUANTITY", nil)
	}

	log.Println(genericMsg, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, genericMsg, genericCode, nil)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *QuoteHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *QuoteHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)

	return ctx
}

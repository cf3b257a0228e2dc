package dto

import "time"

// AdminListQuotesRequest represents the admin request to list quotes across
// all customers
type AdminListQuotesRequest struct {
	Status        *string    `json:"status,omitempty" validate:"omitempty,oneof=draft analyzing priced needs_review reviewed sent accepted expired abandoned"`
	CustomerID    *uint      `json:"customer_id,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
	Page          int        `json:"page" validate:"omitempty,min=1"`
	PageSize      int        `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// AdminQuoteItem represents one quote row in admin listings
type AdminQuoteItem struct {
	UUID          string     `json:"uuid"`
	CustomerID    uint       `json:"customer_id"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	Status        string     `json:"status"`
	Currency      string     `json:"currency"`
	Subtotal      float64    `json:"subtotal"`
	Version       int        `json:"version"`
	LineCount     int        `json:"line_count"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AdminListQuotesResponse represents the paginated admin quote list
type AdminListQuotesResponse struct {
	Message  string           `json:"message"`
	Items    []AdminQuoteItem `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// AdminForceExpireRequest represents the admin request to expire a quote now
type AdminForceExpireRequest struct {
	UUID string `json:"-"`
}

// AdminForceExpireResponse represents the response after a forced expiry
type AdminForceExpireResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// AdminMarkReviewedRequest represents the admin request to approve a quote
// parked in needs_review
type AdminMarkReviewedRequest struct {
	UUID string `json:"-"`
}

// AdminMarkReviewedResponse represents the response after a review approval
type AdminMarkReviewedResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// AdminExportQuotesRequest represents the admin request to export quotes as
// an Excel workbook
type AdminExportQuotesRequest struct {
	Status        *string    `json:"status,omitempty" validate:"omitempty,oneof=draft analyzing priced needs_review reviewed sent accepted expired abandoned"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

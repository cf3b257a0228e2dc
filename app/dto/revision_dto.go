package dto

import "time"

// RepriceQuoteRequest represents the request to reprice a quote against the
// current cost model. ExpectedVersion carries the client's last-seen version
// for conflict detection.
type RepriceQuoteRequest struct {
	UUID            string `json:"-"`
	CustomerID      uint   `json:"-"`
	ExpectedVersion int    `json:"expected_version" validate:"required,gt=0"`
}

// RepriceQuoteResponse represents the outcome of a successful reprice
type RepriceQuoteResponse struct {
	Message     string     `json:"message"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	Subtotal    float64    `json:"subtotal"`
	RepricedAt  *time.Time `json:"repriced_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	NeedsReview bool       `json:"needs_review"`
}

// ExtendExpirationRequest represents the request to push a quote's expiry out
type ExtendExpirationRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
	Days       int    `json:"days" validate:"required,gt=0"`
}

// ExtendExpirationResponse represents the outcome of an extension
type ExtendExpirationResponse struct {
	Message      string     `json:"message"`
	Status       string     `json:"status"`
	NewExpiresAt *time.Time `json:"new_expires_at,omitempty"`
}

// RevisionDTO represents one revision entry in timelines
type RevisionDTO struct {
	UUID          string     `json:"uuid"`
	Kind          string     `json:"kind"`
	FromVersion   int        `json:"from_version"`
	ToVersion     int        `json:"to_version"`
	ChangedFields []string   `json:"changed_fields"`
	OldSubtotal   *float64   `json:"old_subtotal,omitempty"`
	NewSubtotal   *float64   `json:"new_subtotal,omitempty"`
	OldExpiresAt  *time.Time `json:"old_expires_at,omitempty"`
	NewExpiresAt  *time.Time `json:"new_expires_at,omitempty"`
	ActorType     string     `json:"actor_type"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListRevisionsRequest represents the request to list a quote's revisions
type ListRevisionsRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
	Page       int    `json:"page" validate:"omitempty,min=1"`
	PageSize   int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListRevisionsResponse represents the revision timeline of a quote
type ListRevisionsResponse struct {
	Message string        `json:"message"`
	Items   []RevisionDTO `json:"items"`
	Total   int64         `json:"total"`
}

package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kajiya-works/kajiya/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// QuoteStatus represents the lifecycle status of a quote
type QuoteStatus string

const (
	QuoteStatusDraft       QuoteStatus = "draft"
	QuoteStatusAnalyzing   QuoteStatus = "analyzing"
	QuoteStatusPriced      QuoteStatus = "priced"
	QuoteStatusNeedsReview QuoteStatus = "needs_review"
	QuoteStatusReviewed    QuoteStatus = "reviewed"
	QuoteStatusSent        QuoteStatus = "sent"
	QuoteStatusAccepted    QuoteStatus = "accepted"
	QuoteStatusExpired     QuoteStatus = "expired"
	QuoteStatusAbandoned   QuoteStatus = "abandoned"
)

// String returns the string representation of the status
func (s QuoteStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusAnalyzing, QuoteStatusPriced,
		QuoteStatusNeedsReview, QuoteStatusReviewed, QuoteStatusSent,
		QuoteStatusAccepted, QuoteStatusExpired, QuoteStatusAbandoned:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
// Expired is soft-terminal: a reprice revives the quote.
func (s QuoteStatus) Terminal() bool {
	return s == QuoteStatusAccepted || s == QuoteStatusAbandoned
}

// Scan implements the sql.Scanner interface for QuoteStatus
func (s *QuoteStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = QuoteStatus(v)
	case []byte:
		*s = QuoteStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into QuoteStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for QuoteStatus
func (s QuoteStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid QuoteStatus: %s", s)
	}
	return string(s), nil
}

// Quote represents a customer quote aggregating configured part lines
type Quote struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uk_quotes_uuid" json:"uuid"`
	CustomerID uint        `gorm:"not null;index:idx_quotes_customer_id" json:"customer_id"`
	Status     QuoteStatus `gorm:"type:quote_status;not null;default:'draft';index:idx_quotes_status" json:"status"`
	Currency   string      `gorm:"size:3;not null;default:'USD'" json:"currency"`

	// Subtotal is the sum of selected-lead-option unit prices times quantities
	// across all lines; recomputed on every line mutation and reprice.
	Subtotal float64 `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`

	// Version is bumped by every reprice; concurrent writers compare-and-swap
	// on it so a losing reprice surfaces a conflict instead of overwriting.
	Version int `gorm:"not null;default:1" json:"version"`

	ExpiresAt  *time.Time `gorm:"index:idx_quotes_expires_at" json:"expires_at,omitempty"`
	RepricedAt *time.Time `json:"repriced_at,omitempty"`

	Tags pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_quotes_created_at" json:"created_at"`
	UpdatedAt *time.Time `gorm:"index:idx_quotes_updated_at" json:"updated_at,omitempty"`

	// Relations
	Customer  *Customer       `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	Lines     []QuoteLine     `gorm:"foreignKey:QuoteID" json:"lines,omitempty"`
	Revisions []QuoteRevision `gorm:"foreignKey:QuoteID" json:"revisions,omitempty"`
}

// TableName returns the table name for the model
func (Quote) TableName() string {
	return "quotes"
}

// BeforeCreate is called before creating a new record
func (q *Quote) BeforeCreate(tx *gorm.DB) error {
	if q.UUID == uuid.Nil {
		q.UUID = uuid.New()
	}
	if q.Status == "" {
		q.Status = QuoteStatusDraft
	}
	if q.Currency == "" {
		q.Currency = utils.USDCurrency
	}
	if q.Version == 0 {
		q.Version = 1
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = utils.UTCNow()
	}
	return nil
}

// QuoteFilter is used by repositories to narrow quote queries
type QuoteFilter struct {
	UUID          *uuid.UUID   `json:"uuid,omitempty"`
	CustomerID    *uint        `json:"customer_id,omitempty"`
	Status        *QuoteStatus `json:"status,omitempty"`
	ExpiresBefore *time.Time   `json:"expires_before,omitempty"`
	ExpiresAfter  *time.Time   `json:"expires_after,omitempty"`
	CreatedAfter  *time.Time   `json:"created_after,omitempty"`
	CreatedBefore *time.Time   `json:"created_before,omitempty"`
	UpdatedBefore *time.Time   `json:"updated_before,omitempty"`
}

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

// RevisionKind distinguishes what produced a quote revision
type RevisionKind string

const (
	RevisionKindReprice RevisionKind = "reprice"
	RevisionKindExtend  RevisionKind = "extend"
)

func (k RevisionKind) String() string {
	return string(k)
}

// Valid checks if the kind is valid
func (k RevisionKind) Valid() bool {
	switch k {
	case RevisionKindReprice, RevisionKindExtend:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RevisionKind
func (k *RevisionKind) Scan(value any) error {
	if value == nil {
		*k = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*k = RevisionKind(v)
	case []byte:
		*k = RevisionKind(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RevisionKind", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RevisionKind
func (k RevisionKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid RevisionKind: %s", k)
	}
	return string(k), nil
}

// QuoteRevision records one reprice or expiration extension applied to a
// quote. Rows are append-only; the revision timeline is served to clients so
// they can reconcile cached views after a mutation.
type QuoteRevision struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UUID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_quote_revisions_uuid" json:"uuid"`
	QuoteID uint      `gorm:"not null;index:idx_quote_revisions_quote_id" json:"quote_id"`

	Kind        RevisionKind `gorm:"type:revision_kind;not null" json:"kind"`
	FromVersion int          `gorm:"not null" json:"from_version"`
	ToVersion   int          `gorm:"not null" json:"to_version"`

	ChangedFields pq.StringArray `gorm:"type:text[]" json:"changed_fields"`

	OldSubtotal *float64   `gorm:"type:numeric(14,2)" json:"old_subtotal,omitempty"`
	NewSubtotal *float64   `gorm:"type:numeric(14,2)" json:"new_subtotal,omitempty"`
	OldExpires  *time.Time `json:"old_expires_at,omitempty"`
	NewExpires  *time.Time `json:"new_expires_at,omitempty"`

	ActorType string `gorm:"size:32;not null;default:'customer'" json:"actor_type"`
	ActorID   *uint  `json:"actor_id,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_quote_revisions_created_at" json:"created_at"`

	// Relations
	Quote *Quote `gorm:"foreignKey:QuoteID;references:ID" json:"quote,omitempty"`
}

// TableName returns the table name for the model
func (QuoteRevision) TableName() string {
	return "quote_revisions"
}

// BeforeCreate is called before creating a new record
func (r *QuoteRevision) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	return nil
}

// QuoteRevisionFilter is used by repositories to narrow revision queries
type QuoteRevisionFilter struct {
	UUID    *uuid.UUID    `json:"uuid,omitempty"`
	QuoteID *uint         `json:"quote_id,omitempty"`
	Kind    *RevisionKind `json:"kind,omitempty"`
}

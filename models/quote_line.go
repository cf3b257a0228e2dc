package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kajiya-works/kajiya/utils"
	"gorm.io/gorm"
)

// LeadTier is one of the three promised-delivery tiers offered per line
type LeadTier string

const (
	LeadTierEconomy   LeadTier = "economy"
	LeadTierStandard  LeadTier = "standard"
	LeadTierExpedited LeadTier = "expedited"
)

func (t LeadTier) String() string {
	return string(t)
}

// Valid checks if the tier is one of the enumerated values
func (t LeadTier) Valid() bool {
	switch t {
	case LeadTierEconomy, LeadTierStandard, LeadTierExpedited:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for LeadTier
func (t *LeadTier) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = LeadTier(v)
	case []byte:
		*t = LeadTier(string(v))
	default:
		return fmt.Errorf("cannot scan %T into LeadTier", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for LeadTier
func (t LeadTier) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid LeadTier: %s", t)
	}
	return string(t), nil
}

// Geometry holds the CAD-extracted measurements for a part. Extraction is
// performed by an external analysis service; this is the shape it hands back.
type Geometry struct {
	VolumeMm3            float64 `json:"volume_mm3"`
	SurfaceAreaMm2       float64 `json:"surface_area_mm2"`
	BBoxXMm              float64 `json:"bbox_x_mm"`
	BBoxYMm              float64 `json:"bbox_y_mm"`
	BBoxZMm              float64 `json:"bbox_z_mm"`
	MachiningTimeMinutes float64 `json:"machining_time_minutes"`
	Complexity           string  `json:"complexity"` // simple, moderate, complex
}

// Value implements the driver.Valuer interface for Geometry
func (g Geometry) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implements the sql.Scanner interface for Geometry
func (g *Geometry) Scan(value any) error {
	if value == nil {
		*g = Geometry{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Geometry", value)
	}

	return json.Unmarshal(bytes, g)
}

// PricingSnapshot is the immutable per-unit cost decomposition attached to a
// line when it was last priced. A reprice replaces the whole snapshot.
type PricingSnapshot struct {
	MaterialCost        float64   `json:"material_cost"`
	MachiningCost       float64   `json:"machining_cost"`
	SetupCost           float64   `json:"setup_cost"`
	FinishCost          float64   `json:"finish_cost"`
	ToolingCost         float64   `json:"tooling_cost"`
	InspectionCost      float64   `json:"inspection_cost"`
	OverheadCost        float64   `json:"overhead_cost"`
	MarginCost          float64   `json:"margin_cost"`
	Subtotal            float64   `json:"subtotal"`
	QuantityDiscount    float64   `json:"quantity_discount"`
	ToleranceUpcharge   float64   `json:"tolerance_upcharge"`
	UnitPrice           float64   `json:"unit_price"`
	TotalPrice          float64   `json:"total_price"`
	LeadTimeDays        int       `json:"lead_time_days"`
	RequiresManualQuote bool      `json:"requires_manual_quote"`
	ManualQuoteReason   string    `json:"manual_quote_reason,omitempty"`
	PricedAt            time.Time `json:"priced_at"`
}

// Value implements the driver.Valuer interface for PricingSnapshot
func (p PricingSnapshot) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for PricingSnapshot
func (p *PricingSnapshot) Scan(value any) error {
	if value == nil {
		*p = PricingSnapshot{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into PricingSnapshot", value)
	}

	return json.Unmarshal(bytes, p)
}

// QuoteLine represents one configured manufacturable part inside a quote.
// Lines are exclusively owned by their quote and die with it; the uploaded
// CAD file itself lives in external storage and is only referenced by key.
type QuoteLine struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UUID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_quote_lines_uuid" json:"uuid"`
	QuoteID uint      `gorm:"not null;index:idx_quote_lines_quote_id" json:"quote_id"`

	PartName string `gorm:"size:255;not null" json:"part_name"`
	FileKey  string `gorm:"size:512" json:"file_key,omitempty"`

	Process   string `gorm:"size:64;not null" json:"process"`
	Material  string `gorm:"size:64;not null" json:"material"`
	Finish    string `gorm:"size:64;not null;default:'as-machined'" json:"finish"`
	Tolerance string `gorm:"size:32;not null;default:'standard'" json:"tolerance"`
	Quantity  int    `gorm:"not null" json:"quantity"`

	SelectedTier LeadTier `gorm:"type:lead_tier;not null;default:'standard'" json:"selected_tier"`

	Geometry Geometry         `gorm:"type:jsonb;not null" json:"geometry"`
	Pricing  *PricingSnapshot `gorm:"type:jsonb" json:"pricing,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Quote *Quote `gorm:"foreignKey:QuoteID;references:ID" json:"quote,omitempty"`
}

// TableName returns the table name for the model
func (QuoteLine) TableName() string {
	return "quote_lines"
}

// BeforeCreate is called before creating a new record
func (l *QuoteLine) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == uuid.Nil {
		l.UUID = uuid.New()
	}
	if l.SelectedTier == "" {
		l.SelectedTier = LeadTierStandard
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	return nil
}

// QuoteLineFilter is used by repositories to narrow line queries
type QuoteLineFilter struct {
	UUID    *uuid.UUID `json:"uuid,omitempty"`
	QuoteID *uint      `json:"quote_id,omitempty"`
	Process *string    `json:"process,omitempty"`
}

package dto

import (
	"time"

	"github.com/kajiya-works/kajiya/models"
)

// GeometryDTO carries CAD-extracted part measurements in requests
type GeometryDTO struct {
	VolumeMm3            float64 `json:"volume_mm3" validate:"gt=0"`
	SurfaceAreaMm2       float64 `json:"surface_area_mm2" validate:"gt=0"`
	BBoxXMm              float64 `json:"bbox_x_mm" validate:"gt=0"`
	BBoxYMm              float64 `json:"bbox_y_mm" validate:"gt=0"`
	BBoxZMm              float64 `json:"bbox_z_mm" validate:"gt=0"`
	MachiningTimeMinutes float64 `json:"machining_time_minutes" validate:"gt=0"`
	Complexity           string  `json:"complexity" validate:"required,oneof=simple moderate complex"`
}

// ToModel converts the DTO into the persistence shape
func (g GeometryDTO) ToModel() models.Geometry {
	return models.Geometry{
		VolumeMm3:            g.VolumeMm3,
		SurfaceAreaMm2:       g.SurfaceAreaMm2,
		BBoxXMm:              g.BBoxXMm,
		BBoxYMm:              g.BBoxYMm,
		BBoxZMm:              g.BBoxZMm,
		MachiningTimeMinutes: g.MachiningTimeMinutes,
		Complexity:           g.Complexity,
	}
}

// CreateQuoteRequest represents the request to create a new quote
type CreateQuoteRequest struct {
	CustomerID uint     `json:"-"`
	Tags       []string `json:"tags,omitempty" validate:"omitempty,max=16,dive,max=64"`
}

// CreateQuoteResponse represents the response to create a new quote
type CreateQuoteResponse struct {
	Message   string `json:"message"`
	ID        uint   `json:"id"`
	UUID      string `json:"uuid"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// GetQuoteRequest represents the request to fetch a quote
type GetQuoteRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// QuoteLineDTO represents one part line in quote responses
type QuoteLineDTO struct {
	UUID         string                  `json:"uuid"`
	PartName     string                  `json:"part_name"`
	FileKey      string                  `json:"file_key,omitempty"`
	Process      string                  `json:"process"`
	Material     string                  `json:"material"`
	Finish       string                  `json:"finish"`
	Tolerance    string                  `json:"tolerance"`
	Quantity     int                     `json:"quantity"`
	SelectedTier string                  `json:"selected_tier"`
	Geometry     models.Geometry         `json:"geometry"`
	Pricing      *models.PricingSnapshot `json:"pricing,omitempty"`
}

// ExpirationBannerDTO is the recomputed expiration display state
type ExpirationBannerDTO struct {
	State      string `json:"state"`
	Message    string `json:"message,omitempty"`
	DaysLeft   int    `json:"days_left"`
	HoursLeft  int    `json:"hours_left"`
	CanExtend  bool   `json:"can_extend"`
	CanReprice bool   `json:"can_reprice"`
}

// GetQuoteResponse represents a full quote in responses
type GetQuoteResponse struct {
	UUID       string               `json:"uuid"`
	Status     string               `json:"status"`
	Currency   string               `json:"currency"`
	Subtotal   float64              `json:"subtotal"`
	Version    int                  `json:"version"`
	Tags       []string             `json:"tags,omitempty"`
	ExpiresAt  *time.Time           `json:"expires_at,omitempty"`
	RepricedAt *time.Time           `json:"repriced_at,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  *time.Time           `json:"updated_at,omitempty"`
	Lines      []QuoteLineDTO       `json:"lines"`
	Banner     *ExpirationBannerDTO `json:"banner,omitempty"`
}

// ListQuotesRequest represents the request to list quotes of a customer
type ListQuotesRequest struct {
	CustomerID uint    `json:"-"`
	Status     *string `json:"status,omitempty" validate:"omitempty,oneof=draft analyzing priced needs_review reviewed sent accepted expired abandoned"`
	Page       int     `json:"page" validate:"omitempty,min=1"`
	PageSize   int     `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListQuotesResponse represents the paginated quote list
type ListQuotesResponse struct {
	Message  string             `json:"message"`
	Items    []GetQuoteResponse `json:"items"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// AddQuoteLineRequest represents the request to add a part line to a quote
type AddQuoteLineRequest struct {
	QuoteUUID  string      `json:"-"`
	CustomerID uint        `json:"-"`
	PartName   string      `json:"part_name" validate:"required,max=255"`
	FileKey    string      `json:"file_key,omitempty" validate:"omitempty,max=512"`
	Process    string      `json:"process" validate:"required"`
	Material   string      `json:"material" validate:"required"`
	Finish     string      `json:"finish,omitempty"`
	Tolerance  string      `json:"tolerance,omitempty" validate:"omitempty,oneof=standard precision tight"`
	Quantity   int         `json:"quantity" validate:"required,gt=0"`
	Geometry   GeometryDTO `json:"geometry" validate:"required"`
}

// AddQuoteLineResponse represents the response after adding a line
type AddQuoteLineResponse struct {
	Message  string       `json:"message"`
	Line     QuoteLineDTO `json:"line"`
	Options  []LeadOption `json:"options"`
	Subtotal float64      `json:"subtotal"`
}

// UpdateQuoteLineRequest represents a partial update to an existing line
type UpdateQuoteLineRequest struct {
	QuoteUUID  string       `json:"-"`
	LineUUID   string       `json:"-"`
	CustomerID uint         `json:"-"`
	Material   *string      `json:"material,omitempty"`
	Finish     *string      `json:"finish,omitempty"`
	Tolerance  *string      `json:"tolerance,omitempty" validate:"omitempty,oneof=standard precision tight"`
	Quantity   *int         `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Geometry   *GeometryDTO `json:"geometry,omitempty"`
}

// UpdateQuoteLineResponse represents the response after a line update
type UpdateQuoteLineResponse struct {
	Message  string       `json:"message"`
	Line     QuoteLineDTO `json:"line"`
	Options  []LeadOption `json:"options"`
	Subtotal float64      `json:"subtotal"`
}

// RemoveQuoteLineRequest represents the request to remove a line
type RemoveQuoteLineRequest struct {
	QuoteUUID  string `json:"-"`
	LineUUID   string `json:"-"`
	CustomerID uint   `json:"-"`
}

// RemoveQuoteLineResponse represents the response after removing a line
type RemoveQuoteLineResponse struct {
	Message  string  `json:"message"`
	Subtotal float64 `json:"subtotal"`
}

// LeadOption is one priced delivery choice exposed to clients
type LeadOption struct {
	Tier           string  `json:"tier"`
	Badge          string  `json:"badge"`
	LeadTimeDays   int     `json:"lead_time_days"`
	UnitPrice      float64 `json:"unit_price"`
	MarketingPrice float64 `json:"marketing_price"`
	Savings        float64 `json:"savings"`
}

// GetLeadOptionsRequest represents the request to price all tiers of a line
type GetLeadOptionsRequest struct {
	QuoteUUID  string `json:"-"`
	LineUUID   string `json:"-"`
	CustomerID uint   `json:"-"`
}

// GetLeadOptionsResponse represents the priced tiers of a line
type GetLeadOptionsResponse struct {
	Message string       `json:"message"`
	Options []LeadOption `json:"options"`
}

// SelectLeadOptionRequest represents the request to pin a line to a tier
type SelectLeadOptionRequest struct {
	QuoteUUID  string `json:"-"`
	LineUUID   string `json:"-"`
	CustomerID uint   `json:"-"`
	Tier       string `json:"tier" validate:"required,oneof=economy standard expedited"`
}

// SelectLeadOptionResponse represents the response after tier selection
type SelectLeadOptionResponse struct {
	Message  string       `json:"message"`
	Line     QuoteLineDTO `json:"line"`
	Subtotal float64      `json:"subtotal"`
}

// SendQuoteRequest represents the request to finalize and send a quote
type SendQuoteRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// SendQuoteResponse represents the response after sending a quote
type SendQuoteResponse struct {
	Message   string     `json:"message"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AcceptQuoteRequest represents the request to accept a sent quote
type AcceptQuoteRequest struct {
	UUID       string `json:"-"`
	CustomerID uint   `json:"-"`
}

// AcceptQuoteResponse represents the response after accepting a quote
type AcceptQuoteResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

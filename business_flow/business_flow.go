// Package businessflow contains the business logic for the quoting platform.
package businessflow

import (
	"time"

	"github.com/kajiya-works/kajiya/app/dto"
	"github.com/kajiya-works/kajiya/models"
)

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceInfo: make(map[string]string),
		Additional: make(map[string]string),
	}
}

// AddDeviceInfo adds device information to the metadata
func (cm *ClientMetadata) AddDeviceInfo(key, value string) {
	if cm.DeviceInfo == nil {
		cm.DeviceInfo = make(map[string]string)
	}
	cm.DeviceInfo[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// ToQuoteLineDTO converts a line model into its response shape
func ToQuoteLineDTO(line models.QuoteLine) dto.QuoteLineDTO {
	return dto.QuoteLineDTO{
		UUID:         line.UUID.String(),
		PartName:     line.PartName,
		FileKey:      line.FileKey,
		Process:      line.Process,
		Material:     line.Material,
		Finish:       line.Finish,
		Tolerance:    line.Tolerance,
		Quantity:     line.Quantity,
		SelectedTier: line.SelectedTier.String(),
		Geometry:     line.Geometry,
		Pricing:      line.Pricing,
	}
}

// ToQuoteDTO converts a quote model (with preloaded lines) into its response shape
func ToQuoteDTO(quote models.Quote) dto.GetQuoteResponse {
	lines := make([]dto.QuoteLineDTO, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		lines = append(lines, ToQuoteLineDTO(line))
	}

	return dto.GetQuoteResponse{
		UUID:       quote.UUID.String(),
		Status:     quote.Status.String(),
		Currency:   quote.Currency,
		Subtotal:   quote.Subtotal,
		Version:    quote.Version,
		Tags:       quote.Tags,
		ExpiresAt:  quote.ExpiresAt,
		RepricedAt: quote.RepricedAt,
		CreatedAt:  quote.CreatedAt,
		UpdatedAt:  quote.UpdatedAt,
		Lines:      lines,
	}
}

// ToRevisionDTO converts a revision model into its response shape
func ToRevisionDTO(revision models.QuoteRevision) dto.RevisionDTO {
	return dto.RevisionDTO{
		UUID:          revision.UUID.String(),
		Kind:          revision.Kind.String(),
		FromVersion:   revision.FromVersion,
		ToVersion:     revision.ToVersion,
		ChangedFields: revision.ChangedFields,
		OldSubtotal:   revision.OldSubtotal,
		NewSubtotal:   revision.NewSubtotal,
		OldExpiresAt:  revision.OldExpires,
		NewExpiresAt:  revision.NewExpires,
		ActorType:     revision.ActorType,
		CreatedAt:     revision.CreatedAt,
	}
}

// normalizePagination applies the default page and page size
func normalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func formatRFC3339(t time.Time) string {
	return t.Format(time.RFC3339)
}

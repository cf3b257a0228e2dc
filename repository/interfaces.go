// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kajiya-works/kajiya/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// ErrVersionConflict is returned by compare-and-swap updates when the stored
// version no longer matches the caller's expectation
var ErrVersionConflict = errors.New("version conflict on optimistic update")

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// QuoteRepository defines operations for quotes
type QuoteRepository interface {
	Repository[models.Quote, models.QuoteFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Quote, error)
	ByCustomerID(ctx context.Context, customerID uint, limit, offset int) ([]*models.Quote, error)
	Update(ctx context.Context, quote models.Quote) error
	UpdateStatus(ctx context.Context, id uint, status models.QuoteStatus) error
	// UpdateWithVersion applies updates only if the stored version equals
	// expectedVersion, bumping the version when bump is true. Returns
	// ErrVersionConflict when another writer got there first.
	UpdateWithVersion(ctx context.Context, id uint, expectedVersion int, bump bool, updates map[string]any) (*models.Quote, error)
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]*models.Quote, error)
	ListStaleDrafts(ctx context.Context, updatedBefore time.Time, limit int) ([]*models.Quote, error)
}

// QuoteLineRepository defines operations for quote lines
type QuoteLineRepository interface {
	Repository[models.QuoteLine, models.QuoteLineFilter]
	ByUUID(ctx context.Context, uuid string) (*models.QuoteLine, error)
	ByQuoteID(ctx context.Context, quoteID uint) ([]*models.QuoteLine, error)
	Update(ctx context.Context, line models.QuoteLine) error
	Delete(ctx context.Context, id uint) error
	UpdatePricing(ctx context.Context, id uint, snapshot *models.PricingSnapshot) error
}

// QuoteRevisionRepository defines operations for quote revisions
type QuoteRevisionRepository interface {
	Repository[models.QuoteRevision, models.QuoteRevisionFilter]
	ListByQuote(ctx context.Context, quoteID uint, limit, offset int) ([]*models.QuoteRevision, error)
	ByUUID(ctx context.Context, uuid string) (*models.QuoteRevision, error)
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByEmail(ctx context.Context, email string) (*models.Customer, error)
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
	UpdateLastLogin(ctx context.Context, customerID uint, at time.Time) error
}

// CustomerSessionRepository defines operations for customer sessions
type CustomerSessionRepository interface {
	Repository[models.CustomerSession, models.CustomerSessionFilter]
	BySessionToken(ctx context.Context, token string) (*models.CustomerSession, error)
	ByRefreshToken(ctx context.Context, token string) (*models.CustomerSession, error)
	ExpireSession(ctx context.Context, sessionID uint) error
	ExpireAllCustomerSessions(ctx context.Context, customerID uint) error
	CleanupExpiredSessions(ctx context.Context) error
	GetLatestByCorrelationID(ctx context.Context, correlationID uuid.UUID) (*models.CustomerSession, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByCustomer(ctx context.Context, customerID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}

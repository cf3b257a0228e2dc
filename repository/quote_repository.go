package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/utils"
	"gorm.io/gorm"
)

// QuoteRepositoryImpl implements the QuoteRepository interface
type QuoteRepositoryImpl struct {
	*BaseRepository[models.Quote, models.QuoteFilter]
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &QuoteRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Quote, models.QuoteFilter](db),
	}
}

// ByID retrieves a quote by ID with its customer and lines preloaded
func (r *QuoteRepositoryImpl) ByID(ctx context.Context, id uint) (*models.Quote, error) {
	db := r.getDB(ctx)

	var quote models.Quote
	err := db.Preload("Customer").
		Preload("Lines").
		Last(&quote, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &quote, nil
}

// ByUUID retrieves a quote by UUID
func (r *QuoteRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Quote, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.QuoteFilter{UUID: &parsedUUID}
	quotes, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(quotes) == 0 {
		return nil, nil
	}

	return quotes[0], nil
}

// ByCustomerID retrieves quotes by customer ID with pagination
func (r *QuoteRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint, limit, offset int) ([]*models.Quote, error) {
	filter := models.QuoteFilter{CustomerID: &customerID}
	return r.ByFilter(ctx, filter, "created_at DESC", limit, offset)
}

// Update updates a quote
func (r *QuoteRepositoryImpl) Update(ctx context.Context, quote models.Quote) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	now := utils.UTCNow()
	quote.UpdatedAt = &now

	err = db.Save(&quote).Error
	if err != nil {
		return err
	}

	return nil
}

// UpdateStatus updates only the status of a quote
func (r *QuoteRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status models.QuoteStatus) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.Quote{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return err
	}

	return nil
}

// UpdateWithVersion applies updates guarded by a version compare-and-swap.
// The WHERE clause carries the expected version so two concurrent writers can
// never both succeed; the loser sees ErrVersionConflict.
func (r *QuoteRepositoryImpl) UpdateWithVersion(ctx context.Context, id uint, expectedVersion int, bump bool, updates map[string]any) (*models.Quote, error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	payload := make(map[string]any, len(updates)+2)
	for k, v := range updates {
		payload[k] = v
	}
	if bump {
		payload["version"] = expectedVersion + 1
	}
	payload["updated_at"] = utils.UTCNow()

	res := db.Model(&models.Quote{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(payload)
	if res.Error != nil {
		err = res.Error
		return nil, err
	}
	if res.RowsAffected == 0 {
		err = ErrVersionConflict
		return nil, err
	}

	var quote models.Quote
	err = db.Last(&quote, id).Error
	if err != nil {
		return nil, err
	}

	return &quote, nil
}

// ListExpiring retrieves non-terminal quotes whose expiry falls before the
// given time, oldest expiry first
func (r *QuoteRepositoryImpl) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*models.Quote, error) {
	db := r.getDB(ctx)

	var quotes []*models.Quote
	query := db.Where("expires_at IS NOT NULL AND expires_at < ?", before).
		Where("status IN ?", []models.QuoteStatus{
			models.QuoteStatusPriced,
			models.QuoteStatusNeedsReview,
			models.QuoteStatusReviewed,
			models.QuoteStatusSent,
		}).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&quotes).Error
	if err != nil {
		return nil, err
	}

	return quotes, nil
}

// ListStaleDrafts retrieves draft quotes untouched since the given time
func (r *QuoteRepositoryImpl) ListStaleDrafts(ctx context.Context, updatedBefore time.Time, limit int) ([]*models.Quote, error) {
	db := r.getDB(ctx)

	var quotes []*models.Quote
	query := db.Where("status = ?", models.QuoteStatusDraft).
		Where("COALESCE(updated_at, created_at) < ?", updatedBefore).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&quotes).Error
	if err != nil {
		return nil, err
	}

	return quotes, nil
}

// ByFilter retrieves quotes based on filter criteria
func (r *QuoteRepositoryImpl) ByFilter(ctx context.Context, filter models.QuoteFilter, orderBy string, limit, offset int) ([]*models.Quote, error) {
	db := r.getDB(ctx)

	var quotes []*models.Quote
	query := r.applyFilter(db, filter)

	// Apply ordering
	if orderBy != "" {
		query = query.Order(orderBy)
	}

	// Apply pagination
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	// Preload relationships
	query = query.Preload("Customer").
		Preload("Lines")

	err := query.Find(&quotes).Error
	if err != nil {
		return nil, err
	}

	return quotes, nil
}

// Count returns the number of quotes matching the filter
func (r *QuoteRepositoryImpl) Count(ctx context.Context, filter models.QuoteFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var quote models.Quote
	query := r.applyFilter(db.Model(&quote), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any quote matching the filter exists
func (r *QuoteRepositoryImpl) Exists(ctx context.Context, filter models.QuoteFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies filter criteria to a query
func (r *QuoteRepositoryImpl) applyFilter(query *gorm.DB, filter models.QuoteFilter) *gorm.DB {
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ExpiresBefore != nil {
		query = query.Where("expires_at < ?", *filter.ExpiresBefore)
	}
	if filter.ExpiresAfter != nil {
		query = query.Where("expires_at > ?", *filter.ExpiresAfter)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	if filter.UpdatedBefore != nil {
		query = query.Where("updated_at < ?", *filter.UpdatedBefore)
	}

	return query
}

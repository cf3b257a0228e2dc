package repository

import (
	"context"

	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/utils"
	"gorm.io/gorm"
)

// QuoteLineRepositoryImpl implements the QuoteLineRepository interface
type QuoteLineRepositoryImpl struct {
	*BaseRepository[models.QuoteLine, models.QuoteLineFilter]
}

// NewQuoteLineRepository creates a new quote line repository
func NewQuoteLineRepository(db *gorm.DB) QuoteLineRepository {
	return &QuoteLineRepositoryImpl{
		BaseRepository: NewBaseRepository[models.QuoteLine, models.QuoteLineFilter](db),
	}
}

// ByUUID retrieves a quote line by UUID
func (r *QuoteLineRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.QuoteLine, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.QuoteLineFilter{UUID: &parsedUUID}
	lines, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, nil
	}

	return lines[0], nil
}

// ByQuoteID retrieves all lines of a quote in insertion order
func (r *QuoteLineRepositoryImpl) ByQuoteID(ctx context.Context, quoteID uint) ([]*models.QuoteLine, error) {
	filter := models.QuoteLineFilter{QuoteID: &quoteID}
	return r.ByFilter(ctx, filter, "id ASC", 0, 0)
}

// Update updates a quote line
func (r *QuoteLineRepositoryImpl) Update(ctx context.Context, line models.QuoteLine) error {
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
	line.UpdatedAt = &now

	err = db.Save(&line).Error
	if err != nil {
		return err
	}

	return nil
}

// Delete removes a quote line
func (r *QuoteLineRepositoryImpl) Delete(ctx context.Context, id uint) error {
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

	err = db.Delete(&models.QuoteLine{}, id).Error
	if err != nil {
		return err
	}

	return nil
}

// UpdatePricing replaces the pricing snapshot of a line
func (r *QuoteLineRepositoryImpl) UpdatePricing(ctx context.Context, id uint, snapshot *models.PricingSnapshot) error {
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

	err = db.Model(&models.QuoteLine{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"pricing":    snapshot,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return err
	}

	return nil
}

// ByFilter retrieves quote lines based on filter criteria
func (r *QuoteLineRepositoryImpl) ByFilter(ctx context.Context, filter models.QuoteLineFilter, orderBy string, limit, offset int) ([]*models.QuoteLine, error) {
	db := r.getDB(ctx)

	var lines []*models.QuoteLine
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&lines).Error
	if err != nil {
		return nil, err
	}

	return lines, nil
}

// Count returns the number of quote lines matching the filter
func (r *QuoteLineRepositoryImpl) Count(ctx context.Context, filter models.QuoteLineFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var line models.QuoteLine
	query := r.applyFilter(db.Model(&line), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any quote line matching the filter exists
func (r *QuoteLineRepositoryImpl) Exists(ctx context.Context, filter models.QuoteLineFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies filter criteria to a query
func (r *QuoteLineRepositoryImpl) applyFilter(query *gorm.DB, filter models.QuoteLineFilter) *gorm.DB {
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.QuoteID != nil {
		query = query.Where("quote_id = ?", *filter.QuoteID)
	}
	if filter.Process != nil {
		query = query.Where("process = ?", *filter.Process)
	}

	return query
}

package repository

import (
	"context"

	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/utils"
	"gorm.io/gorm"
)

// QuoteRevisionRepositoryImpl implements the QuoteRevisionRepository interface
type QuoteRevisionRepositoryImpl struct {
	*BaseRepository[models.QuoteRevision, models.QuoteRevisionFilter]
}

// NewQuoteRevisionRepository creates a new quote revision repository
func NewQuoteRevisionRepository(db *gorm.DB) QuoteRevisionRepository {
	return &QuoteRevisionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.QuoteRevision, models.QuoteRevisionFilter](db),
	}
}

// ByUUID retrieves a revision by UUID
func (r *QuoteRevisionRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.QuoteRevision, error) {
	parsedUUID, err := utils.ParseUUID(uuid)
	if err != nil {
		return nil, err
	}

	filter := models.QuoteRevisionFilter{UUID: &parsedUUID}
	revisions, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}

	if len(revisions) == 0 {
		return nil, nil
	}

	return revisions[0], nil
}

// ListByQuote retrieves the revision timeline of a quote, newest first
func (r *QuoteRevisionRepositoryImpl) ListByQuote(ctx context.Context, quoteID uint, limit, offset int) ([]*models.QuoteRevision, error) {
	filter := models.QuoteRevisionFilter{QuoteID: &quoteID}
	return r.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, offset)
}

// ByFilter retrieves revisions based on filter criteria
func (r *QuoteRevisionRepositoryImpl) ByFilter(ctx context.Context, filter models.QuoteRevisionFilter, orderBy string, limit, offset int) ([]*models.QuoteRevision, error) {
	db := r.getDB(ctx)

	var revisions []*models.QuoteRevision
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

	err := query.Find(&revisions).Error
	if err != nil {
		return nil, err
	}

	return revisions, nil
}

// Count returns the number of revisions matching the filter
func (r *QuoteRevisionRepositoryImpl) Count(ctx context.Context, filter models.QuoteRevisionFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	var revision models.QuoteRevision
	query := r.applyFilter(db.Model(&revision), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any revision matching the filter exists
func (r *QuoteRevisionRepositoryImpl) Exists(ctx context.Context, filter models.QuoteRevisionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies filter criteria to a query
func (r *QuoteRevisionRepositoryImpl) applyFilter(query *gorm.DB, filter models.QuoteRevisionFilter) *gorm.DB {
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.QuoteID != nil {
		query = query.Where("quote_id = ?", *filter.QuoteID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}

	return query
}

package repository

import (
	"context"
	"time"

	"github.com/sortirkopi/bean-order-api/apperror"
	"github.com/sortirkopi/bean-order-api/models"
	"gorm.io/gorm"
)

// BatchFilter narrows ListBatches. A nil OrderIDs slice means every order;
// an empty non-nil slice matches nothing. Zero times are open bounds; To is
// exclusive.
type BatchFilter struct {
	OrderIDs []uint
	From     time.Time
	To       time.Time
}

// BatchRepository reads sorting batches written by the sorting subsystem
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository creates a new batch repository
func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// ListBatchesForOrder returns the batches linked to one order
func (r *BatchRepository) ListBatchesForOrder(ctx context.Context, orderID uint) ([]models.Batch, error) {
	return r.ListBatches(ctx, BatchFilter{OrderIDs: []uint{orderID}})
}

// ListBatches returns batches matching the filter, oldest first
func (r *BatchRepository) ListBatches(ctx context.Context, f BatchFilter) ([]models.Batch, error) {
	if f.OrderIDs != nil && len(f.OrderIDs) == 0 {
		return []models.Batch{}, nil
	}

	query := r.db.WithContext(ctx).Model(&models.Batch{})
	if f.OrderIDs != nil {
		query = query.Where("order_id IN ?", f.OrderIDs)
	}
	if !f.From.IsZero() {
		query = query.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("created_at < ?", f.To)
	}

	var batches []models.Batch
	if err := query.Order("created_at ASC").Order("id ASC").Find(&batches).Error; err != nil {
		return nil, apperror.Upstream("Failed to list batches", err)
	}
	return batches, nil
}

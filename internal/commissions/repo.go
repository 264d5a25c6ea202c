package commissions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
)

// Repository persists per-store commission records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateIfAbsent(ctx context.Context, record *models.CommissionRecord) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CommissionRecord, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.CommissionStatus) ([]models.CommissionRecord, error)
	UpdateStatusByOrder(ctx context.Context, orderID uuid.UUID, from, to enums.CommissionStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a commissions repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateIfAbsent makes redelivered confirmations a no-op without tripping
// the (order_id, store_id) unique index mid-transaction.
func (r *repository) CreateIfAbsent(ctx context.Context, record *models.CommissionRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "store_id"}},
			DoNothing: true,
		}).
		Create(record).Error
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CommissionRecord, error) {
	var records []models.CommissionRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.CommissionStatus) ([]models.CommissionRecord, error) {
	query := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("created_at DESC")
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var records []models.CommissionRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) UpdateStatusByOrder(ctx context.Context, orderID uuid.UUID, from, to enums.CommissionStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CommissionRecord{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Update("status", to)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

package drivers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
)

// Repository reads and writes driver availability rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, status *models.DriverStatus) error
	Find(ctx context.Context, driverID uuid.UUID) (*models.DriverStatus, error)
	ListOnline(ctx context.Context) ([]models.DriverStatus, error)
	HasActiveDelivery(ctx context.Context, driverID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a drivers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Upsert(ctx context.Context, status *models.DriverStatus) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "driver_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_online", "last_location", "updated_at"}),
		}).
		Create(status).Error
}

func (r *repository) Find(ctx context.Context, driverID uuid.UUID) (*models.DriverStatus, error) {
	var status models.DriverStatus
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		First(&status).Error
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (r *repository) ListOnline(ctx context.Context) ([]models.DriverStatus, error) {
	var statuses []models.DriverStatus
	err := r.db.WithContext(ctx).
		Where("is_online = ?", true).
		Order("updated_at DESC").
		Find(&statuses).Error
	if err != nil {
		return nil, err
	}
	return statuses, nil
}

// HasActiveDelivery reports whether the driver already carries a leg that has
// not reached a terminal delivery status.
func (r *repository) HasActiveDelivery(ctx context.Context, driverID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("driver_id = ? AND status NOT IN ?", driverID, []enums.DeliveryStatus{
			enums.DeliveryStatusDelivered,
			enums.DeliveryStatusFailed,
		}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
)

// Repository persists delivery legs and their append-only tracking entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Delivery, error)
	UpdateStatusGuarded(ctx context.Context, deliveryID uuid.UUID, from, to enums.DeliveryStatus) (bool, error)
	SetActualDeliveryTime(ctx context.Context, deliveryID uuid.UUID, at time.Time) error
	AppendTrackingEntry(ctx context.Context, entry *models.DeliveryTrackingEntry) error
	TrackingEntries(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryTrackingEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("assigned_at DESC").
		Find(&deliveries).Error
	if err != nil {
		return nil, err
	}
	return deliveries, nil
}

// UpdateStatusGuarded flips the leg only when it still holds the expected
// status, mirroring the order-side guard.
func (r *repository) UpdateStatusGuarded(ctx context.Context, deliveryID uuid.UUID, from, to enums.DeliveryStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND status = ?", deliveryID, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) SetActualDeliveryTime(ctx context.Context, deliveryID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ?", deliveryID).
		Update("actual_delivery_time", at).Error
}

func (r *repository) AppendTrackingEntry(ctx context.Context, entry *models.DeliveryTrackingEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) TrackingEntries(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryTrackingEntry, error) {
	var entries []models.DeliveryTrackingEntry
	err := r.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

package inventory

import (
	"context"
	"time"

	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/pkg/db/models"
)

// ReservationRequest asks to hold qty units of one product at one store.
type ReservationRequest struct {
	ProductID uuid.UUID
	StoreID   uuid.UUID
	Qty       int
}

// ReservationResult reports the outcome per requested line. AvailableQty
// carries the current stock level when the hold fails, so callers can show
// the shopper what is actually left.
type ReservationResult struct {
	ProductID    uuid.UUID
	StoreID      uuid.UUID
	Qty          int
	Reserved     bool
	Reason       string
	AvailableQty int
}

// Service moves stock between the available and reserved buckets. Every
// mutation is a guarded single-statement UPDATE; counts never go negative
// regardless of concurrent callers.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []ReservationRequest) ([]ReservationResult, error)
	Deduct(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error)
}

type service struct{}

// NewService returns the inventory ledger service.
func NewService() Service {
	return service{}
}

// Reserve attempts to hold stock for every request. A failed line does not
// roll back earlier lines; the caller decides whether partial reservation
// aborts the enclosing transaction.
func (service) Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []ReservationRequest) ([]ReservationResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory reserve")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	results := make([]ReservationResult, 0, len(requests))
	for _, req := range requests {
		result := ReservationResult{ProductID: req.ProductID, StoreID: req.StoreID, Qty: req.Qty}

		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}
		if req.ProductID == uuid.Nil || req.StoreID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product and store ids required")
		}

		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_records
			SET available_qty = available_qty - ?,
				reserved_qty = reserved_qty + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ? AND store_id = ? AND available_qty >= ?
		`, req.Qty, req.Qty, req.ProductID, req.StoreID, req.Qty)
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
		}
		if res.RowsAffected == 0 {
			result.Reason = "insufficient stock"
			var available int
			err := tx.WithContext(ctx).Model(&models.InventoryRecord{}).
				Where("product_id = ? AND store_id = ?", req.ProductID, req.StoreID).
				Select("available_qty").
				Scan(&available).Error
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read available stock")
			}
			result.AvailableQty = available
			results = append(results, result)
			continue
		}

		reservation := models.InventoryReservation{
			OrderID:   orderID,
			ProductID: req.ProductID,
			StoreID:   req.StoreID,
			Qty:       req.Qty,
		}
		if err := tx.WithContext(ctx).Create(&reservation).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation")
		}

		result.Reserved = true
		results = append(results, result)
	}
	return results, nil
}

// Deduct finalizes the order's reservations after payment: reserved stock
// leaves the ledger entirely. Already-deducted rows are skipped, so webhook
// redelivery is harmless.
func (service) Deduct(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory deduct")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	reservations, err := openReservations(ctx, tx, orderID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, reservation := range reservations {
		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_records
			SET reserved_qty = reserved_qty - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ? AND store_id = ? AND reserved_qty >= ?
		`, reservation.Qty, reservation.ProductID, reservation.StoreID, reservation.Qty)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "deduct inventory")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved stock missing for deduction")
		}

		if err := tx.WithContext(ctx).Model(&models.InventoryReservation{}).
			Where("id = ?", reservation.ID).
			Update("deducted_at", now).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark reservation deducted")
		}
	}
	return nil
}

// Release returns the order's still-held stock to the available bucket and
// reports how many lines were credited. Released and deducted rows are
// skipped, so a second release is a no-op.
func (service) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error) {
	if tx == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for inventory release")
	}
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	reservations, err := openReservations(ctx, tx, orderID)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	released := 0
	for _, reservation := range reservations {
		res := tx.WithContext(ctx).Exec(`
			UPDATE inventory_records
			SET available_qty = available_qty + ?,
				reserved_qty = reserved_qty - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE product_id = ? AND store_id = ? AND reserved_qty >= ?
		`, reservation.Qty, reservation.Qty, reservation.ProductID, reservation.StoreID, reservation.Qty)
		if res.Error != nil {
			return released, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release inventory")
		}
		if res.RowsAffected == 0 {
			return released, pkgerrors.New(pkgerrors.CodeStateConflict, "reserved stock missing for release")
		}

		if err := tx.WithContext(ctx).Model(&models.InventoryReservation{}).
			Where("id = ?", reservation.ID).
			Update("released_at", now).Error; err != nil {
			return released, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark reservation released")
		}
		released++
	}
	return released, nil
}

func openReservations(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) ([]models.InventoryReservation, error) {
	var reservations []models.InventoryReservation
	err := tx.WithContext(ctx).
		Where("order_id = ? AND deducted_at IS NULL AND released_at IS NULL", orderID).
		Order("created_at ASC").
		Find(&reservations).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservations")
	}
	return reservations, nil
}

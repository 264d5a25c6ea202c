package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryReservation records stock held for an order line so release is
// idempotent per order: a released row never credits stock twice.
type InventoryReservation struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_inventory_reservations_order_product"`
	ProductID  uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_reservations_order_product"`
	StoreID    uuid.UUID  `gorm:"column:store_id;type:uuid;not null"`
	Qty        int        `gorm:"column:qty;not null"`
	DeductedAt *time.Time `gorm:"column:deducted_at"`
	ReleasedAt *time.Time `gorm:"column:released_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

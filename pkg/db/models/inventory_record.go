package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord tracks available/reserved counts per (product, store).
// Mutated only through guarded SQL updates, never read-modify-write.
type InventoryRecord struct {
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	StoreID      uuid.UUID `gorm:"column:store_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

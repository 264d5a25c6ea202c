package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/glowcart/glowcart-backend/pkg/enums"
)

// CommissionRecord is the marketplace's cut of one store's share of an
// order. The rate is snapshotted at order-confirmation time so later rate
// changes never reprice settled orders.
type CommissionRecord struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_commission_records_order_store"`
	StoreID         uuid.UUID              `gorm:"column:store_id;type:uuid;not null;uniqueIndex:ux_commission_records_order_store"`
	Rate            decimal.Decimal        `gorm:"column:rate;type:numeric(6,4);not null"`
	StoreShareCents int                    `gorm:"column:store_share_cents;not null"`
	CommissionCents int                    `gorm:"column:commission_cents;not null"`
	Status          enums.CommissionStatus `gorm:"column:status;not null;default:'pending'"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

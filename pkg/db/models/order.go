package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowcart/glowcart-backend/pkg/enums"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

// Order represents one customer checkout, possibly spanning multiple stores
// through its items. Rows are never deleted; terminal states are retained.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     string              `gorm:"column:order_number;uniqueIndex;not null"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	SubtotalCents   int                 `gorm:"column:subtotal_cents;not null"`
	TaxCents        int                 `gorm:"column:tax_cents;not null;default:0"`
	ShippingCents   int                 `gorm:"column:shipping_cents;not null;default:0"`
	TipCents        int                 `gorm:"column:tip_cents;not null;default:0"`
	TotalCents      int                 `gorm:"column:total_cents;not null"`
	Currency        string              `gorm:"column:currency;not null;default:'USD'"`
	PaymentIntentID *string             `gorm:"column:payment_intent_id;uniqueIndex"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`
	Status          enums.OrderStatus   `gorm:"column:status;not null;default:'created'"`
	PaymentMethod   string              `gorm:"column:payment_method;not null;default:'card'"`
	ShippingAddress *types.Address      `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Delivery        *Delivery           `gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

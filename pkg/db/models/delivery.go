package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowcart/glowcart-backend/pkg/enums"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

// Delivery is one physical fulfillment leg. The unique order_id index is the
// guard against two concurrent assignment attempts creating two legs.
type Delivery struct {
	ID                    uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID               uuid.UUID               `gorm:"column:order_id;type:uuid;uniqueIndex;not null"`
	DriverID              uuid.UUID               `gorm:"column:driver_id;type:uuid;not null;index"`
	Status                enums.DeliveryStatus    `gorm:"column:status;not null;default:'assigned'"`
	PickupAddress         *types.Address          `gorm:"column:pickup_address;type:jsonb;serializer:json"`
	DeliveryAddress       *types.Address          `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	AssignedAt            time.Time               `gorm:"column:assigned_at;autoCreateTime"`
	EstimatedDeliveryTime *time.Time              `gorm:"column:estimated_delivery_time"`
	ActualDeliveryTime    *time.Time              `gorm:"column:actual_delivery_time"`
	TrackingEntries       []DeliveryTrackingEntry `gorm:"foreignKey:DeliveryID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

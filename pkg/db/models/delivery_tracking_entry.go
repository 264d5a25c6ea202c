package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowcart/glowcart-backend/pkg/enums"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

// DeliveryTrackingEntry is the append-only status trail for a delivery.
// Rows are never updated or deleted.
type DeliveryTrackingEntry struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryID uuid.UUID            `gorm:"column:delivery_id;type:uuid;not null;index"`
	Status     enums.DeliveryStatus `gorm:"column:status;not null"`
	Location   *types.GeoPoint      `gorm:"column:location;type:jsonb;serializer:json"`
	Notes      *string              `gorm:"column:notes"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

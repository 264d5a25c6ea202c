package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowcart/glowcart-backend/pkg/types"
)

// DriverStatus is the driver's availability heartbeat. One writer per row
// (the driver themself), so last-write-wins semantics are sufficient.
type DriverStatus struct {
	DriverID     uuid.UUID       `gorm:"column:driver_id;type:uuid;primaryKey"`
	IsOnline     bool            `gorm:"column:is_online;not null;default:false;index"`
	LastLocation *types.GeoPoint `gorm:"column:last_location;type:jsonb;serializer:json"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

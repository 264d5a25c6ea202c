package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowcart/glowcart-backend/pkg/enums"
)

// OrderStatusHistoryEntry is the append-only record of every order status
// transition, including forced admin overrides.
type OrderStatusHistoryEntry struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	OldStatus enums.OrderStatus `gorm:"column:old_status;not null"`
	NewStatus enums.OrderStatus `gorm:"column:new_status;not null"`
	ChangedBy uuid.UUID         `gorm:"column:changed_by;type:uuid;not null"`
	Reason    *string           `gorm:"column:reason"`
	Automated bool              `gorm:"column:automated;not null;default:false"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

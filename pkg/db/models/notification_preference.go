package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPreference holds a user's per-channel opt-in flags. Absent
// rows default to everything enabled.
type NotificationPreference struct {
	UserID              uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	EmailEnabled        bool      `gorm:"column:email_enabled;not null;default:true"`
	PushEnabled         bool      `gorm:"column:push_enabled;not null;default:true"`
	InAppEnabled        bool      `gorm:"column:in_app_enabled;not null;default:true"`
	OrderUpdatesEnabled bool      `gorm:"column:order_updates_enabled;not null;default:true"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

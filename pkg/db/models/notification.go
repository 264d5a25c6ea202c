package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/glowcart/glowcart-backend/pkg/enums"
)

// Notification stores one channel-tagged notification payload for a user.
// The dispatcher writes one row per enabled channel.
type Notification struct {
	ID        uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Channel   enums.NotificationChannel `gorm:"not null"`
	Title     string                    `gorm:"type:text;not null"`
	Message   string                    `gorm:"type:text;not null"`
	OrderID   *uuid.UUID                `gorm:"type:uuid"`
	ReadAt    *time.Time                `gorm:"type:timestamptz"`
	CreatedAt time.Time                 `gorm:"type:timestamptz;default:now()"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment records one verified provider transaction. The unique provider
// reference is the idempotency key for retried verifications and webhook
// redelivery.
type Payment struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderReference string    `gorm:"column:provider_reference;uniqueIndex;not null"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents       int       `gorm:"column:amount_cents;not null"`
	Currency          string    `gorm:"column:currency;not null;default:'USD'"`
	ProviderStatus    string    `gorm:"column:provider_status;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

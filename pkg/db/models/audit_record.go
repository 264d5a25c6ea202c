package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is the append-only compliance trail. No update or delete path
// exists anywhere in the codebase.
type AuditRecord struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EntityType string          `gorm:"column:entity_type;not null;index:ix_audit_records_entity"`
	EntityID   uuid.UUID       `gorm:"column:entity_id;type:uuid;not null;index:ix_audit_records_entity"`
	Action     string          `gorm:"column:action;not null"`
	ActorID    uuid.UUID       `gorm:"column:actor_id;type:uuid;not null"`
	Details    json.RawMessage `gorm:"column:details;type:jsonb"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

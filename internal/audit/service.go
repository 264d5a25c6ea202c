package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entity types recorded in the audit trail.
const (
	EntityOrder    = "order"
	EntityDelivery = "delivery"
	EntityPayment  = "payment"
)

// Well-known audit actions.
const (
	ActionOrderCreated      = "order_created"
	ActionStatusChanged     = "status_changed"
	ActionForcedTransition  = "forced_transition"
	ActionPaymentVerified   = "payment_verified"
	ActionDriverAssigned    = "driver_assigned"
	ActionDeliveryUpdated   = "delivery_updated"
	ActionInventoryReleased = "inventory_released"
)

// SystemActorID is the fixed identity stamped on records written by
// automated processes (webhooks, cron retries) rather than a user.
var SystemActorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Service records immutable audit entries. There is no update or delete.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Record(ctx context.Context, input RecordInput) (*models.AuditRecord, error)
	Trail(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditRecord, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data an audit record requires.
type RecordInput struct {
	EntityType string
	EntityID   uuid.UUID
	Action     string
	ActorID    uuid.UUID
	Details    any
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) Record(ctx context.Context, input RecordInput) (*models.AuditRecord, error) {
	if input.EntityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if input.EntityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}
	if input.Action == "" {
		return nil, fmt.Errorf("action is required")
	}
	if input.ActorID == uuid.Nil {
		return nil, fmt.Errorf("actor id is required")
	}

	var details json.RawMessage
	if input.Details != nil {
		encoded, err := json.Marshal(input.Details)
		if err != nil {
			return nil, fmt.Errorf("encode audit details: %w", err)
		}
		details = encoded
	}

	record := &models.AuditRecord{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Action:     input.Action,
		ActorID:    input.ActorID,
		Details:    details,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) Trail(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditRecord, error) {
	if entityType == "" {
		return nil, fmt.Errorf("entity type is required")
	}
	if entityID == uuid.Nil {
		return nil, fmt.Errorf("entity id is required")
	}
	return s.repo.ListByEntity(ctx, entityType, entityID)
}

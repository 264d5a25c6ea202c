package audit

import (
	"context"
	"testing"

	"github.com/glowcart/glowcart-backend/internal/testdb"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestRecordAndTrail(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := context.Background()
	orderID := uuid.New()
	actorID := uuid.New()

	first, err := svc.Record(ctx, RecordInput{
		EntityType: EntityOrder,
		EntityID:   orderID,
		Action:     ActionOrderCreated,
		ActorID:    actorID,
		Details:    map[string]any{"total_cents": 4340},
	})
	if err != nil {
		t.Fatalf("record first: %v", err)
	}
	if first.ID == uuid.Nil {
		t.Fatal("expected record to have an id")
	}

	if _, err := svc.Record(ctx, RecordInput{
		EntityType: EntityOrder,
		EntityID:   orderID,
		Action:     ActionStatusChanged,
		ActorID:    actorID,
	}); err != nil {
		t.Fatalf("record second: %v", err)
	}

	// A record for another entity must not leak into the trail.
	if _, err := svc.Record(ctx, RecordInput{
		EntityType: EntityDelivery,
		EntityID:   uuid.New(),
		Action:     ActionDeliveryUpdated,
		ActorID:    actorID,
	}); err != nil {
		t.Fatalf("record other entity: %v", err)
	}

	trail, err := svc.Trail(ctx, EntityOrder, orderID)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected 2 records, got %d", len(trail))
	}
	if trail[0].Action != ActionOrderCreated || trail[1].Action != ActionStatusChanged {
		t.Fatalf("unexpected trail order: %+v", trail)
	}
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Record(context.Background(), RecordInput{
		EntityType: EntityOrder,
		EntityID:   uuid.Nil,
		Action:     ActionOrderCreated,
		ActorID:    uuid.New(),
	}); err == nil {
		t.Fatal("expected error for missing entity id")
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testdb.New(t, "audit_records")
}

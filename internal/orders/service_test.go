package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/testdb"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx.WithContext(ctx))
	})
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := testdb.New(t, "orders", "order_items", "order_status_history_entries", "audit_records", "outbox_events", "deliveries")
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	auditSvc, err := audit.NewService(audit.NewRepository(db))
	require.NoError(t, err)

	svc, err := NewService(
		NewRepository(db),
		&gormTxRunner{db: db},
		outbox.NewService(outbox.NewRepository(db), logg),
		auditSvc,
		nil,
	)
	require.NoError(t, err)
	return svc, db
}

func seedOrder(t *testing.T, db *gorm.DB, customerID uuid.UUID, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   "GC-" + uuid.NewString()[:8],
		CustomerID:    customerID,
		SubtotalCents: 4000,
		TaxCents:      340,
		TotalCents:    4340,
		Status:        status,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func loadOrderStatus(t *testing.T, db *gorm.DB, id uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", id).Error)
	return order.Status
}

func TestTransitionHappyPath(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	customerID := uuid.New()
	storeOwnerID := uuid.New()
	order := seedOrder(t, db, customerID, enums.OrderStatusPaymentSuccess)

	updated, err := svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStatusMerchantAccepted,
		ActorID:   storeOwnerID,
		ActorRole: enums.RoleStoreOwner,
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusMerchantAccepted, updated.Status)
	require.Equal(t, enums.OrderStatusMerchantAccepted, loadOrderStatus(t, db, order.ID))

	entries, err := svc.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, enums.OrderStatusPaymentSuccess, entries[0].OldStatus)
	require.Equal(t, enums.OrderStatusMerchantAccepted, entries[0].NewStatus)
	require.Equal(t, storeOwnerID, entries[0].ChangedBy)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventOrderStateChanged, events[0].EventType)

	var records []models.AuditRecord
	require.NoError(t, db.Find(&records, "entity_id = ?", order.ID).Error)
	require.Len(t, records, 1)
	require.Equal(t, audit.ActionStatusChanged, records[0].Action)
}

func TestTransitionRejectsEveryIllegalPair(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	customerID := uuid.New()
	adminID := uuid.New()

	statuses := []enums.OrderStatus{
		enums.OrderStatusCreated,
		enums.OrderStatusPaymentPending,
		enums.OrderStatusPaymentSuccess,
		enums.OrderStatusMerchantAccepted,
		enums.OrderStatusWaitingForDriver,
		enums.OrderStatusDriverAssigned,
		enums.OrderStatusPickedUp,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
		enums.OrderStatusCancelled,
		enums.OrderStatusFailed,
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			if CanTransition(from, to) {
				continue
			}
			order := seedOrder(t, db, customerID, from)
			_, err := svc.Transition(ctx, TransitionInput{
				OrderID:   order.ID,
				Target:    to,
				ActorID:   adminID,
				ActorRole: enums.RoleAdmin,
			})
			require.Errorf(t, err, "%s -> %s should be rejected", from, to)
			require.Truef(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict),
				"%s -> %s: expected state conflict, got %v", from, to, err)
			require.Equal(t, from, loadOrderStatus(t, db, order.ID))
		}
	}
}

func TestFulfillmentLaneFailsOnlyAfterShipment(t *testing.T) {
	t.Parallel()

	require.False(t, CanTransition(enums.OrderStatusPending, enums.OrderStatusFailed))
	require.False(t, CanTransition(enums.OrderStatusConfirmed, enums.OrderStatusFailed))
	require.False(t, CanTransition(enums.OrderStatusProcessing, enums.OrderStatusFailed))
	require.True(t, CanTransition(enums.OrderStatusShipped, enums.OrderStatusFailed))
}

func TestTransitionRoleGating(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	customerID := uuid.New()

	cases := []struct {
		name   string
		from   enums.OrderStatus
		target enums.OrderStatus
		role   enums.ActorRole
	}{
		{"customer cannot accept", enums.OrderStatusPaymentSuccess, enums.OrderStatusMerchantAccepted, enums.RoleCustomer},
		{"driver cannot accept", enums.OrderStatusPaymentSuccess, enums.OrderStatusMerchantAccepted, enums.RoleDriver},
		{"customer cannot mark picked up", enums.OrderStatusDriverAssigned, enums.OrderStatusPickedUp, enums.RoleCustomer},
		{"store owner cannot mark delivered", enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered, enums.RoleStoreOwner},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			order := seedOrder(t, db, customerID, tc.from)
			_, err := svc.Transition(ctx, TransitionInput{
				OrderID:   order.ID,
				Target:    tc.target,
				ActorID:   uuid.New(),
				ActorRole: tc.role,
			})
			require.Error(t, err)
			require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
			require.Equal(t, tc.from, loadOrderStatus(t, db, order.ID))
		})
	}
}

func TestTransitionCancelOwnership(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusCreated)

	_, err := svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStatusCancelled,
		ActorID:   stranger,
		ActorRole: enums.RoleCustomer,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
	require.Equal(t, enums.OrderStatusCreated, loadOrderStatus(t, db, order.ID))

	updated, err := svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStatusCancelled,
		ActorID:   owner,
		ActorRole: enums.RoleCustomer,
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, updated.Status)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events, "aggregate_id = ?", order.ID).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventOrderCancelled, events[0].EventType)
}

func TestForceTransitionAdminOnly(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	customerID := uuid.New()
	order := seedOrder(t, db, customerID, enums.OrderStatusDelivered)

	_, err := svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStatusFailed,
		ActorID:   uuid.New(),
		ActorRole: enums.RoleStoreOwner,
		Force:     true,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	adminID := uuid.New()
	reason := "chargeback after delivery"
	updated, err := svc.Transition(ctx, TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStatusFailed,
		ActorID:   adminID,
		ActorRole: enums.RoleAdmin,
		Reason:    &reason,
		Force:     true,
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusFailed, updated.Status)

	var records []models.AuditRecord
	require.NoError(t, db.Find(&records, "entity_id = ?", order.ID).Error)
	require.Len(t, records, 1)
	require.Equal(t, audit.ActionForcedTransition, records[0].Action)
	require.Equal(t, adminID, records[0].ActorID)
}

func TestTransitionUnknownOrder(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.Transition(context.Background(), TransitionInput{
		OrderID:   uuid.New(),
		Target:    enums.OrderStatusPaymentPending,
		ActorID:   uuid.New(),
		ActorRole: enums.RoleSystem,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestGetScopesCustomerReads(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	order := seedOrder(t, db, owner, enums.OrderStatusCreated)

	_, err := svc.Get(ctx, GetInput{OrderID: order.ID, ActorID: uuid.New(), ActorRole: enums.RoleCustomer})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	found, err := svc.Get(ctx, GetInput{OrderID: order.ID, ActorID: owner, ActorRole: enums.RoleCustomer})
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)

	found, err = svc.Get(ctx, GetInput{OrderID: order.ID, ActorID: uuid.New(), ActorRole: enums.RoleAdmin})
	require.NoError(t, err)
	require.Equal(t, order.ID, found.ID)
}

package deliveries

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/notifications"
	"github.com/glowcart/glowcart-backend/internal/orders"
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
	return newTestServiceWith(t, nil)
}

func newTestServiceWith(t *testing.T, notifierSvc notifier) (Service, *gorm.DB) {
	t.Helper()
	db := testdb.New(t,
		"orders", "order_items", "order_status_history_entries",
		"audit_records", "outbox_events", "deliveries", "delivery_tracking_entries",
	)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	runner := &gormTxRunner{db: db}

	auditSvc, err := audit.NewService(audit.NewRepository(db))
	require.NoError(t, err)
	outboxSvc := outbox.NewService(outbox.NewRepository(db), logg)

	orderSvc, err := orders.NewService(orders.NewRepository(db), runner, outboxSvc, auditSvc, nil)
	require.NoError(t, err)

	svc, err := NewService(NewRepository(db), orderSvc, runner, outboxSvc, auditSvc, nil, notifierSvc, logg)
	require.NoError(t, err)
	return svc, db
}

type recordingNotifier struct {
	inputs []notifications.NotifyInput
}

func (r *recordingNotifier) Notify(_ context.Context, input notifications.NotifyInput) {
	r.inputs = append(r.inputs, input)
}

func seedLeg(t *testing.T, db *gorm.DB, driverID uuid.UUID, status enums.DeliveryStatus, orderStatus enums.OrderStatus) *models.Delivery {
	t.Helper()
	order := &models.Order{
		OrderNumber:   "GC-" + uuid.NewString()[:8],
		CustomerID:    uuid.New(),
		SubtotalCents: 4000,
		TotalCents:    4340,
		Status:        orderStatus,
	}
	require.NoError(t, db.Create(order).Error)

	delivery := &models.Delivery{
		OrderID:  order.ID,
		DriverID: driverID,
		Status:   status,
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

func TestUpdateStatusFullLifecycle(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	driverID := uuid.New()
	delivery := seedLeg(t, db, driverID, enums.DeliveryStatusAssigned, enums.OrderStatusDriverAssigned)

	steps := []struct {
		target      enums.DeliveryStatus
		orderStatus enums.OrderStatus
	}{
		{enums.DeliveryStatusPickedUp, enums.OrderStatusPickedUp},
		{enums.DeliveryStatusInTransit, enums.OrderStatusOutForDelivery},
		{enums.DeliveryStatusDelivered, enums.OrderStatusDelivered},
	}

	for _, step := range steps {
		updated, err := svc.UpdateStatus(ctx, UpdateStatusInput{
			DeliveryID: delivery.ID,
			Target:     step.target,
			ActorID:    driverID,
			ActorRole:  enums.RoleDriver,
		})
		require.NoError(t, err)
		require.Equal(t, step.target, updated.Status)

		var order models.Order
		require.NoError(t, db.First(&order, "id = ?", delivery.OrderID).Error)
		require.Equal(t, step.orderStatus, order.Status)
	}

	var reloaded models.Delivery
	require.NoError(t, db.First(&reloaded, "id = ?", delivery.ID).Error)
	require.NotNil(t, reloaded.ActualDeliveryTime)

	var entries []models.DeliveryTrackingEntry
	require.NoError(t, db.Order("created_at ASC").Find(&entries, "delivery_id = ?", delivery.ID).Error)
	require.Len(t, entries, 3)
	require.Equal(t, enums.DeliveryStatusDelivered, entries[2].Status)
}

func TestUpdateStatusNotifiesCustomer(t *testing.T) {
	t.Parallel()

	recorder := &recordingNotifier{}
	svc, db := newTestServiceWith(t, recorder)
	ctx := context.Background()
	driverID := uuid.New()
	delivery := seedLeg(t, db, driverID, enums.DeliveryStatusAssigned, enums.OrderStatusDriverAssigned)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", delivery.OrderID).Error)

	for _, target := range []enums.DeliveryStatus{
		enums.DeliveryStatusPickedUp,
		enums.DeliveryStatusInTransit,
		enums.DeliveryStatusDelivered,
	} {
		_, err := svc.UpdateStatus(ctx, UpdateStatusInput{
			DeliveryID: delivery.ID,
			Target:     target,
			ActorID:    driverID,
			ActorRole:  enums.RoleDriver,
		})
		require.NoError(t, err)
	}

	require.Len(t, recorder.inputs, 3)
	for _, input := range recorder.inputs {
		require.Equal(t, order.CustomerID, input.UserID)
		require.NotNil(t, input.OrderID)
		require.Equal(t, order.ID, *input.OrderID)
		require.Contains(t, input.Message, order.OrderNumber)
	}
	require.Equal(t, "Your order was delivered", recorder.inputs[2].Title)
}

func TestUpdateStatusTerminalRejected(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	driverID := uuid.New()
	delivery := seedLeg(t, db, driverID, enums.DeliveryStatusDelivered, enums.OrderStatusDelivered)

	_, err := svc.UpdateStatus(ctx, UpdateStatusInput{
		DeliveryID: delivery.ID,
		Target:     enums.DeliveryStatusDelivered,
		ActorID:    driverID,
		ActorRole:  enums.RoleDriver,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	var entries []models.DeliveryTrackingEntry
	require.NoError(t, db.Find(&entries, "delivery_id = ?", delivery.ID).Error)
	require.Empty(t, entries)
}

func TestUpdateStatusSkippedStepRejected(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	driverID := uuid.New()
	delivery := seedLeg(t, db, driverID, enums.DeliveryStatusAssigned, enums.OrderStatusDriverAssigned)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: delivery.ID,
		Target:     enums.DeliveryStatusDelivered,
		ActorID:    driverID,
		ActorRole:  enums.RoleDriver,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestUpdateStatusWrongDriverRejected(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	delivery := seedLeg(t, db, uuid.New(), enums.DeliveryStatusAssigned, enums.OrderStatusDriverAssigned)

	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: delivery.ID,
		Target:     enums.DeliveryStatusPickedUp,
		ActorID:    uuid.New(),
		ActorRole:  enums.RoleDriver,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))
}

func TestUpdateStatusAdminOverridesDriverMatch(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	delivery := seedLeg(t, db, uuid.New(), enums.DeliveryStatusAssigned, enums.OrderStatusDriverAssigned)

	updated, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: delivery.ID,
		Target:     enums.DeliveryStatusPickedUp,
		ActorID:    uuid.New(),
		ActorRole:  enums.RoleAdmin,
	})
	require.NoError(t, err)
	require.Equal(t, enums.DeliveryStatusPickedUp, updated.Status)
}

func TestUpdateStatusFailureMirrorsOrder(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	driverID := uuid.New()
	delivery := seedLeg(t, db, driverID, enums.DeliveryStatusInTransit, enums.OrderStatusOutForDelivery)

	notes := "recipient unreachable"
	_, err := svc.UpdateStatus(context.Background(), UpdateStatusInput{
		DeliveryID: delivery.ID,
		Target:     enums.DeliveryStatusFailed,
		ActorID:    driverID,
		ActorRole:  enums.RoleDriver,
		Notes:      &notes,
	})
	require.NoError(t, err)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", delivery.OrderID).Error)
	require.Equal(t, enums.OrderStatusFailed, order.Status)

	var entries []models.DeliveryTrackingEntry
	require.NoError(t, db.Find(&entries, "delivery_id = ?", delivery.ID).Error)
	require.Len(t, entries, 1)
	require.Equal(t, &notes, entries[0].Notes)
}

func TestGetScopesDriverReads(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	driverID := uuid.New()
	delivery := seedLeg(t, db, driverID, enums.DeliveryStatusAssigned, enums.OrderStatusDriverAssigned)

	_, err := svc.Get(context.Background(), GetInput{
		DeliveryID: delivery.ID,
		ActorID:    uuid.New(),
		ActorRole:  enums.RoleDriver,
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	found, err := svc.Get(context.Background(), GetInput{
		DeliveryID: delivery.ID,
		ActorID:    driverID,
		ActorRole:  enums.RoleDriver,
	})
	require.NoError(t, err)
	require.Equal(t, delivery.ID, found.ID)
}

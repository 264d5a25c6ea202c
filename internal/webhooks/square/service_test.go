package squarewebhook

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/commissions"
	"github.com/glowcart/glowcart-backend/internal/inventory"
	"github.com/glowcart/glowcart-backend/internal/orders"
	"github.com/glowcart/glowcart-backend/internal/payments"
	"github.com/glowcart/glowcart-backend/internal/testdb"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
	"github.com/glowcart/glowcart-backend/pkg/square"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r *gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx.WithContext(ctx))
	})
}

type stubProvider struct {
	payments map[string]*square.PaymentDetails
}

func (s *stubProvider) GetPayment(_ context.Context, paymentID string) (*square.PaymentDetails, error) {
	details, ok := s.payments[paymentID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	return details, nil
}

func newTestService(t *testing.T, provider *stubProvider) (*Service, *gorm.DB) {
	t.Helper()
	db := testdb.New(t,
		"orders", "order_items", "order_status_history_entries",
		"payments", "inventory_records", "inventory_reservations",
		"commission_records", "audit_records", "outbox_events", "deliveries",
	)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	outboxSvc := outbox.NewService(outbox.NewRepository(db), logg)

	auditSvc, err := audit.NewService(audit.NewRepository(db))
	require.NoError(t, err)

	ordersRepo := orders.NewRepository(db)
	orderSvc, err := orders.NewService(ordersRepo, &gormTxRunner{db: db}, outboxSvc, auditSvc, nil)
	require.NoError(t, err)

	verifier, err := payments.NewVerifier(payments.NewRepository(db), provider, auditSvc)
	require.NoError(t, err)

	commissionSvc, err := commissions.NewService(
		commissions.NewRepository(db), outboxSvc, decimal.RequireFromString("0.15"), logg)
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		OrdersRepo:        ordersRepo,
		OrderService:      orderSvc,
		Verifier:          verifier,
		Inventory:         inventory.NewService(),
		Commissions:       commissionSvc,
		TransactionRunner: &gormTxRunner{db: db},
		Logger:            logg,
	})
	require.NoError(t, err)
	return svc, db
}

func seedPendingOrder(t *testing.T, db *gorm.DB, reference string, totalCents int) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:     "GC-" + uuid.NewString()[:8],
		CustomerID:      uuid.New(),
		SubtotalCents:   totalCents,
		TotalCents:      totalCents,
		Currency:        "USD",
		PaymentIntentID: &reference,
		Status:          enums.OrderStatusPaymentPending,
		PaymentStatus:   enums.PaymentStatusPending,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func paymentEvent(eventType string, payment *square.PaymentDetails) *SquareWebhookEvent {
	return &SquareWebhookEvent{
		EventID: uuid.NewString(),
		Type:    eventType,
		Data: SquareWebhookData{
			Type:   "payment",
			ID:     payment.ID,
			Object: SquareWebhookObject{Type: "payment", ID: payment.ID, Payment: payment},
		},
	}
}

func TestHandleEventSettlesCompletedPayment(t *testing.T) {
	t.Parallel()

	details := &square.PaymentDetails{ID: "pi_hook", Status: "COMPLETED", AmountCents: 4340, Currency: "USD"}
	provider := &stubProvider{payments: map[string]*square.PaymentDetails{"pi_hook": details}}
	svc, db := newTestService(t, provider)
	order := seedPendingOrder(t, db, "pi_hook", 4340)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent("payment.updated", details)))

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusPaymentSuccess, updated.Status)
	require.Equal(t, enums.PaymentStatusPaid, updated.PaymentStatus)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	require.Equal(t, "pi_hook", payment.ProviderReference)
}

func TestHandleEventDuplicateDeliveryIsNoOp(t *testing.T) {
	t.Parallel()

	details := &square.PaymentDetails{ID: "pi_dup", Status: "COMPLETED", AmountCents: 4340, Currency: "USD"}
	provider := &stubProvider{payments: map[string]*square.PaymentDetails{"pi_dup": details}}
	svc, db := newTestService(t, provider)
	order := seedPendingOrder(t, db, "pi_dup", 4340)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent("payment.updated", details)))
	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent("payment.updated", details)))

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestHandleEventFailedPaymentReleasesStock(t *testing.T) {
	t.Parallel()

	details := &square.PaymentDetails{ID: "pi_fail", Status: "FAILED", AmountCents: 4340, Currency: "USD"}
	provider := &stubProvider{payments: map[string]*square.PaymentDetails{}}
	svc, db := newTestService(t, provider)
	order := seedPendingOrder(t, db, "pi_fail", 4340)

	productID := uuid.New()
	storeID := uuid.New()
	require.NoError(t, db.Create(&models.InventoryRecord{
		ProductID:    productID,
		StoreID:      storeID,
		AvailableQty: 8,
		ReservedQty:  2,
	}).Error)
	require.NoError(t, db.Create(&models.InventoryReservation{
		OrderID:   order.ID,
		ProductID: productID,
		StoreID:   storeID,
		Qty:       2,
	}).Error)

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent("payment.updated", details)))

	var updated models.Order
	require.NoError(t, db.First(&updated, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusFailed, updated.Status)

	var record models.InventoryRecord
	require.NoError(t, db.First(&record, "product_id = ?", productID).Error)
	require.Equal(t, 10, record.AvailableQty)
	require.Equal(t, 0, record.ReservedQty)
}

func TestHandleEventUnmatchedPayment(t *testing.T) {
	t.Parallel()

	details := &square.PaymentDetails{ID: "pi_none", Status: "COMPLETED", AmountCents: 100}
	svc, _ := newTestService(t, &stubProvider{payments: map[string]*square.PaymentDetails{}})

	require.NoError(t, svc.HandleEvent(context.Background(), paymentEvent("payment.updated", details)))
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &stubProvider{payments: map[string]*square.PaymentDetails{}})
	require.NoError(t, svc.HandleEvent(context.Background(), &SquareWebhookEvent{Type: "refund.created"}))
}

type fakeStore struct {
	values map[string]string
}

func (f *fakeStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestIdempotencyGuardMarksAndReleases(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(&fakeStore{values: map[string]string{}}, time.Hour, "square-payments")
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.True(t, seen)

	require.NoError(t, guard.Delete(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.False(t, seen)
}

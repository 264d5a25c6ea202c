package checkout

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/commissions"
	"github.com/glowcart/glowcart-backend/internal/inventory"
	"github.com/glowcart/glowcart-backend/internal/notifications"
	"github.com/glowcart/glowcart-backend/internal/orders"
	"github.com/glowcart/glowcart-backend/internal/payments"
	"github.com/glowcart/glowcart-backend/internal/testdb"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
	"github.com/glowcart/glowcart-backend/pkg/square"
	"github.com/glowcart/glowcart-backend/pkg/types"
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

func newTestService(t *testing.T, provider *stubProvider) (Service, *gorm.DB) {
	t.Helper()
	db := testdb.New(t,
		"orders", "order_items", "order_status_history_entries",
		"payments", "inventory_records", "inventory_reservations",
		"commission_records", "notifications", "notification_preferences",
		"audit_records", "outbox_events", "deliveries",
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

	notificationSvc, err := notifications.NewService(notifications.NewRepository(db), logg, nil)
	require.NoError(t, err)

	svc, err := NewService(
		ordersRepo,
		orderSvc,
		verifier,
		inventory.NewService(),
		commissionSvc,
		notificationSvc,
		PassthroughOwnerDirectory{},
		&gormTxRunner{db: db},
		outboxSvc,
		auditSvc,
		logg,
		nil,
	)
	require.NoError(t, err)
	return svc, db
}

func seedStock(t *testing.T, db *gorm.DB, productID, storeID uuid.UUID, available int) {
	t.Helper()
	require.NoError(t, db.Create(&models.InventoryRecord{
		ProductID:    productID,
		StoreID:      storeID,
		AvailableQty: available,
	}).Error)
}

func loadStock(t *testing.T, db *gorm.DB, productID, storeID uuid.UUID) models.InventoryRecord {
	t.Helper()
	var record models.InventoryRecord
	require.NoError(t, db.First(&record, "product_id = ? AND store_id = ?", productID, storeID).Error)
	return record
}

func testAddress() types.Address {
	return types.Address{
		Line1:      "1 Glow Ave",
		City:       "Los Angeles",
		State:      "CA",
		PostalCode: "90001",
		Country:    "US",
		Lat:        34.05,
		Lng:        -118.24,
	}
}

func TestCreateOrderEndToEnd(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	storeID := uuid.New()
	customerID := uuid.New()

	provider := &stubProvider{payments: map[string]*square.PaymentDetails{
		"pi_123": {ID: "pi_123", Status: "COMPLETED", AmountCents: 4340, Currency: "USD"},
	}}
	svc, db := newTestService(t, provider)
	seedStock(t, db, productID, storeID, 10)

	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: customerID,
		Items: []ItemInput{
			{ProductID: productID, StoreID: storeID, Name: "Rose Serum", Qty: 2, UnitPriceCents: 2000},
		},
		ShippingAddress:  testAddress(),
		PaymentReference: "pi_123",
	})
	require.NoError(t, err)
	require.Equal(t, 4000, order.SubtotalCents)
	require.Equal(t, 340, order.TaxCents)
	require.Equal(t, 0, order.ShippingCents)
	require.Equal(t, 4340, order.TotalCents)
	require.Equal(t, enums.OrderStatusPaymentSuccess, order.Status)
	require.Equal(t, enums.PaymentStatusPaid, order.PaymentStatus)

	var persisted models.Order
	require.NoError(t, db.First(&persisted, "id = ?", order.ID).Error)
	require.Equal(t, enums.OrderStatusPaymentSuccess, persisted.Status)
	require.Equal(t, enums.PaymentStatusPaid, persisted.PaymentStatus)

	stock := loadStock(t, db, productID, storeID)
	require.Equal(t, 8, stock.AvailableQty)
	require.Equal(t, 0, stock.ReservedQty)

	var payment models.Payment
	require.NoError(t, db.First(&payment, "order_id = ?", order.ID).Error)
	require.Equal(t, "pi_123", payment.ProviderReference)

	var commission models.CommissionRecord
	require.NoError(t, db.First(&commission, "order_id = ?", order.ID).Error)
	require.Equal(t, storeID, commission.StoreID)
	require.Equal(t, 600, commission.CommissionCents)

	var ownerNotifications []models.Notification
	require.NoError(t, db.Find(&ownerNotifications, "user_id = ?", storeID).Error)
	require.NotEmpty(t, ownerNotifications)
	require.Equal(t, "New order received", ownerNotifications[0].Title)

	var history []models.OrderStatusHistoryEntry
	require.NoError(t, db.Order("created_at ASC").Find(&history, "order_id = ?", order.ID).Error)
	require.Len(t, history, 2)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events, "aggregate_id = ?", order.ID).Error)
	kinds := map[enums.OutboxEventType]bool{}
	for _, event := range events {
		kinds[event.EventType] = true
	}
	require.True(t, kinds[enums.EventOrderCreated])
	require.True(t, kinds[enums.EventOrderPaid])
}

func TestCreateOrderRedeliveryReturnsExisting(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	storeID := uuid.New()
	customerID := uuid.New()

	provider := &stubProvider{payments: map[string]*square.PaymentDetails{
		"pi_dup": {ID: "pi_dup", Status: "COMPLETED", AmountCents: 4340, Currency: "USD"},
	}}
	svc, db := newTestService(t, provider)
	seedStock(t, db, productID, storeID, 10)

	input := CreateOrderInput{
		CustomerID: customerID,
		Items: []ItemInput{
			{ProductID: productID, StoreID: storeID, Name: "Rose Serum", Qty: 2, UnitPriceCents: 2000},
		},
		ShippingAddress:  testAddress(),
		PaymentReference: "pi_dup",
	}

	first, err := svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	second, err := svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	stock := loadStock(t, db, productID, storeID)
	require.Equal(t, 8, stock.AvailableQty)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateOrderOutOfStockRollsBack(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	storeID := uuid.New()

	provider := &stubProvider{payments: map[string]*square.PaymentDetails{
		"pi_oos": {ID: "pi_oos", Status: "COMPLETED", AmountCents: 4340, Currency: "USD"},
	}}
	svc, db := newTestService(t, provider)
	seedStock(t, db, productID, storeID, 1)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items: []ItemInput{
			{ProductID: productID, StoreID: storeID, Name: "Rose Serum", Qty: 2, UnitPriceCents: 2000},
		},
		ShippingAddress:  testAddress(),
		PaymentReference: "pi_oos",
	})
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, 2, details["requested_qty"])
	require.Equal(t, 1, details["available_qty"])

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 0, orderCount)

	stock := loadStock(t, db, productID, storeID)
	require.Equal(t, 1, stock.AvailableQty)
	require.Equal(t, 0, stock.ReservedQty)
}

func TestCreateOrderUnverifiedPaymentRollsBack(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	storeID := uuid.New()

	provider := &stubProvider{payments: map[string]*square.PaymentDetails{
		"pi_pend": {ID: "pi_pend", Status: "PENDING", AmountCents: 4340, Currency: "USD"},
	}}
	svc, db := newTestService(t, provider)
	seedStock(t, db, productID, storeID, 10)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		CustomerID: uuid.New(),
		Items: []ItemInput{
			{ProductID: productID, StoreID: storeID, Name: "Rose Serum", Qty: 2, UnitPriceCents: 2000},
		},
		ShippingAddress:  testAddress(),
		PaymentReference: "pi_pend",
	})
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 0, orderCount)

	stock := loadStock(t, db, productID, storeID)
	require.Equal(t, 10, stock.AvailableQty)
	require.Equal(t, 0, stock.ReservedQty)
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{payments: map[string]*square.PaymentDetails{}}
	svc, _ := newTestService(t, provider)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID:       uuid.New(),
		ShippingAddress:  testAddress(),
		PaymentReference: "pi_x",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Items: []ItemInput{
			{ProductID: uuid.New(), StoreID: uuid.New(), Name: "Serum", Qty: 0, UnitPriceCents: 2000},
		},
		ShippingAddress:  testAddress(),
		PaymentReference: "pi_x",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Items: []ItemInput{
			{ProductID: uuid.New(), StoreID: uuid.New(), Name: "Serum", Qty: 1, UnitPriceCents: 2000},
		},
		ShippingAddress:  types.Address{Line1: "1 Glow Ave"},
		PaymentReference: "pi_x",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

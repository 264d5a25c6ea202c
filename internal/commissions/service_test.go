package commissions

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/testdb"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
)

func newTestService(t *testing.T, rate string) (Service, *gorm.DB) {
	t.Helper()
	db := testdb.New(t, "commission_records", "outbox_events")
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(
		NewRepository(db),
		outbox.NewService(outbox.NewRepository(db), logg),
		decimal.RequireFromString(rate),
		logg,
	)
	require.NoError(t, err)
	return svc, db
}

type storeShare struct {
	StoreID uuid.UUID
	Cents   int
}

func buildOrder(stores ...storeShare) *models.Order {
	order := &models.Order{ID: uuid.New()}
	for _, s := range stores {
		order.Items = append(order.Items, models.OrderItem{
			OrderID:        order.ID,
			ProductID:      uuid.New(),
			StoreID:        s.StoreID,
			Name:           "serum",
			Qty:            1,
			UnitPriceCents: s.Cents,
			TotalCents:     s.Cents,
		})
	}
	return order
}

func TestRecordForOrderSnapshotsRate(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t, "0.15")
	ctx := context.Background()
	storeA := uuid.New()
	storeB := uuid.New()
	order := buildOrder(storeShare{storeA, 4000}, storeShare{storeB, 2000})

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.RecordForOrderInTx(ctx, tx, order)
	}))

	records, err := svc.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byStore := map[uuid.UUID]models.CommissionRecord{}
	for _, record := range records {
		byStore[record.StoreID] = record
		require.Equal(t, enums.CommissionStatusPending, record.Status)
		require.True(t, decimal.RequireFromString("0.15").Equal(record.Rate))
	}
	require.Equal(t, 4000, byStore[storeA].StoreShareCents)
	require.Equal(t, 600, byStore[storeA].CommissionCents)
	require.Equal(t, 2000, byStore[storeB].StoreShareCents)
	require.Equal(t, 300, byStore[storeB].CommissionCents)
}

func TestRecordForOrderIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t, "0.15")
	ctx := context.Background()
	order := buildOrder(storeShare{uuid.New(), 4000})

	for i := 0; i < 2; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.RecordForOrderInTx(ctx, tx, order)
		}))
	}

	records, err := svc.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestCloseOutFlipsPendingToPayable(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t, "0.15")
	ctx := context.Background()
	order := buildOrder(storeShare{uuid.New(), 4000})

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.RecordForOrderInTx(ctx, tx, order)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.CloseOutInTx(ctx, tx, order.ID, uuid.New())
	}))

	records, err := svc.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.CommissionStatusPayable, records[0].Status)

	var events []models.OutboxEvent
	require.NoError(t, db.Find(&events, "event_type = ?", enums.EventCommissionClosedOut).Error)
	require.Len(t, events, 1)

	// Second close-out finds nothing pending and emits nothing new.
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.CloseOutInTx(ctx, tx, order.ID, uuid.New())
	}))
	require.NoError(t, db.Find(&events, "event_type = ?", enums.EventCommissionClosedOut).Error)
	require.Len(t, events, 1)
}

package commissions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service snapshots a commission per (order, store) at confirmation and
// settles it when the order lands.
type Service interface {
	RecordForOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) error
	CloseOutInTx(ctx context.Context, tx *gorm.DB, orderID, actorID uuid.UUID) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CommissionRecord, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.CommissionStatus) ([]models.CommissionRecord, error)
}

type service struct {
	repo   Repository
	outbox outboxPublisher
	rate   decimal.Decimal
	logg   *logger.Logger
}

// ClosedOutEvent is emitted when an order's commissions become payable.
type ClosedOutEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Count   int64     `json:"count"`
}

// NewService builds the commission service with the configured rate.
func NewService(repo Repository, outboxSvc outboxPublisher, rate decimal.Decimal, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("commissions repository required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("commission rate %s out of range", rate)
	}
	return &service{repo: repo, outbox: outboxSvc, rate: rate, logg: logg}, nil
}

// RecordForOrderInTx writes one pending commission per store on the order,
// snapshotting the current rate. The (order, store) unique index makes
// redelivered confirmations a no-op.
func (s *service) RecordForOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order == nil || order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	shares := map[uuid.UUID]int{}
	for _, item := range order.Items {
		shares[item.StoreID] += item.TotalCents
	}

	repo := s.repo.WithTx(tx)
	for storeID, shareCents := range shares {
		commissionCents := int(s.rate.Mul(decimal.NewFromInt(int64(shareCents))).Round(0).IntPart())
		record := &models.CommissionRecord{
			OrderID:         order.ID,
			StoreID:         storeID,
			Rate:            s.rate,
			StoreShareCents: shareCents,
			CommissionCents: commissionCents,
			Status:          enums.CommissionStatusPending,
		}
		if err := repo.CreateIfAbsent(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record commission")
		}
	}
	return nil
}

// CloseOutInTx flips the order's pending commissions to payable. Safe to
// call twice: the second call matches no pending rows.
func (s *service) CloseOutInTx(ctx context.Context, tx *gorm.DB, orderID, actorID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	count, err := s.repo.WithTx(tx).UpdateStatusByOrder(ctx, orderID,
		enums.CommissionStatusPending, enums.CommissionStatusPayable)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close out commissions")
	}
	if count == 0 {
		return nil
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventCommissionClosedOut,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          ClosedOutEvent{OrderID: orderID, Count: count},
	}
	if actorID != uuid.Nil {
		event.Actor = &outbox.ActorRef{UserID: actorID, Role: string(enums.RoleSystem)}
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}

	logCtx := s.logg.WithOrderID(ctx, orderID.String())
	s.logg.Info(logCtx, "commissions closed out")
	return nil
}

func (s *service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.CommissionRecord, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	records, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}
	return records, nil
}

func (s *service) ListByStore(ctx context.Context, storeID uuid.UUID, status *enums.CommissionStatus) ([]models.CommissionRecord, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	records, err := s.repo.ListByStore(ctx, storeID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}
	return records, nil
}

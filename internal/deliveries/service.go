package deliveries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/notifications"
	"github.com/glowcart/glowcart-backend/internal/orders"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

// allowedDeliveryTransitions is the forward path of a leg. Any non-terminal
// status may fail; delivered and failed accept nothing further.
var allowedDeliveryTransitions = map[enums.DeliveryStatus][]enums.DeliveryStatus{
	enums.DeliveryStatusAssigned:  {enums.DeliveryStatusPickedUp, enums.DeliveryStatusFailed},
	enums.DeliveryStatusPickedUp:  {enums.DeliveryStatusInTransit, enums.DeliveryStatusFailed},
	enums.DeliveryStatusInTransit: {enums.DeliveryStatusDelivered, enums.DeliveryStatusFailed},
}

// orderStatusFor maps each delivery status to the order status it mirrors.
var orderStatusFor = map[enums.DeliveryStatus]enums.OrderStatus{
	enums.DeliveryStatusPickedUp:  enums.OrderStatusPickedUp,
	enums.DeliveryStatusInTransit: enums.OrderStatusOutForDelivery,
	enums.DeliveryStatusDelivered: enums.OrderStatusDelivered,
	enums.DeliveryStatusFailed:    enums.OrderStatusFailed,
}

// CanTransitionDelivery reports whether from → to is a legal leg transition.
func CanTransitionDelivery(from, to enums.DeliveryStatus) bool {
	for _, candidate := range allowedDeliveryTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderTransitioner interface {
	TransitionInTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput)
}

// CommissionCloser settles the order's commission when the leg lands.
type CommissionCloser interface {
	CloseOutInTx(ctx context.Context, tx *gorm.DB, orderID, actorID uuid.UUID) error
}

// Service drives a delivery leg through its lifecycle and keeps the owning
// order's status in step.
type Service interface {
	Get(ctx context.Context, input GetInput) (*models.Delivery, error)
	Tracking(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryTrackingEntry, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Delivery, error)
}

type service struct {
	repo        Repository
	orderSvc    orderTransitioner
	tx          txRunner
	outbox      outboxPublisher
	audit       audit.Service
	commissions CommissionCloser
	notifier    notifier
	logg        *logger.Logger
}

// GetInput scopes a delivery read to the requesting actor.
type GetInput struct {
	DeliveryID uuid.UUID
	ActorID    uuid.UUID
	ActorRole  enums.ActorRole
}

// UpdateStatusInput carries one leg status change from a driver or admin.
type UpdateStatusInput struct {
	DeliveryID uuid.UUID
	Target     enums.DeliveryStatus
	ActorID    uuid.UUID
	ActorRole  enums.ActorRole
	Location   *types.GeoPoint
	Notes      *string
}

// StatusChangedEvent is emitted on every leg transition.
type StatusChangedEvent struct {
	DeliveryID uuid.UUID            `json:"delivery_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	DriverID   uuid.UUID            `json:"driver_id"`
	OldStatus  enums.DeliveryStatus `json:"old_status"`
	NewStatus  enums.DeliveryStatus `json:"new_status"`
}

// NewService builds the delivery tracker. The commission closer and notifier
// are optional.
func NewService(repo Repository, orderSvc orderTransitioner, tx txRunner, outboxSvc outboxPublisher, auditSvc audit.Service, commissions CommissionCloser, notifierSvc notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		orderSvc:    orderSvc,
		tx:          tx,
		outbox:      outboxSvc,
		audit:       auditSvc,
		commissions: commissions,
		notifier:    notifierSvc,
		logg:        logg,
	}, nil
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	delivery, err := s.repo.FindByID(ctx, input.DeliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	if input.ActorRole == enums.RoleDriver && delivery.DriverID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery does not belong to driver")
	}
	return delivery, nil
}

func (s *service) Tracking(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryTrackingEntry, error) {
	if deliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	entries, err := s.repo.TrackingEntries(ctx, deliveryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tracking entries")
	}
	return entries, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown delivery status %q", input.Target))
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.ActorRole != enums.RoleDriver && input.ActorRole != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only drivers and admins update deliveries")
	}

	var delivery *models.Delivery
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		delivery, order, txErr = s.updateStatusInTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	s.notifyCustomer(ctx, delivery, order, input.Target)
	return delivery, nil
}

func (s *service) updateStatusInTx(ctx context.Context, tx *gorm.DB, input UpdateStatusInput) (*models.Delivery, *models.Order, error) {
	repo := s.repo.WithTx(tx)
	delivery, err := repo.FindByID(ctx, input.DeliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}

	if input.ActorRole == enums.RoleDriver && delivery.DriverID != input.ActorID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "delivery does not belong to driver")
	}
	if delivery.Status.IsTerminal() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("delivery is %s and accepts no further updates", delivery.Status))
	}
	if !CanTransitionDelivery(delivery.Status, input.Target) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("delivery transition %s -> %s not allowed", delivery.Status, input.Target))
	}

	updated, err := repo.UpdateStatusGuarded(ctx, delivery.ID, delivery.Status, input.Target)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
	}
	if !updated {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status changed concurrently")
	}

	oldStatus := delivery.Status
	delivery.Status = input.Target

	if input.Target == enums.DeliveryStatusDelivered {
		now := time.Now()
		if err := repo.SetActualDeliveryTime(ctx, delivery.ID, now); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp delivery time")
		}
		delivery.ActualDeliveryTime = &now
	}

	entry := &models.DeliveryTrackingEntry{
		DeliveryID: delivery.ID,
		Status:     input.Target,
		Location:   input.Location,
		Notes:      input.Notes,
	}
	if err := repo.AppendTrackingEntry(ctx, entry); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append tracking entry")
	}

	var order *models.Order
	if orderTarget, ok := orderStatusFor[input.Target]; ok {
		var terr error
		order, terr = s.orderSvc.TransitionInTx(ctx, tx, orders.TransitionInput{
			OrderID:   delivery.OrderID,
			Target:    orderTarget,
			ActorID:   input.ActorID,
			ActorRole: input.ActorRole,
		})
		if terr != nil {
			return nil, nil, terr
		}
	}

	if _, err := s.audit.WithTx(tx).Record(ctx, audit.RecordInput{
		EntityType: audit.EntityDelivery,
		EntityID:   delivery.ID,
		Action:     audit.ActionDeliveryUpdated,
		ActorID:    input.ActorID,
		Details: map[string]any{
			"old_status": oldStatus,
			"new_status": input.Target,
			"order_id":   delivery.OrderID,
		},
	}); err != nil {
		return nil, nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventDeliveryStateChanged,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   delivery.ID,
		Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)},
		Data: StatusChangedEvent{
			DeliveryID: delivery.ID,
			OrderID:    delivery.OrderID,
			DriverID:   delivery.DriverID,
			OldStatus:  oldStatus,
			NewStatus:  input.Target,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, nil, err
	}

	if input.Target == enums.DeliveryStatusDelivered && s.commissions != nil {
		if err := s.commissions.CloseOutInTx(ctx, tx, delivery.OrderID, input.ActorID); err != nil {
			return nil, nil, err
		}
	}

	logCtx := s.logg.WithDeliveryID(ctx, delivery.ID.String())
	s.logg.Info(logCtx, "delivery status updated")

	return delivery, order, nil
}

// customerUpdateTitles are the headlines customers see per leg milestone.
var customerUpdateTitles = map[enums.DeliveryStatus]string{
	enums.DeliveryStatusPickedUp:  "Your order was picked up",
	enums.DeliveryStatusInTransit: "Your order is out for delivery",
	enums.DeliveryStatusDelivered: "Your order was delivered",
	enums.DeliveryStatusFailed:    "Your delivery could not be completed",
}

// notifyCustomer is best-effort and runs after the status change commits.
func (s *service) notifyCustomer(ctx context.Context, delivery *models.Delivery, order *models.Order, target enums.DeliveryStatus) {
	if s.notifier == nil || order == nil {
		return
	}
	title, ok := customerUpdateTitles[target]
	if !ok {
		return
	}
	orderID := delivery.OrderID
	s.notifier.Notify(ctx, notifications.NotifyInput{
		UserID:  order.CustomerID,
		Title:   title,
		Message: fmt.Sprintf("Order %s is now %s", order.OrderNumber, target),
		OrderID: &orderID,
	})
}

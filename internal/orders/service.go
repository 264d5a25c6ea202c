package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/authz"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/metrics"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
	"github.com/glowcart/glowcart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives the order state machine. Every transition lands in the
// status history, the audit trail, and the outbox within one transaction.
type Service interface {
	Get(ctx context.Context, input GetInput) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, error)
	History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistoryEntry, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	TransitionInTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	audit   audit.Service
	metrics *metrics.PipelineMetrics
}

// GetInput scopes an order read to the requesting actor.
type GetInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// TransitionInput captures everything a status change needs to be replayed
// from the history table later.
type TransitionInput struct {
	OrderID   uuid.UUID
	Target    enums.OrderStatus
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	Reason    *string
	Force     bool
	Automated bool
}

// StateChangedEvent is emitted on every successful transition.
type StateChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	OldStatus   enums.OrderStatus `json:"old_status"`
	NewStatus   enums.OrderStatus `json:"new_status"`
	Reason      *string           `json:"reason,omitempty"`
	Forced      bool              `json:"forced,omitempty"`
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, auditSvc audit.Service, pipeline *metrics.PipelineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  outboxSvc,
		audit:   auditSvc,
		metrics: pipeline,
	}, nil
}

func (s *service) Get(ctx context.Context, input GetInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := authz.Require(input.ActorRole, authz.ActionViewOrder); err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if input.ActorRole == enums.RoleCustomer && order.CustomerID != input.ActorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
	}
	return order, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	orders, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistoryEntry, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	entries, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	return entries, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		order, txErr = s.TransitionInTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// TransitionInTx applies a transition inside the caller's transaction so
// multi-step flows (checkout, assignment) commit atomically with their own
// writes.
func (s *service) TransitionInTx(ctx context.Context, tx *gorm.DB, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown target status %q", input.Target))
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.ActorRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor role")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if input.Force {
		if err := authz.Require(input.ActorRole, authz.ActionForceTransition); err != nil {
			return nil, err
		}
	} else {
		if order.Status.IsTerminal() {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s and accepts no further transitions", order.Status))
		}
		if !CanTransition(order.Status, input.Target) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("transition %s -> %s not allowed", order.Status, input.Target))
		}
		if !RoleMayCause(input.Target, input.ActorRole) {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden,
				fmt.Sprintf("role %s may not cause %s", input.ActorRole, input.Target))
		}
		if input.Target == enums.OrderStatusCancelled &&
			input.ActorRole == enums.RoleCustomer &&
			order.CustomerID != input.ActorID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
	}

	updated, err := repo.UpdateStatusGuarded(ctx, order.ID, order.Status, input.Target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
	}

	oldStatus := order.Status
	order.Status = input.Target

	entry := &models.OrderStatusHistoryEntry{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: input.Target,
		ChangedBy: input.ActorID,
		Reason:    input.Reason,
		Automated: input.Automated,
	}
	if err := repo.AppendHistory(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}

	auditAction := audit.ActionStatusChanged
	if input.Force {
		auditAction = audit.ActionForcedTransition
	}
	if _, err := s.audit.WithTx(tx).Record(ctx, audit.RecordInput{
		EntityType: audit.EntityOrder,
		EntityID:   order.ID,
		Action:     auditAction,
		ActorID:    input.ActorID,
		Details: map[string]any{
			"old_status": oldStatus,
			"new_status": input.Target,
			"reason":     input.Reason,
			"forced":     input.Force,
			"role":       input.ActorRole,
		},
	}); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     eventTypeForTarget(input.Target),
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)},
		Data: StateChangedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			OldStatus:   oldStatus,
			NewStatus:   input.Target,
			Reason:      input.Reason,
			Forced:      input.Force,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncOrderTransition(input.Target.String())
	}
	return order, nil
}

func eventTypeForTarget(target enums.OrderStatus) enums.OutboxEventType {
	switch target {
	case enums.OrderStatusCancelled:
		return enums.EventOrderCancelled
	case enums.OrderStatusDelivered:
		return enums.EventOrderDelivered
	default:
		return enums.EventOrderStateChanged
	}
}

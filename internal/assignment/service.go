package assignment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/authz"
	"github.com/glowcart/glowcart-backend/internal/deliveries"
	"github.com/glowcart/glowcart-backend/internal/drivers"
	"github.com/glowcart/glowcart-backend/internal/notifications"
	"github.com/glowcart/glowcart-backend/internal/orders"
	"github.com/glowcart/glowcart-backend/pkg/config"
	dbpkg "github.com/glowcart/glowcart-backend/pkg/db"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/metrics"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
	"github.com/glowcart/glowcart-backend/pkg/routing"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderTransitioner interface {
	TransitionInTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

type routeEstimator interface {
	DistanceAndDuration(ctx context.Context, origin, destination types.GeoPoint) (*routing.RouteEstimate, error)
}

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput)
}

// StoreDirectory resolves a store's pickup address. This service has no
// store catalog of its own; the deployment wires whatever directory it has.
type StoreDirectory interface {
	StoreAddress(ctx context.Context, storeID uuid.UUID) (*types.Address, error)
}

// NoStoreDirectory is the default directory. It knows no addresses, so legs
// carry no pickup address and driver scoring uses the dropoff alone.
type NoStoreDirectory struct{}

func (NoStoreDirectory) StoreAddress(context.Context, uuid.UUID) (*types.Address, error) {
	return nil, nil
}

// Service picks a driver for an accepted order and creates the delivery leg.
// The routing estimator and notifier are optional; without the estimator
// distances fall back to the great-circle calculation and the ETA to the
// configured window.
type Service interface {
	Assign(ctx context.Context, input AssignInput) (*Result, error)
}

type service struct {
	ordersRepo  orders.Repository
	driversRepo drivers.Repository
	deliveries  deliveries.Repository
	orderSvc    orderTransitioner
	tx          txRunner
	outbox      outboxPublisher
	audit       audit.Service
	router      routeEstimator
	stores      StoreDirectory
	notifier    notifier
	cfg         config.AssignmentConfig
	logg        *logger.Logger
	metrics     *metrics.PipelineMetrics
}

// AssignInput requests a driver for one order.
type AssignInput struct {
	OrderID   uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
}

// Result reports the assignment outcome. A fleet with no available driver is
// a normal outcome, not an error: the order parks in waiting_for_driver.
type Result struct {
	Assigned    bool
	Delivery    *models.Delivery
	DriverID    uuid.UUID
	OrderNumber string
	Reason      string
}

// DriverAssignedEvent is emitted when a delivery leg is created.
type DriverAssignedEvent struct {
	OrderID    uuid.UUID  `json:"order_id"`
	DeliveryID uuid.UUID  `json:"delivery_id"`
	DriverID   uuid.UUID  `json:"driver_id"`
	ETA        *time.Time `json:"eta,omitempty"`
}

// DriverUnavailableEvent is emitted when no driver could take the order.
type DriverUnavailableEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}

// NewService builds the assignment engine.
func NewService(
	ordersRepo orders.Repository,
	driversRepo drivers.Repository,
	deliveriesRepo deliveries.Repository,
	orderSvc orderTransitioner,
	tx txRunner,
	outboxSvc outboxPublisher,
	auditSvc audit.Service,
	router routeEstimator,
	stores StoreDirectory,
	notifierSvc notifier,
	cfg config.AssignmentConfig,
	logg *logger.Logger,
	pipeline *metrics.PipelineMetrics,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if driversRepo == nil {
		return nil, fmt.Errorf("drivers repository required")
	}
	if deliveriesRepo == nil {
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
	if stores == nil {
		stores = NoStoreDirectory{}
	}
	if cfg.FallbackETA <= 0 {
		cfg.FallbackETA = 45 * time.Minute
	}
	return &service{
		ordersRepo:  ordersRepo,
		driversRepo: driversRepo,
		deliveries:  deliveriesRepo,
		orderSvc:    orderSvc,
		tx:          tx,
		outbox:      outboxSvc,
		audit:       auditSvc,
		router:      router,
		stores:      stores,
		notifier:    notifierSvc,
		cfg:         cfg,
		logg:        logg,
		metrics:     pipeline,
	}, nil
}

func (s *service) Assign(ctx context.Context, input AssignInput) (*Result, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := authz.Require(input.ActorRole, authz.ActionTriggerAssignment); err != nil {
		return nil, err
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.assignInTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		s.recordOutcome("error")
		return nil, err
	}
	if result.Assigned {
		s.recordOutcome("assigned")
		s.notifyDriver(ctx, result)
	} else {
		s.recordOutcome("no_driver")
	}
	return result, nil
}

// notifyDriver is best-effort and runs after the assignment commits.
func (s *service) notifyDriver(ctx context.Context, result *Result) {
	if s.notifier == nil || result.Delivery == nil {
		return
	}
	orderID := result.Delivery.OrderID
	s.notifier.Notify(ctx, notifications.NotifyInput{
		UserID:  result.DriverID,
		Title:   "New delivery assigned",
		Message: fmt.Sprintf("Order %s is ready for pickup", result.OrderNumber),
		OrderID: &orderID,
	})
}

func (s *service) assignInTx(ctx context.Context, tx *gorm.DB, input AssignInput) (*Result, error) {
	ordersRepo := s.ordersRepo.WithTx(tx)
	order, err := ordersRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status != enums.OrderStatusMerchantAccepted && order.Status != enums.OrderStatusWaitingForDriver {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s is not ready for assignment", order.Status))
	}

	driversRepo := s.driversRepo.WithTx(tx)
	candidates, err := driversRepo.ListOnline(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list online drivers")
	}

	var dropoff *types.GeoPoint
	if order.ShippingAddress != nil {
		dropoff = order.ShippingAddress.GeoPoint()
	}

	pickup := s.pickupAddress(ctx, order)
	scoreTarget := dropoff
	if pickup != nil {
		if point := pickup.GeoPoint(); point != nil {
			scoreTarget = point
		}
	}

	best, found, err := s.pickDriver(ctx, driversRepo, candidates, scoreTarget)
	if err != nil {
		return nil, err
	}
	if !found {
		return s.parkOrder(ctx, tx, order, input)
	}

	eta := s.estimateETA(ctx, best.LastLocation, dropoff)
	delivery := &models.Delivery{
		OrderID:               order.ID,
		DriverID:              best.DriverID,
		Status:                enums.DeliveryStatusAssigned,
		PickupAddress:         pickup,
		DeliveryAddress:       order.ShippingAddress,
		EstimatedDeliveryTime: eta,
	}
	if _, err := s.deliveries.WithTx(tx).Create(ctx, delivery); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_deliveries_order_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
	}

	if _, err := s.orderSvc.TransitionInTx(ctx, tx, orders.TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStatusDriverAssigned,
		ActorID:   input.ActorID,
		ActorRole: input.ActorRole,
		Automated: input.ActorRole == enums.RoleSystem,
	}); err != nil {
		return nil, err
	}

	if _, err := s.audit.WithTx(tx).Record(ctx, audit.RecordInput{
		EntityType: audit.EntityDelivery,
		EntityID:   delivery.ID,
		Action:     audit.ActionDriverAssigned,
		ActorID:    input.ActorID,
		Details: map[string]any{
			"order_id":  order.ID,
			"driver_id": best.DriverID,
			"eta":       eta,
		},
	}); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventDriverAssigned,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   delivery.ID,
		Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)},
		Data: DriverAssignedEvent{
			OrderID:    order.ID,
			DeliveryID: delivery.ID,
			DriverID:   best.DriverID,
			ETA:        eta,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  order.ID.String(),
		"driver_id": best.DriverID.String(),
	})
	s.logg.Info(logCtx, "driver assigned")

	return &Result{Assigned: true, Delivery: delivery, DriverID: best.DriverID, OrderNumber: order.OrderNumber}, nil
}

// pickupAddress resolves the leg's origin from the order's primary store.
// A failed lookup leaves the leg without a pickup address rather than
// blocking the assignment.
func (s *service) pickupAddress(ctx context.Context, order *models.Order) *types.Address {
	if len(order.Items) == 0 {
		return nil
	}
	address, err := s.stores.StoreAddress(ctx, order.Items[0].StoreID)
	if err != nil {
		s.logg.Warn(ctx, "store address lookup failed, delivery has no pickup address")
		return nil
	}
	return address
}

// pickDriver scores candidates by distance to the target point, the pickup
// when the store address is known and the dropoff otherwise. Drivers without
// a known location sort last; ties go to the freshest heartbeat. Drivers with
// an active leg are skipped, one order per driver at a time.
func (s *service) pickDriver(ctx context.Context, repo drivers.Repository, candidates []models.DriverStatus, target *types.GeoPoint) (models.DriverStatus, bool, error) {
	var best models.DriverStatus
	bestDistance := math.Inf(1)
	found := false

	for _, candidate := range candidates {
		busy, err := repo.HasActiveDelivery(ctx, candidate.DriverID)
		if err != nil {
			return best, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check driver load")
		}
		if busy {
			continue
		}

		distance := math.MaxFloat64
		if candidate.LastLocation != nil && target != nil {
			distance = s.distanceMiles(ctx, *candidate.LastLocation, *target)
		}

		if !found || distance < bestDistance ||
			(distance == bestDistance && candidate.UpdatedAt.After(best.UpdatedAt)) {
			best = candidate
			bestDistance = distance
			found = true
		}
	}
	return best, found, nil
}

func (s *service) distanceMiles(ctx context.Context, origin, destination types.GeoPoint) float64 {
	if s.router != nil {
		estimate, err := s.router.DistanceAndDuration(ctx, origin, destination)
		if err == nil {
			return estimate.DistanceMiles
		}
		s.logg.Warn(ctx, "routing estimate failed, falling back to great-circle distance")
	}
	return origin.DistanceMiles(destination)
}

func (s *service) estimateETA(ctx context.Context, origin, destination *types.GeoPoint) *time.Time {
	duration := s.cfg.FallbackETA
	if s.router != nil && origin != nil && destination != nil {
		if estimate, err := s.router.DistanceAndDuration(ctx, *origin, *destination); err == nil && estimate.Duration > 0 {
			duration = estimate.Duration
		}
	}
	eta := time.Now().Add(duration)
	return &eta
}

// parkOrder moves the order to waiting_for_driver so the retry job can pick
// it up once the fleet has capacity.
func (s *service) parkOrder(ctx context.Context, tx *gorm.DB, order *models.Order, input AssignInput) (*Result, error) {
	const reason = "no drivers available"

	if order.Status != enums.OrderStatusWaitingForDriver {
		reasonCopy := reason
		if _, err := s.orderSvc.TransitionInTx(ctx, tx, orders.TransitionInput{
			OrderID:   order.ID,
			Target:    enums.OrderStatusWaitingForDriver,
			ActorID:   input.ActorID,
			ActorRole: input.ActorRole,
			Reason:    &reasonCopy,
			Automated: input.ActorRole == enums.RoleSystem,
		}); err != nil {
			return nil, err
		}
	}

	if _, err := s.audit.WithTx(tx).Record(ctx, audit.RecordInput{
		EntityType: audit.EntityOrder,
		EntityID:   order.ID,
		Action:     audit.ActionDriverAssigned,
		ActorID:    input.ActorID,
		Details: map[string]any{
			"assigned": false,
			"reason":   reason,
		},
	}); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventDriverUnavailable,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: string(input.ActorRole)},
		Data:          DriverUnavailableEvent{OrderID: order.ID, Reason: reason},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithField(ctx, "order_id", order.ID.String())
	s.logg.Warn(logCtx, "no driver available, order parked")

	return &Result{Assigned: false, OrderNumber: order.OrderNumber, Reason: reason}, nil
}

func (s *service) recordOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.IncAssignmentOutcome(outcome)
	}
}

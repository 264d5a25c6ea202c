package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/inventory"
	"github.com/glowcart/glowcart-backend/internal/notifications"
	"github.com/glowcart/glowcart-backend/internal/orders"
	"github.com/glowcart/glowcart-backend/internal/payments"
	dbpkg "github.com/glowcart/glowcart-backend/pkg/db"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/metrics"
	"github.com/glowcart/glowcart-backend/pkg/outbox"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

// Pricing applied at checkout. Tax is a flat marketplace rate; orders at or
// above the threshold ship free.
const (
	freeShippingThresholdCents = 3500
	standardShippingCents      = 500
)

var taxRate = decimal.RequireFromString("0.085")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type orderTransitioner interface {
	TransitionInTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

type commissionRecorder interface {
	RecordForOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput)
}

// OwnerDirectory resolves which user receives a store's order
// notifications.
type OwnerDirectory interface {
	OwnerUserID(ctx context.Context, storeID uuid.UUID) (uuid.UUID, error)
}

// PassthroughOwnerDirectory treats the store ID as the owner's inbox. Stores
// and their owners share an ID until a dedicated store registry exists.
type PassthroughOwnerDirectory struct{}

func (PassthroughOwnerDirectory) OwnerUserID(_ context.Context, storeID uuid.UUID) (uuid.UUID, error) {
	return storeID, nil
}

// Service runs the checkout pipeline: validate, verify payment, reserve and
// deduct stock, and walk the new order to payment_success in one
// transaction. Store-owner notifications go out after commit, best-effort.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
}

type service struct {
	ordersRepo  orders.Repository
	orderSvc    orderTransitioner
	verifier    payments.Verifier
	inventory   inventory.Service
	commissions commissionRecorder
	notifier    notifier
	owners      OwnerDirectory
	tx          txRunner
	outbox      outboxPublisher
	audit       audit.Service
	logg        *logger.Logger
	metrics     *metrics.PipelineMetrics
}

// ItemInput is one requested line item.
type ItemInput struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	StoreID        uuid.UUID
	Name           string
	Qty            int
	UnitPriceCents int
}

// CreateOrderInput is the full checkout request.
type CreateOrderInput struct {
	CustomerID       uuid.UUID
	Items            []ItemInput
	ShippingAddress  types.Address
	PaymentReference string
	PaymentMethod    string
	TipCents         int
}

// OrderCreatedEvent is emitted when checkout completes.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	TotalCents  int       `json:"total_cents"`
}

// NewService builds the checkout service.
func NewService(
	ordersRepo orders.Repository,
	orderSvc orderTransitioner,
	verifier payments.Verifier,
	inventorySvc inventory.Service,
	commissionsSvc commissionRecorder,
	notifierSvc notifier,
	owners OwnerDirectory,
	tx txRunner,
	outboxSvc outboxPublisher,
	auditSvc audit.Service,
	logg *logger.Logger,
	pipeline *metrics.PipelineMetrics,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("payment verifier required")
	}
	if inventorySvc == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if commissionsSvc == nil {
		return nil, fmt.Errorf("commission recorder required")
	}
	if notifierSvc == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if owners == nil {
		owners = PassthroughOwnerDirectory{}
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
		ordersRepo:  ordersRepo,
		orderSvc:    orderSvc,
		verifier:    verifier,
		inventory:   inventorySvc,
		commissions: commissionsSvc,
		notifier:    notifierSvc,
		owners:      owners,
		tx:          tx,
		outbox:      outboxSvc,
		audit:       auditSvc,
		logg:        logg,
		metrics:     pipeline,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	reference := strings.TrimSpace(input.PaymentReference)

	// Redelivered checkout calls for an already-created order are a no-op.
	if existing, err := s.ordersRepo.FindByPaymentIntentID(ctx, reference); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing order")
	}

	subtotal := 0
	for _, item := range input.Items {
		subtotal += item.Qty * item.UnitPriceCents
	}
	tax := int(taxRate.Mul(decimal.NewFromInt(int64(subtotal))).Round(0).IntPart())
	shipping := standardShippingCents
	if subtotal >= freeShippingThresholdCents {
		shipping = 0
	}
	total := subtotal + tax + shipping + input.TipCents

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		order, txErr = s.createInTx(ctx, tx, input, reference, subtotal, tax, shipping, total)
		return txErr
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_orders_payment_intent_id") {
			if existing, findErr := s.ordersRepo.FindByPaymentIntentID(ctx, reference); findErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncOrderCreated()
	}
	s.notifyStoreOwners(ctx, order)

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created")
	return order, nil
}

func (s *service) createInTx(ctx context.Context, tx *gorm.DB, input CreateOrderInput, reference string, subtotal, tax, shipping, total int) (*models.Order, error) {
	repo := s.ordersRepo.WithTx(tx)

	order := &models.Order{
		OrderNumber:     newOrderNumber(),
		CustomerID:      input.CustomerID,
		SubtotalCents:   subtotal,
		TaxCents:        tax,
		ShippingCents:   shipping,
		TipCents:        input.TipCents,
		TotalCents:      total,
		Currency:        "USD",
		PaymentIntentID: &reference,
		PaymentStatus:   enums.PaymentStatusPending,
		Status:          enums.OrderStatusCreated,
		PaymentMethod:   paymentMethodOrDefault(input.PaymentMethod),
		ShippingAddress: &input.ShippingAddress,
	}
	if _, err := repo.Create(ctx, order); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_orders_payment_intent_id") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "order already exists for payment reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	reservations := make([]inventory.ReservationRequest, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, models.OrderItem{
			OrderID:        order.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			StoreID:        item.StoreID,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.Qty * item.UnitPriceCents,
		})
		reservations = append(reservations, inventory.ReservationRequest{
			ProductID: item.ProductID,
			StoreID:   item.StoreID,
			Qty:       item.Qty,
		})
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
	}
	order.Items = items

	results, err := s.inventory.Reserve(ctx, tx, order.ID, reservations)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		if !result.Reserved {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "out of stock").
				WithDetails(map[string]any{
					"product_id":    result.ProductID,
					"reason":        result.Reason,
					"requested_qty": result.Qty,
					"available_qty": result.AvailableQty,
				})
		}
	}

	if _, err := s.orderSvc.TransitionInTx(ctx, tx, orders.TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStatusPaymentPending,
		ActorID:   input.CustomerID,
		ActorRole: enums.RoleSystem,
		Automated: true,
	}); err != nil {
		return nil, err
	}

	if _, err := s.verifier.VerifyInTx(ctx, tx, payments.VerifyInput{
		OrderID:             order.ID,
		Reference:           reference,
		ExpectedAmountCents: total,
		ExpectedCurrency:    order.Currency,
		ActorID:             input.CustomerID,
	}); err != nil {
		return nil, err
	}
	order.PaymentStatus = enums.PaymentStatusPaid

	if _, err := s.orderSvc.TransitionInTx(ctx, tx, orders.TransitionInput{
		OrderID:   order.ID,
		Target:    enums.OrderStatusPaymentSuccess,
		ActorID:   input.CustomerID,
		ActorRole: enums.RoleSystem,
		Automated: true,
	}); err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusPaymentSuccess

	if err := s.inventory.Deduct(ctx, tx, order.ID); err != nil {
		return nil, err
	}

	if err := s.commissions.RecordForOrderInTx(ctx, tx, order); err != nil {
		return nil, err
	}

	if _, err := s.audit.WithTx(tx).Record(ctx, audit.RecordInput{
		EntityType: audit.EntityOrder,
		EntityID:   order.ID,
		Action:     audit.ActionOrderCreated,
		ActorID:    input.CustomerID,
		Details: map[string]any{
			"order_number": order.OrderNumber,
			"total_cents":  total,
			"items":        len(items),
		},
	}); err != nil {
		return nil, err
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: string(enums.RoleCustomer)},
		Data: OrderCreatedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			TotalCents:  total,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, err
	}
	paidEvent := outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: input.CustomerID, Role: string(enums.RoleCustomer)},
		Data: OrderCreatedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			TotalCents:  total,
		},
	}
	if err := s.outbox.Emit(ctx, tx, paidEvent); err != nil {
		return nil, err
	}

	return order, nil
}

// notifyStoreOwners is best-effort and runs after the order commits.
func (s *service) notifyStoreOwners(ctx context.Context, order *models.Order) {
	seen := map[uuid.UUID]bool{}
	for _, item := range order.Items {
		if seen[item.StoreID] {
			continue
		}
		seen[item.StoreID] = true

		ownerID, err := s.owners.OwnerUserID(ctx, item.StoreID)
		if err != nil {
			s.logg.Error(ctx, "store owner lookup failed", err)
			continue
		}
		orderID := order.ID
		s.notifier.Notify(ctx, notifications.NotifyInput{
			UserID:  ownerID,
			Title:   "New order received",
			Message: fmt.Sprintf("Order %s is paid and waiting for acceptance", order.OrderNumber),
			OrderID: &orderID,
		})
	}
}

func validateInput(input CreateOrderInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if strings.TrimSpace(input.PaymentReference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	for i, item := range input.Items {
		if item.ProductID == uuid.Nil || item.StoreID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %d missing product or store", i))
		}
		if item.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %d quantity must be positive", i))
		}
		if item.UnitPriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("item %d price must not be negative", i))
		}
	}
	if input.TipCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "tip must not be negative")
	}
	if missing := input.ShippingAddress.Validate(); len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func paymentMethodOrDefault(method string) string {
	if strings.TrimSpace(method) == "" {
		return "card"
	}
	return method
}

func newOrderNumber() string {
	return "GC-" + strings.ToUpper(uuid.NewString()[:8])
}

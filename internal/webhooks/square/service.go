package squarewebhook

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/internal/inventory"
	"github.com/glowcart/glowcart-backend/internal/orders"
	"github.com/glowcart/glowcart-backend/internal/payments"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/metrics"
	"github.com/glowcart/glowcart-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderTransitioner interface {
	TransitionInTx(ctx context.Context, tx *gorm.DB, input orders.TransitionInput) (*models.Order, error)
}

type commissionRecorder interface {
	RecordForOrderInTx(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// ServiceParams configure the payment webhook processor.
type ServiceParams struct {
	OrdersRepo        orders.Repository
	OrderService      orderTransitioner
	Verifier          payments.Verifier
	Inventory         inventory.Service
	Commissions       commissionRecorder
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.PipelineMetrics
}

// Service reconciles provider payment events against local orders. The
// synchronous checkout path is the primary writer; events only settle orders
// the checkout response never reached.
type Service struct {
	ordersRepo  orders.Repository
	orderSvc    orderTransitioner
	verifier    payments.Verifier
	inventory   inventory.Service
	commissions commissionRecorder
	txRunner    txRunner
	logg        *logger.Logger
	metrics     *metrics.PipelineMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.OrderService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment verifier required")
	}
	if params.Inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory service required")
	}
	if params.Commissions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission recorder required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		ordersRepo:  params.OrdersRepo,
		orderSvc:    params.OrderService,
		verifier:    params.Verifier,
		inventory:   params.Inventory,
		commissions: params.Commissions,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		metrics:     params.Metrics,
	}, nil
}

type SquareWebhookEvent struct {
	EventID string            `json:"event_id"`
	Type    string            `json:"type"`
	Data    SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Type    string                 `json:"type"`
	ID      string                 `json:"id"`
	Payment *square.PaymentDetails `json:"payment"`
}

// HandleEvent processes Square payment lifecycle events.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
		if event.Data.Object.Payment == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
		}
		return s.reconcilePayment(ctx, event.Data.Object.Payment)
	default:
		s.recordResult("ignored")
		return nil
	}
}

func (s *Service) reconcilePayment(ctx context.Context, payment *square.PaymentDetails) error {
	order, err := s.ordersRepo.FindByPaymentIntentID(ctx, payment.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Checkout has not created the order yet; a later redelivery
			// or the synchronous path will settle it.
			s.logg.Info(s.logg.WithField(ctx, "payment_reference", payment.ID), "payment event without matching order")
			s.recordResult("unmatched")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find order for payment")
	}

	switch payment.Status {
	case "COMPLETED":
		return s.settleCompleted(ctx, order, payment)
	case "FAILED", "CANCELED":
		return s.settleFailed(ctx, order, payment)
	default:
		s.recordResult("ignored")
		return nil
	}
}

func (s *Service) settleCompleted(ctx context.Context, order *models.Order, payment *square.PaymentDetails) error {
	if order.Status != enums.OrderStatusPaymentPending {
		s.recordResult("duplicate")
		return nil
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.verifier.VerifyInTx(ctx, tx, payments.VerifyInput{
			OrderID:             order.ID,
			Reference:           payment.ID,
			ExpectedAmountCents: order.TotalCents,
			ExpectedCurrency:    order.Currency,
			ActorID:             audit.SystemActorID,
		}); err != nil {
			return err
		}
		if _, err := s.orderSvc.TransitionInTx(ctx, tx, orders.TransitionInput{
			OrderID:   order.ID,
			Target:    enums.OrderStatusPaymentSuccess,
			ActorID:   audit.SystemActorID,
			ActorRole: enums.RoleSystem,
			Automated: true,
		}); err != nil {
			return err
		}
		if err := s.inventory.Deduct(ctx, tx, order.ID); err != nil {
			return err
		}
		return s.commissions.RecordForOrderInTx(ctx, tx, order)
	})
	if err != nil {
		s.recordResult("error")
		return err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "payment settled from webhook")
	s.recordResult("verified")
	return nil
}

func (s *Service) settleFailed(ctx context.Context, order *models.Order, payment *square.PaymentDetails) error {
	if order.Status != enums.OrderStatusPaymentPending {
		s.recordResult("duplicate")
		return nil
	}

	reason := "payment " + strings.ToLower(payment.Status) + " at provider"
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.orderSvc.TransitionInTx(ctx, tx, orders.TransitionInput{
			OrderID:   order.ID,
			Target:    enums.OrderStatusFailed,
			ActorID:   audit.SystemActorID,
			ActorRole: enums.RoleSystem,
			Reason:    &reason,
			Automated: true,
		}); err != nil {
			return err
		}
		_, err := s.inventory.Release(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		s.recordResult("error")
		return err
	}

	s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "order failed on provider payment event")
	s.recordResult("failed")
	return nil
}

func (s *Service) recordResult(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncWebhookResult(result)
}

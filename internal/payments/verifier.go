package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/audit"
	dbpkg "github.com/glowcart/glowcart-backend/pkg/db"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/square"
)

// providerStatusSucceeded is the Square payment status accepted as settled.
const providerStatusSucceeded = "COMPLETED"

type paymentProvider interface {
	GetPayment(ctx context.Context, paymentID string) (*square.PaymentDetails, error)
}

// Verifier confirms a provider payment against an order before the order is
// allowed to progress. It is the only place payment_status becomes paid.
type Verifier interface {
	VerifyInTx(ctx context.Context, tx *gorm.DB, input VerifyInput) (*models.Payment, error)
}

type verifier struct {
	repo     Repository
	provider paymentProvider
	audit    audit.Service
}

// VerifyInput identifies the provider payment an order claims to be paid by.
type VerifyInput struct {
	OrderID             uuid.UUID
	Reference           string
	ExpectedAmountCents int
	ExpectedCurrency    string
	ActorID             uuid.UUID
}

// NewVerifier builds a payment verifier with the required dependencies.
func NewVerifier(repo Repository, provider paymentProvider, auditSvc audit.Service) (Verifier, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &verifier{repo: repo, provider: provider, audit: auditSvc}, nil
}

// VerifyInTx checks the provider payment and records it inside the caller's
// transaction. A reference that was already verified is rejected; callers
// handling webhook redelivery dedupe on the order's payment_intent_id before
// calling this.
func (v *verifier) VerifyInTx(ctx context.Context, tx *gorm.DB, input VerifyInput) (*models.Payment, error) {
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference required")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.ExpectedAmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expected amount must be positive")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	repo := v.repo.WithTx(tx)

	existing, err := repo.FindByProviderReference(ctx, reference)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up payment reference")
	}
	if existing != nil {
		if existing.OrderID != input.OrderID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment reference already used by another order")
		}
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "payment already verified for this order")
	}

	details, err := v.provider.GetPayment(ctx, reference)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found at provider")
		}
		return nil, err
	}

	if details.Status != providerStatusSucceeded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment has provider status %s, expected %s", details.Status, providerStatusSucceeded))
	}
	if details.AmountCents != int64(input.ExpectedAmountCents) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("payment amount %d does not match order total %d", details.AmountCents, input.ExpectedAmountCents))
	}
	if input.ExpectedCurrency != "" && details.Currency != "" && details.Currency != input.ExpectedCurrency {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("payment currency %s does not match order currency %s", details.Currency, input.ExpectedCurrency))
	}
	if details.OrderReference != "" && details.OrderReference != input.OrderID.String() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment was made for a different order")
	}

	payment := &models.Payment{
		ProviderReference: reference,
		OrderID:           input.OrderID,
		AmountCents:       input.ExpectedAmountCents,
		Currency:          details.Currency,
		ProviderStatus:    details.Status,
	}
	if payment.Currency == "" {
		payment.Currency = "USD"
	}
	if _, err := repo.Create(ctx, payment); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_payments_provider_reference") {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "payment reference already recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}

	if err := repo.MarkOrderPaid(ctx, input.OrderID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}

	if _, err := v.audit.WithTx(tx).Record(ctx, audit.RecordInput{
		EntityType: audit.EntityPayment,
		EntityID:   payment.ID,
		Action:     audit.ActionPaymentVerified,
		ActorID:    input.ActorID,
		Details: map[string]any{
			"order_id":           input.OrderID,
			"provider_reference": reference,
			"amount_cents":       input.ExpectedAmountCents,
		},
	}); err != nil {
		return nil, err
	}

	return payment, nil
}

package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/glowcart/glowcart-backend/api/responses"
	"github.com/glowcart/glowcart-backend/api/validators"
	"github.com/glowcart/glowcart-backend/internal/checkout"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

type checkoutItemRequest struct {
	ProductID      uuid.UUID  `json:"product_id" validate:"required"`
	VariantID      *uuid.UUID `json:"variant_id,omitempty"`
	StoreID        uuid.UUID  `json:"store_id" validate:"required"`
	Name           string     `json:"name" validate:"required"`
	Qty            int        `json:"qty" validate:"required,min=1"`
	UnitPriceCents int        `json:"unit_price_cents" validate:"min=0"`
}

type checkoutRequest struct {
	Items            []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress  types.Address         `json:"shipping_address" validate:"required"`
	PaymentReference string                `json:"payment_reference" validate:"required"`
	PaymentMethod    string                `json:"payment_method,omitempty"`
	TipCents         int                   `json:"tip_cents,omitempty" validate:"min=0"`
}

type checkoutResponse struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	TotalCents  int               `json:"total_cents"`
}

// Checkout creates and pays for an order in one call.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if role != enums.RoleCustomer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can check out"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkout.ItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, checkout.ItemInput{
				ProductID:      item.ProductID,
				VariantID:      item.VariantID,
				StoreID:        item.StoreID,
				Name:           item.Name,
				Qty:            item.Qty,
				UnitPriceCents: item.UnitPriceCents,
			})
		}

		order, err := svc.CreateOrder(r.Context(), checkout.CreateOrderInput{
			CustomerID:       actorID,
			Items:            items,
			ShippingAddress:  req.ShippingAddress,
			PaymentReference: req.PaymentReference,
			PaymentMethod:    req.PaymentMethod,
			TipCents:         req.TipCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toCheckoutResponse(order))
	}
}

func toCheckoutResponse(order *models.Order) checkoutResponse {
	return checkoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		TotalCents:  order.TotalCents,
	}
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/glowcart/glowcart-backend/api/responses"
	"github.com/glowcart/glowcart-backend/api/validators"
	"github.com/glowcart/glowcart-backend/internal/deliveries"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

// GetDelivery returns a delivery leg scoped to the caller.
func GetDelivery(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID, err := validators.ParsePathUUID(chi.URLParam(r, "deliveryID"), "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.Get(r.Context(), deliveries.GetInput{
			DeliveryID: deliveryID,
			ActorID:    actorID,
			ActorRole:  role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

// DeliveryTracking returns the ordered tracking trail for a leg.
func DeliveryTracking(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID, err := validators.ParsePathUUID(chi.URLParam(r, "deliveryID"), "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if _, err := svc.Get(r.Context(), deliveries.GetInput{
			DeliveryID: deliveryID,
			ActorID:    actorID,
			ActorRole:  role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.Tracking(r.Context(), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

type deliveryStatusRequest struct {
	Target   string          `json:"target" validate:"required"`
	Location *types.GeoPoint `json:"location,omitempty"`
	Notes    *string         `json:"notes,omitempty"`
}

// UpdateDeliveryStatus advances one delivery leg.
func UpdateDeliveryStatus(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		deliveryID, err := validators.ParsePathUUID(chi.URLParam(r, "deliveryID"), "deliveryID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req deliveryStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.UpdateStatus(r.Context(), deliveries.UpdateStatusInput{
			DeliveryID: deliveryID,
			Target:     enums.DeliveryStatus(req.Target),
			ActorID:    actorID,
			ActorRole:  role,
			Location:   req.Location,
			Notes:      req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

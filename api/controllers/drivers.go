package controllers

import (
	"net/http"

	"github.com/glowcart/glowcart-backend/api/responses"
	"github.com/glowcart/glowcart-backend/api/validators"
	"github.com/glowcart/glowcart-backend/internal/drivers"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

type heartbeatRequest struct {
	IsOnline bool            `json:"is_online"`
	Location *types.GeoPoint `json:"location,omitempty"`
}

// DriverHeartbeat records the caller's availability and position.
func DriverHeartbeat(svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req heartbeatRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.Heartbeat(r.Context(), drivers.HeartbeatInput{
			DriverID:  actorID,
			ActorID:   actorID,
			ActorRole: role,
			IsOnline:  req.IsOnline,
			Location:  req.Location,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// ListOnlineDrivers returns the currently available fleet.
func ListOnlineDrivers(svc drivers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		statuses, err := svc.ListOnline(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statuses)
	}
}

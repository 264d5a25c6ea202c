package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/glowcart/glowcart-backend/api/responses"
	"github.com/glowcart/glowcart-backend/api/validators"
	"github.com/glowcart/glowcart-backend/internal/audit"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
)

var auditEntityTypes = map[string]bool{
	audit.EntityOrder:    true,
	audit.EntityDelivery: true,
	audit.EntityPayment:  true,
}

// AuditTrail returns the immutable change trail for one entity.
func AuditTrail(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entityType := strings.TrimSpace(chi.URLParam(r, "entityType"))
		if !auditEntityTypes[entityType] {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown entity type"))
			return
		}

		entityID, err := validators.ParsePathUUID(chi.URLParam(r, "entityID"), "entityID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		trail, err := svc.Trail(r.Context(), entityType, entityID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trail)
	}
}

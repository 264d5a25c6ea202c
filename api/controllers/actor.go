package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/glowcart/glowcart-backend/api/middleware"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
)

// requestActor resolves the authenticated user and role from the request
// context seeded by the auth middleware.
func requestActor(r *http.Request) (uuid.UUID, enums.ActorRole, error) {
	rawID := middleware.UserIDFromContext(r.Context())
	if rawID == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	actorID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	role := enums.ActorRole(middleware.RoleFromContext(r.Context()))
	if !role.IsValid() {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid actor role")
	}
	return actorID, role, nil
}

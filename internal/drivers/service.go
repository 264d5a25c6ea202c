package drivers

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/authz"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/types"
)

// Service maintains driver availability. Heartbeats are last-write-wins:
// the driver is the only writer of their own row.
type Service interface {
	Heartbeat(ctx context.Context, input HeartbeatInput) (*models.DriverStatus, error)
	Status(ctx context.Context, driverID uuid.UUID) (*models.DriverStatus, error)
	ListOnline(ctx context.Context) ([]models.DriverStatus, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// HeartbeatInput carries one availability ping from a driver.
type HeartbeatInput struct {
	DriverID  uuid.UUID
	ActorID   uuid.UUID
	ActorRole enums.ActorRole
	IsOnline  bool
	Location  *types.GeoPoint
}

// NewService builds the driver availability service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("drivers repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Heartbeat(ctx context.Context, input HeartbeatInput) (*models.DriverStatus, error) {
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if err := authz.Require(input.ActorRole, authz.ActionHeartbeat); err != nil {
		return nil, err
	}
	if input.ActorRole == enums.RoleDriver && input.ActorID != input.DriverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "drivers may only report their own status")
	}
	if input.Location != nil {
		if err := input.Location.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location")
		}
	}

	status := &models.DriverStatus{
		DriverID:     input.DriverID,
		IsOnline:     input.IsOnline,
		LastLocation: input.Location,
	}
	if err := s.repo.Upsert(ctx, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert driver status")
	}

	logCtx := s.logg.WithField(ctx, "driver_id", input.DriverID.String())
	s.logg.Info(logCtx, "driver heartbeat recorded")
	return status, nil
}

func (s *service) Status(ctx context.Context, driverID uuid.UUID) (*models.DriverStatus, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	status, err := s.repo.Find(ctx, driverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver status not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver status")
	}
	return status, nil
}

func (s *service) ListOnline(ctx context.Context) ([]models.DriverStatus, error) {
	statuses, err := s.repo.ListOnline(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list online drivers")
	}
	return statuses, nil
}

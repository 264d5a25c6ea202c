package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/glowcart/glowcart-backend/internal/assignment"
	"github.com/glowcart/glowcart-backend/internal/audit"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	"github.com/glowcart/glowcart-backend/pkg/logger"
)

const retryBatchSize = 50

type waitingOrderReader interface {
	FindWaitingForDriverBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderAssigner interface {
	Assign(ctx context.Context, input assignment.AssignInput) (*assignment.Result, error)
}

// AssignmentRetryJobParams configure the parked-order retry sweep.
type AssignmentRetryJobParams struct {
	Logger   *logger.Logger
	Orders   waitingOrderReader
	Assigner orderAssigner
	// MinAge keeps the sweep from racing an attempt that just parked
	// the order.
	MinAge time.Duration
}

type assignmentRetryJob struct {
	logg     *logger.Logger
	orders   waitingOrderReader
	assigner orderAssigner
	minAge   time.Duration
	now      func() time.Time
}

// NewAssignmentRetryJob builds the job that re-runs driver assignment for
// orders parked in waiting_for_driver.
func NewAssignmentRetryJob(params AssignmentRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Assigner == nil {
		return nil, fmt.Errorf("assigner required")
	}
	minAge := params.MinAge
	if minAge < 0 {
		minAge = 0
	}
	return &assignmentRetryJob{
		logg:     params.Logger,
		orders:   params.Orders,
		assigner: params.Assigner,
		minAge:   minAge,
		now:      time.Now,
	}, nil
}

func (j *assignmentRetryJob) Name() string { return "assignment_retry" }

// Run retries assignment per order independently. An order that still has
// no available driver stays parked and is picked up by the next sweep; one
// failing order never blocks the rest of the batch.
func (j *assignmentRetryJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.minAge)
	waiting, err := j.orders.FindWaitingForDriverBefore(ctx, cutoff, retryBatchSize)
	if err != nil {
		return fmt.Errorf("load waiting orders: %w", err)
	}
	if len(waiting) == 0 {
		return nil
	}

	assigned := 0
	var errs []error
	for _, order := range waiting {
		result, err := j.assigner.Assign(ctx, assignment.AssignInput{
			OrderID:   order.ID,
			ActorID:   audit.SystemActorID,
			ActorRole: enums.RoleSystem,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			j.logg.Error(j.orderCtx(ctx, order.ID), "assignment retry failed", err)
			continue
		}
		if result.Assigned {
			assigned++
		}
	}

	runCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(waiting),
		"assigned":   assigned,
	})
	j.logg.Info(runCtx, "assignment retry sweep complete")
	return multierr.Combine(errs...)
}

func (j *assignmentRetryJob) orderCtx(ctx context.Context, orderID uuid.UUID) context.Context {
	return j.logg.WithOrderID(ctx, orderID.String())
}

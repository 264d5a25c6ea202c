package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
	"github.com/glowcart/glowcart-backend/pkg/metrics"
)

// Service fans out notifications per the user's channel preferences. Notify
// is best-effort: a notification failure must never fail or roll back the
// operation that triggered it, so Notify logs and returns nothing.
type Service interface {
	Notify(ctx context.Context, input NotifyInput)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error
	Preferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error)
	UpdatePreferences(ctx context.Context, prefs *models.NotificationPreference) error
}

type service struct {
	repo    Repository
	logg    *logger.Logger
	metrics *metrics.PipelineMetrics
}

// NotifyInput is one logical notification before channel fan-out.
type NotifyInput struct {
	UserID  uuid.UUID
	Title   string
	Message string
	OrderID *uuid.UUID
}

// NewService builds the notification dispatcher.
func NewService(repo Repository, logg *logger.Logger, pipeline *metrics.PipelineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg, metrics: pipeline}, nil
}

func (s *service) Notify(ctx context.Context, input NotifyInput) {
	if input.UserID == uuid.Nil || input.Title == "" {
		s.logg.Warn(ctx, "notification dropped: missing user or title")
		return
	}

	logCtx := s.logg.WithUserID(ctx, input.UserID.String())

	prefs, err := s.repo.FindPreferences(ctx, input.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logg.Error(logCtx, "notification preferences lookup failed", err)
		return
	}
	// Absent rows default to everything enabled.
	if prefs == nil {
		prefs = &models.NotificationPreference{
			UserID:              input.UserID,
			EmailEnabled:        true,
			PushEnabled:         true,
			InAppEnabled:        true,
			OrderUpdatesEnabled: true,
		}
	}

	if input.OrderID != nil && !prefs.OrderUpdatesEnabled {
		s.logg.Info(logCtx, "order notification suppressed by preferences")
		return
	}

	channels := map[enums.NotificationChannel]bool{
		enums.NotificationChannelEmail: prefs.EmailEnabled,
		enums.NotificationChannelPush:  prefs.PushEnabled,
		enums.NotificationChannelInApp: prefs.InAppEnabled,
	}
	for channel, enabled := range channels {
		if !enabled {
			continue
		}
		notification := &models.Notification{
			UserID:  input.UserID,
			Channel: channel,
			Title:   input.Title,
			Message: input.Message,
			OrderID: input.OrderID,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			s.logg.Error(logCtx, "notification write failed", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.IncNotificationDispatched(string(channel))
		}
	}
}

func (s *service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return notifications, nil
}

func (s *service) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	if notificationID == uuid.Nil || userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id and user id required")
	}
	updated, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found or already read")
	}
	return nil
}

func (s *service) Preferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	prefs, err := s.repo.FindPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.NotificationPreference{
				UserID:              userID,
				EmailEnabled:        true,
				PushEnabled:         true,
				InAppEnabled:        true,
				OrderUpdatesEnabled: true,
			}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load preferences")
	}
	return prefs, nil
}

func (s *service) UpdatePreferences(ctx context.Context, prefs *models.NotificationPreference) error {
	if prefs == nil || prefs.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := s.repo.UpsertPreferences(ctx, prefs); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save preferences")
	}
	return nil
}

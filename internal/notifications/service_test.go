package notifications

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glowcart/glowcart-backend/internal/testdb"
	"github.com/glowcart/glowcart-backend/pkg/db/models"
	"github.com/glowcart/glowcart-backend/pkg/enums"
	pkgerrors "github.com/glowcart/glowcart-backend/pkg/errors"
	"github.com/glowcart/glowcart-backend/pkg/logger"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := testdb.New(t, "notifications", "notification_preferences")
	svc, err := NewService(NewRepository(db), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}), nil)
	require.NoError(t, err)
	return svc, db
}

func TestNotifyDefaultsToAllChannels(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	userID := uuid.New()
	orderID := uuid.New()

	svc.Notify(context.Background(), NotifyInput{
		UserID:  userID,
		Title:   "New order",
		Message: "Order GC-1234 is waiting for acceptance",
		OrderID: &orderID,
	})

	var rows []models.Notification
	require.NoError(t, db.Find(&rows, "user_id = ?", userID).Error)
	require.Len(t, rows, 3)

	channels := map[enums.NotificationChannel]bool{}
	for _, row := range rows {
		channels[row.Channel] = true
		require.Equal(t, &orderID, row.OrderID)
	}
	require.True(t, channels[enums.NotificationChannelEmail])
	require.True(t, channels[enums.NotificationChannelPush])
	require.True(t, channels[enums.NotificationChannelInApp])
}

func TestNotifyRespectsChannelPreferences(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	userID := uuid.New()
	require.NoError(t, db.Create(&models.NotificationPreference{
		UserID:              userID,
		EmailEnabled:        false,
		PushEnabled:         false,
		InAppEnabled:        true,
		OrderUpdatesEnabled: true,
	}).Error)

	svc.Notify(context.Background(), NotifyInput{
		UserID:  userID,
		Title:   "Driver assigned",
		Message: "Your order is on the way",
	})

	var rows []models.Notification
	require.NoError(t, db.Find(&rows, "user_id = ?", userID).Error)
	require.Len(t, rows, 1)
	require.Equal(t, enums.NotificationChannelInApp, rows[0].Channel)
}

func TestNotifySuppressesOrderUpdates(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	userID := uuid.New()
	orderID := uuid.New()
	require.NoError(t, db.Create(&models.NotificationPreference{
		UserID:              userID,
		EmailEnabled:        true,
		PushEnabled:         true,
		InAppEnabled:        true,
		OrderUpdatesEnabled: false,
	}).Error)

	svc.Notify(context.Background(), NotifyInput{
		UserID:  userID,
		Title:   "Order delivered",
		Message: "Enjoy!",
		OrderID: &orderID,
	})

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error)
	require.Zero(t, count)

	// Non-order notifications still go out.
	svc.Notify(context.Background(), NotifyInput{
		UserID:  userID,
		Title:   "Password changed",
		Message: "Your password was updated",
	})
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error)
	require.Equal(t, int64(3), count)
}

func TestMarkRead(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	userID := uuid.New()

	svc.Notify(context.Background(), NotifyInput{UserID: userID, Title: "Hi", Message: "there"})

	var rows []models.Notification
	require.NoError(t, db.Find(&rows, "user_id = ?", userID).Error)
	require.NotEmpty(t, rows)

	require.NoError(t, svc.MarkRead(context.Background(), rows[0].ID, userID))

	err := svc.MarkRead(context.Background(), rows[0].ID, userID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	unread, err := svc.List(context.Background(), userID, true)
	require.NoError(t, err)
	require.Len(t, unread, len(rows)-1)
}

func TestUpdatePreferencesRoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	prefs, err := svc.Preferences(ctx, userID)
	require.NoError(t, err)
	require.True(t, prefs.EmailEnabled)

	prefs.EmailEnabled = false
	require.NoError(t, svc.UpdatePreferences(ctx, prefs))

	reloaded, err := svc.Preferences(ctx, userID)
	require.NoError(t, err)
	require.False(t, reloaded.EmailEnabled)
	require.True(t, reloaded.PushEnabled)
}

// Package notify dispatches schedule notifications to Kakao recipients and
// manages per-user notification preferences.
//
// Dispatch runs off the request path, consuming committed lifecycle events.
// Each recipient gets an auditable PENDING record before the first send
// attempt, a bounded retry budget, and full fault isolation from the other
// recipients in the batch.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamsched/internal/apperr"
	"teamsched/internal/events"
	"teamsched/internal/metrics"
	"teamsched/internal/models"
)

const (
	maxAttempts = 3

	timeLayout = "2006-01-02 15:04"
)

// Sender delivers one message to one recipient's external token.
type Sender interface {
	Send(ctx context.Context, recipientToken, message string) error
}

// Dispatcher fans committed schedule events out to eligible recipients.
type Dispatcher struct {
	db     *gorm.DB
	sender Sender
	log    zerolog.Logger
	now    func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(db *gorm.DB, sender Sender, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{db: db, sender: sender, log: log, now: time.Now}
}

// WithClock overrides the dispatcher clock. Test hook.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// HandleScheduleEvent delivers the event to every user holding an outbound
// Kakao credential. No eligible recipients is trivial success. Always
// returns nil: delivery failures are recorded per recipient, never
// propagated.
func (d *Dispatcher) HandleScheduleEvent(ctx context.Context, ev events.ScheduleEvent) error {
	var users []models.User
	err := d.db.WithContext(ctx).
		Where("kakao_access_token IS NOT NULL AND kakao_access_token <> ''").
		Find(&users).Error
	if err != nil {
		d.log.Error().Err(err).Uint("schedule_id", ev.ScheduleID).Msg("recipient load failed")
		return err
	}

	if len(users) == 0 {
		d.log.Debug().Uint("schedule_id", ev.ScheduleID).Msg("no notification recipients")
		return nil
	}

	message := BuildMessage(ev)
	d.log.Debug().
		Uint("schedule_id", ev.ScheduleID).
		Str("type", string(ev.Type)).
		Int("recipients", len(users)).
		Msg("dispatching schedule notification")

	for i := range users {
		if err := d.deliver(ctx, ev, &users[i], message); err != nil {
			d.log.Error().Err(err).
				Uint("user_id", users[i].ID).
				Uint("schedule_id", ev.ScheduleID).
				Msg("notification delivery failed")
		}
	}
	return nil
}

// deliver persists the PENDING trail, attempts delivery up to maxAttempts,
// and records the terminal outcome. The returned error is informational for
// the caller's log; a failure for one recipient must not affect the rest of
// the batch.
func (d *Dispatcher) deliver(ctx context.Context, ev events.ScheduleEvent, user *models.User, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.ErrNotificationSendFailed.Wrap(fmt.Errorf("delivery panicked: %v", r))
		}
	}()

	notification := models.Notification{
		UserID:  user.ID,
		Type:    ev.Type,
		Channel: models.ChannelKakao,
		Status:  models.NotificationPending,
		Message: message,
	}
	if ev.ScheduleID != 0 {
		scheduleID := ev.ScheduleID
		notification.ScheduleID = &scheduleID
	}
	if err := d.db.WithContext(ctx).Create(&notification).Error; err != nil {
		d.log.Error().Err(err).Uint("user_id", user.ID).Msg("notification record create failed")
		return err
	}

	sent := false
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !user.HasKakaoToken() {
			// No credential, nothing to retry.
			lastErr = errors.New("no kakao access token")
			d.log.Warn().Uint("user_id", user.ID).Msg("no kakao access token, skipping delivery")
			break
		}

		metrics.NotificationAttempts.Inc()
		if err := d.sender.Send(ctx, *user.KakaoAccessToken, message); err != nil {
			lastErr = err
			d.log.Warn().Err(err).Uint("user_id", user.ID).Int("attempt", attempt).Msg("notification send failed")
			continue
		}

		notification.MarkSuccess(d.now())
		if err := d.db.WithContext(ctx).Model(&notification).Updates(map[string]any{
			"status":  notification.Status,
			"sent_at": notification.SentAt,
		}).Error; err != nil {
			d.log.Error().Err(err).Uint("user_id", user.ID).Msg("notification status update failed")
		}
		sent = true
		d.log.Debug().Uint("user_id", user.ID).Int("attempt", attempt).Msg("notification sent")
		break
	}

	if !sent {
		notification.MarkFailed()
		if err := d.db.WithContext(ctx).Model(&notification).
			Update("status", notification.Status).Error; err != nil {
			d.log.Error().Err(err).Uint("user_id", user.ID).Msg("notification status update failed")
		}
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		return apperr.ErrNotificationSendFailed.Wrap(lastErr)
	}
	metrics.NotificationsSent.WithLabelValues("success").Inc()
	return nil
}

// ListForUser returns every notification for the user, newest first. No
// status filtering.
func (d *Dispatcher) ListForUser(ctx context.Context, userID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&notifications).Error
	return notifications, err
}

// BuildMessage renders the notification body for an event. Created and
// updated events carry title and formatted start/end; deleted carries only
// the title.
func BuildMessage(ev events.ScheduleEvent) string {
	switch ev.Type {
	case models.NotifyScheduleUpdated:
		return fmt.Sprintf("[teamsched] Schedule updated.\nTitle: %s\nStarts: %s\nEnds: %s",
			ev.Title, ev.StartAt.Format(timeLayout), ev.EndAt.Format(timeLayout))
	case models.NotifyScheduleDeleted:
		return fmt.Sprintf("[teamsched] Schedule deleted.\nTitle: %s", ev.Title)
	default:
		return fmt.Sprintf("[teamsched] New schedule created.\nTitle: %s\nStarts: %s\nEnds: %s",
			ev.Title, ev.StartAt.Format(timeLayout), ev.EndAt.Format(timeLayout))
	}
}

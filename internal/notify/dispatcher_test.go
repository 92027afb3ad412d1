package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"teamsched/internal/apperr"
	"teamsched/internal/dbtest"
	"teamsched/internal/events"
	"teamsched/internal/models"
)

// scriptedSender fails a configured number of times per token before
// succeeding, and records every attempt.
type scriptedSender struct {
	failures map[string]int
	attempts map[string]int
}

func newScriptedSender() *scriptedSender {
	return &scriptedSender{failures: map[string]int{}, attempts: map[string]int{}}
}

func (s *scriptedSender) Send(_ context.Context, token, _ string) error {
	s.attempts[token]++
	if s.failures[token] > 0 {
		s.failures[token]--
		return errors.New("provider unavailable")
	}
	return nil
}

func seedUser(t *testing.T, db *gorm.DB, name, kakaoToken string) *models.User {
	t.Helper()
	user := models.User{Name: name}
	if kakaoToken != "" {
		user.KakaoAccessToken = &kakaoToken
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedSchedule(t *testing.T, db *gorm.DB, creator uint) *models.Schedule {
	t.Helper()
	team := models.Team{Name: "ops", CreatedBy: creator}
	if err := db.Create(&team).Error; err != nil {
		t.Fatalf("seed team: %v", err)
	}
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	schedule := models.Schedule{
		TeamID:    team.ID,
		Title:     "standup",
		Type:      models.ScheduleWork,
		StartAt:   start,
		EndAt:     start.Add(time.Hour),
		CreatedBy: creator,
	}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatalf("seed schedule: %v", err)
	}
	return &schedule
}

func notificationFor(t *testing.T, db *gorm.DB, userID uint) *models.Notification {
	t.Helper()
	var n models.Notification
	if err := db.Where("user_id = ?", userID).First(&n).Error; err != nil {
		t.Fatalf("load notification for user %d: %v", userID, err)
	}
	return &n
}

func TestHandleScheduleEventRecipientIsolation(t *testing.T) {
	db := dbtest.Open(t)
	broken := seedUser(t, db, "broken", "token-broken")
	healthy := seedUser(t, db, "healthy", "token-healthy")
	seedUser(t, db, "no-kakao", "")
	schedule := seedSchedule(t, db, healthy.ID)

	sender := newScriptedSender()
	sender.failures["token-broken"] = maxAttempts

	d := NewDispatcher(db, sender, zerolog.Nop())
	ev := events.FromSchedule(schedule, models.NotifyScheduleCreated)
	if err := d.HandleScheduleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleScheduleEvent: %v", err)
	}

	if got := sender.attempts["token-broken"]; got != maxAttempts {
		t.Errorf("broken recipient attempts = %d, want %d", got, maxAttempts)
	}
	if got := sender.attempts["token-healthy"]; got != 1 {
		t.Errorf("healthy recipient attempts = %d, want 1", got)
	}

	failed := notificationFor(t, db, broken.ID)
	if failed.Status != models.NotificationFailed {
		t.Errorf("broken recipient status = %s, want FAILED", failed.Status)
	}
	if failed.SentAt != nil {
		t.Errorf("failed notification has sent_at set")
	}

	succeeded := notificationFor(t, db, healthy.ID)
	if succeeded.Status != models.NotificationSuccess {
		t.Errorf("healthy recipient status = %s, want SUCCESS", succeeded.Status)
	}
	if succeeded.SentAt == nil {
		t.Errorf("successful notification missing sent_at")
	}

	// The user without a Kakao token is not a recipient at all.
	var count int64
	db.Model(&models.Notification{}).Count(&count)
	if count != 2 {
		t.Errorf("notification rows = %d, want 2", count)
	}
}

func TestDeliverClassifiesExhaustedFailure(t *testing.T) {
	db := dbtest.Open(t)
	broken := seedUser(t, db, "broken", "token-broken")
	schedule := seedSchedule(t, db, broken.ID)

	sender := newScriptedSender()
	sender.failures["token-broken"] = maxAttempts

	d := NewDispatcher(db, sender, zerolog.Nop())
	ev := events.FromSchedule(schedule, models.NotifyScheduleCreated)
	err := d.deliver(context.Background(), ev, broken, BuildMessage(ev))
	if !errors.Is(err, apperr.ErrNotificationSendFailed) {
		t.Fatalf("deliver error = %v, want NOTIFICATION_SEND_FAILED", err)
	}
	if !strings.Contains(err.Error(), "provider unavailable") {
		t.Errorf("classified error %q does not carry the provider cause", err)
	}

	if n := notificationFor(t, db, broken.ID); n.Status != models.NotificationFailed {
		t.Errorf("status = %s, want FAILED", n.Status)
	}
}

func TestHandleScheduleEventNoRecipients(t *testing.T) {
	db := dbtest.Open(t)
	creator := seedUser(t, db, "creator", "")
	schedule := seedSchedule(t, db, creator.ID)

	sender := newScriptedSender()
	d := NewDispatcher(db, sender, zerolog.Nop())
	if err := d.HandleScheduleEvent(context.Background(), events.FromSchedule(schedule, models.NotifyScheduleCreated)); err != nil {
		t.Fatalf("HandleScheduleEvent: %v", err)
	}

	if len(sender.attempts) != 0 {
		t.Errorf("sender called with no recipients: %v", sender.attempts)
	}
	var count int64
	db.Model(&models.Notification{}).Count(&count)
	if count != 0 {
		t.Errorf("notification rows = %d, want 0", count)
	}
}

func TestHandleScheduleEventRetryThenSuccess(t *testing.T) {
	db := dbtest.Open(t)
	user := seedUser(t, db, "flaky", "token-flaky")
	schedule := seedSchedule(t, db, user.ID)

	sender := newScriptedSender()
	sender.failures["token-flaky"] = maxAttempts - 1

	d := NewDispatcher(db, sender, zerolog.Nop())
	if err := d.HandleScheduleEvent(context.Background(), events.FromSchedule(schedule, models.NotifyScheduleUpdated)); err != nil {
		t.Fatalf("HandleScheduleEvent: %v", err)
	}

	if got := sender.attempts["token-flaky"]; got != maxAttempts {
		t.Errorf("attempts = %d, want %d", got, maxAttempts)
	}
	n := notificationFor(t, db, user.ID)
	if n.Status != models.NotificationSuccess {
		t.Errorf("status = %s, want SUCCESS", n.Status)
	}
	if n.Type != models.NotifyScheduleUpdated {
		t.Errorf("type = %s, want SCHEDULE_UPDATED", n.Type)
	}
}

func TestBuildMessage(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC)
	ev := events.ScheduleEvent{
		Type:    models.NotifyScheduleCreated,
		Title:   "standup",
		StartAt: start,
		EndAt:   start.Add(time.Hour),
	}

	tests := []struct {
		name       string
		typ        models.NotificationType
		wantParts  []string
		noSchedule bool
	}{
		{
			name:      "created carries times",
			typ:       models.NotifyScheduleCreated,
			wantParts: []string{"New schedule created", "standup", "2026-09-01 09:30", "2026-09-01 10:30"},
		},
		{
			name:      "updated carries times",
			typ:       models.NotifyScheduleUpdated,
			wantParts: []string{"Schedule updated", "standup", "2026-09-01 09:30", "2026-09-01 10:30"},
		},
		{
			name:       "deleted carries title only",
			typ:        models.NotifyScheduleDeleted,
			wantParts:  []string{"Schedule deleted", "standup"},
			noSchedule: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev.Type = tc.typ
			msg := BuildMessage(ev)
			for _, part := range tc.wantParts {
				if !strings.Contains(msg, part) {
					t.Errorf("message %q missing %q", msg, part)
				}
			}
			if tc.noSchedule && strings.Contains(msg, "2026-09-01") {
				t.Errorf("deleted message should not carry times: %q", msg)
			}
		})
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	db := dbtest.Open(t)
	user := seedUser(t, db, "reader", "token-reader")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		n := models.Notification{
			UserID:    user.ID,
			Type:      models.NotifyScheduleCreated,
			Channel:   models.ChannelKakao,
			Status:    models.NotificationSuccess,
			Message:   "m",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.Create(&n).Error; err != nil {
			t.Fatalf("seed notification: %v", err)
		}
	}

	d := NewDispatcher(db, newScriptedSender(), zerolog.Nop())
	got, err := d.ListForUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.After(got[i-1].CreatedAt) {
			t.Errorf("notifications not in newest-first order at index %d", i)
		}
	}
}

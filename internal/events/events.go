// Package events defines the schedule lifecycle events emitted after a
// mutation commits, and the publisher contract connecting mutations to the
// notification dispatcher. Publishers must only be invoked after the
// enclosing transaction has committed; a rolled-back mutation never emits.
package events

import (
	"context"
	"time"

	"teamsched/internal/models"
)

// NATS subjects for schedule lifecycle events.
const (
	SubjectScheduleCreated = "teamsched.schedules.created"
	SubjectScheduleUpdated = "teamsched.schedules.updated"
	SubjectScheduleDeleted = "teamsched.schedules.deleted"

	// SubjectScheduleAll matches every schedule lifecycle subject.
	SubjectScheduleAll = "teamsched.schedules.*"

	// StreamSchedules is the JetStream stream retaining lifecycle events.
	StreamSchedules = "TEAMSCHED_SCHEDULES"
)

// ScheduleEvent is the payload handed to the notification dispatcher.
type ScheduleEvent struct {
	Type       models.NotificationType `json:"type"`
	ScheduleID uint                    `json:"schedule_id"`
	TeamID     uint                    `json:"team_id"`
	Title      string                  `json:"title"`
	StartAt    time.Time               `json:"start_at"`
	EndAt      time.Time               `json:"end_at"`
}

// Subject returns the NATS subject for the event's type.
func (e ScheduleEvent) Subject() string {
	switch e.Type {
	case models.NotifyScheduleUpdated:
		return SubjectScheduleUpdated
	case models.NotifyScheduleDeleted:
		return SubjectScheduleDeleted
	default:
		return SubjectScheduleCreated
	}
}

// FromSchedule builds the event payload for a committed schedule mutation.
func FromSchedule(s *models.Schedule, typ models.NotificationType) ScheduleEvent {
	return ScheduleEvent{
		Type:       typ,
		ScheduleID: s.ID,
		TeamID:     s.TeamID,
		Title:      s.Title,
		StartAt:    s.StartAt,
		EndAt:      s.EndAt,
	}
}

// Publisher delivers committed schedule events to the dispatch side.
type Publisher interface {
	PublishSchedule(ctx context.Context, ev ScheduleEvent) error
}

// Handler consumes schedule events on the dispatch side.
type Handler interface {
	HandleScheduleEvent(ctx context.Context, ev ScheduleEvent) error
}

// DirectPublisher invokes the handler synchronously in-process. Used in
// single-process deployments where no broker is configured; the caller is
// still required to publish only after commit.
type DirectPublisher struct {
	Handler Handler
}

// PublishSchedule hands the event straight to the handler on a detached
// context so dispatch latency and failures stay off the request path.
func (p *DirectPublisher) PublishSchedule(_ context.Context, ev ScheduleEvent) error {
	go func() {
		_ = p.Handler.HandleScheduleEvent(context.Background(), ev)
	}()
	return nil
}

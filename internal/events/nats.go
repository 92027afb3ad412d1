package events

import (
	"context"
	"encoding/json"
	"io"

	"teamsched/pkg/bus"
)

// NATSPublisher publishes schedule events onto the JetStream bus.
type NATSPublisher struct {
	Bus *bus.Bus
}

// PublishSchedule publishes ev to its lifecycle subject.
func (p *NATSPublisher) PublishSchedule(ctx context.Context, ev ScheduleEvent) error {
	return p.Bus.Publish(ctx, ev.Subject(), ev)
}

// Consume wires a durable subscription on all schedule subjects to the
// handler. The returned closer drains the subscription.
func Consume(ctx context.Context, b *bus.Bus, durable string, h Handler) (io.Closer, error) {
	return b.Subscribe(ctx, SubjectScheduleAll, durable, func(ctx context.Context, data []byte) error {
		var ev ScheduleEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			// Poison message; ack it rather than redeliver forever.
			return nil
		}
		return h.HandleScheduleEvent(ctx, ev)
	})
}

package metrics

import (
	"context"

	"github.com/maternar/sync-engine/internal/event"
)

// SubscribeToEvents wires the business counters to the event bus so metrics
// stay out of the engine's hot path
func SubscribeToEvents(bus event.Bus) {
	bus.Subscribe(event.ConflictDetected, func(ctx context.Context, evt event.Event) error {
		if p, ok := evt.Payload.(event.ConflictDetectedPayloadV1); ok {
			ConflictsDetected.WithLabelValues(string(p.EntityType)).Inc()
		}
		return nil
	})

	bus.Subscribe(event.ConflictResolved, func(ctx context.Context, evt event.Event) error {
		if p, ok := evt.Payload.(event.ConflictResolvedPayloadV1); ok {
			ConflictsResolved.WithLabelValues(string(p.Resolution)).Inc()
		}
		return nil
	})

	bus.Subscribe(event.PushCompleted, func(ctx context.Context, evt event.Event) error {
		if p, ok := evt.Payload.(event.PushCompletedPayloadV1); ok {
			SessionDuration.WithLabelValues("push").Observe(float64(p.DurationMs) / 1000)
		}
		return nil
	})

	bus.Subscribe(event.PullCompleted, func(ctx context.Context, evt event.Event) error {
		if p, ok := evt.Payload.(event.PullCompletedPayloadV1); ok {
			SessionDuration.WithLabelValues("pull").Observe(float64(p.DurationMs) / 1000)
		}
		return nil
	})
}

package broker

import (
	"context"

	"pos-service/internal/models"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// EventPublisher pushes outbound notifications onto the fan-out topic.
// Delivery is best-effort: failures are logged and counted but never
// surfaced to the caller, because the channel is advisory and must not
// roll back committed state.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
}

// NewEventPublisher creates an event publisher.
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{
		producer: producer,
		logger:   util.GetLogger(),
	}
}

// Publish writes each event keyed by its first room so events for one room
// stay ordered.
func (ep *EventPublisher) Publish(ctx context.Context, events ...models.Event) {
	for _, event := range events {
		key := event.Name
		if len(event.Rooms) > 0 {
			key = event.Rooms[0]
		}
		if err := ep.producer.WriteJSON(ctx, key, event); err != nil {
			util.NotifyPublishFailures.Inc()
			ep.logger.Error("Failed to publish event",
				zap.String("event", event.Name),
				zap.Strings("rooms", event.Rooms),
				zap.Error(err))
		}
	}
}

package worker

import (
	"context"
	"encoding/json"
	"log"

	"pos-service/internal/broker"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// RoomNotifier delivers one event to every subscriber of its rooms. The
// realtime channel itself (connection handling, room membership) lives
// outside this service; implementations adapt to it.
type RoomNotifier interface {
	Notify(ctx context.Context, event models.Event) error
}

// LogNotifier is the default notifier: it records deliveries and drops
// them. Useful in development and as a stand-in when no realtime gateway
// is attached.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: util.GetLogger()}
}

// Notify logs the event delivery.
func (n *LogNotifier) Notify(_ context.Context, event models.Event) error {
	n.logger.Debug("Event delivered",
		zap.String("event", event.Name),
		zap.Strings("rooms", event.Rooms))
	return nil
}

// NotificationWorker consumes the fan-out topic and hands each event to the
// room notifier.
type NotificationWorker struct {
	consumer *broker.Consumer
	notifier RoomNotifier
}

// NewNotificationWorker creates a notification worker.
func NewNotificationWorker(consumer *broker.Consumer, notifier RoomNotifier) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		notifier: notifier,
	}
}

// Start consumes until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop closes the consumer.
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// A malformed message is committed and dropped; retrying cannot fix it.
		log.Printf("Dropping malformed event: %v", err)
		return nil
	}
	return w.notifier.Notify(ctx, event)
}

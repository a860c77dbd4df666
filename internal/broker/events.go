package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"export-import-service/internal/models"
	"export-import-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing ledger events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// Events of one identity share a key so they stay ordered within a partition.
func identityKey(identity string) string {
	return fmt.Sprintf("identity-%s", identity)
}

// PublishImportRecorded publishes ImportRecorded event
func (ep *EventPublisher) PublishImportRecorded(ctx context.Context, event *models.ImportRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, identityKey(event.ImportedBy), event.EventType, event)
}

// PublishImportDeleted publishes ImportDeleted event
func (ep *EventPublisher) PublishImportDeleted(ctx context.Context, event *models.ImportDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, identityKey(event.ImportedBy), event.EventType, event)
}

// PublishExportChanged publishes ExportCreated, ExportUpdated or ExportDeleted events
func (ep *EventPublisher) PublishExportChanged(ctx context.Context, event *models.ExportChangedEvent) error {
	return ep.producer.PublishEvent(ctx, identityKey(event.AddedBy), event.EventType, event)
}

// NoopPublisher drops every event; used when Kafka is disabled
type NoopPublisher struct{}

func (NoopPublisher) PublishImportRecorded(context.Context, *models.ImportRecordedEvent) error {
	return nil
}

func (NoopPublisher) PublishImportDeleted(context.Context, *models.ImportDeletedEvent) error {
	return nil
}

func (NoopPublisher) PublishExportChanged(context.Context, *models.ExportChangedEvent) error {
	return nil
}

// EventHandler handles incoming events
type EventHandler struct {
	onImportRecorded func(context.Context, *models.ImportRecordedEvent) error
	onImportDeleted  func(context.Context, *models.ImportDeletedEvent) error
	onExportChanged  func(context.Context, *models.ExportChangedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnImportRecorded registers a handler for ImportRecorded events
func (eh *EventHandler) OnImportRecorded(handler func(context.Context, *models.ImportRecordedEvent) error) {
	eh.onImportRecorded = handler
}

// OnImportDeleted registers a handler for ImportDeleted events
func (eh *EventHandler) OnImportDeleted(handler func(context.Context, *models.ImportDeletedEvent) error) {
	eh.onImportDeleted = handler
}

// OnExportChanged registers a handler for all export events
func (eh *EventHandler) OnExportChanged(handler func(context.Context, *models.ExportChangedEvent) error) {
	eh.onExportChanged = handler
}

// HandleMessage routes messages to appropriate handlers. The event type header
// wins over the payload's event_type, which is only read when it is missing.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}
	if typ := headerValue(msg, eventTypeHeader); typ != "" {
		baseEvent.EventType = typ
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeImportRecorded:
		if eh.onImportRecorded != nil {
			var event models.ImportRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ImportRecorded event: %w", err)
			}
			return eh.onImportRecorded(ctx, &event)
		}

	case models.EventTypeImportDeleted:
		if eh.onImportDeleted != nil {
			var event models.ImportDeletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ImportDeleted event: %w", err)
			}
			return eh.onImportDeleted(ctx, &event)
		}

	case models.EventTypeExportCreated, models.EventTypeExportUpdated, models.EventTypeExportDeleted:
		if eh.onExportChanged != nil {
			var event models.ExportChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onExportChanged(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}

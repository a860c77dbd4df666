package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"export-import-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestHandleMessageRoutesImportRecorded(t *testing.T) {
	eh := NewEventHandler()

	var got *models.ImportRecordedEvent
	eh.OnImportRecorded(func(_ context.Context, e *models.ImportRecordedEvent) error {
		got = e
		return nil
	})

	event := &models.ImportRecordedEvent{
		BaseEvent:        models.BaseEvent{EventID: "e1", EventType: models.EventTypeImportRecorded, Timestamp: time.Now()},
		ImportID:         "imp-1",
		ImportedBy:       "a@example.com",
		ImportedQuantity: 2,
		ProductSnapshot:  models.ProductSnapshot{Name: "Saffron", Price: 30},
	}
	require.NoError(t, eh.HandleMessage(context.Background(), message(t, event)))

	require.NotNil(t, got)
	assert.Equal(t, "imp-1", got.ImportID)
	assert.Equal(t, 30.0, got.ProductSnapshot.Price)
}

func TestHandleMessageRoutesAllExportEvents(t *testing.T) {
	eh := NewEventHandler()

	var types []string
	eh.OnExportChanged(func(_ context.Context, e *models.ExportChangedEvent) error {
		types = append(types, e.EventType)
		return nil
	})

	for _, typ := range []string{models.EventTypeExportCreated, models.EventTypeExportUpdated, models.EventTypeExportDeleted} {
		event := &models.ExportChangedEvent{
			BaseEvent: models.BaseEvent{EventID: typ, EventType: typ},
			ExportID:  "exp-1",
			AddedBy:   "s@example.com",
		}
		require.NoError(t, eh.HandleMessage(context.Background(), message(t, event)))
	}

	assert.Equal(t, []string{models.EventTypeExportCreated, models.EventTypeExportUpdated, models.EventTypeExportDeleted}, types)
}

func TestHandleMessageIgnoresUnknownAndRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()

	unknown := message(t, models.BaseEvent{EventID: "x", EventType: "SOMETHING_ELSE"})
	assert.NoError(t, eh.HandleMessage(context.Background(), unknown))

	assert.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "identity-a@example.com", identityKey("a@example.com"))
}

func TestHandleMessagePrefersTypeHeader(t *testing.T) {
	eh := NewEventHandler()

	deleted := 0
	eh.OnImportDeleted(func(_ context.Context, e *models.ImportDeletedEvent) error {
		deleted++
		assert.Equal(t, "a@example.com", e.ImportedBy)
		return nil
	})

	raw, err := json.Marshal(models.ImportDeletedEvent{ImportID: "imp-1", ImportedBy: "a@example.com"})
	require.NoError(t, err)
	msg := newMessage(identityKey("a@example.com"), models.EventTypeImportDeleted, raw)

	require.NoError(t, eh.HandleMessage(context.Background(), msg))
	assert.Equal(t, 1, deleted)
	assert.Equal(t, "identity-a@example.com", string(msg.Key))
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	assert.Equal(t, minBackoff, backoff(1))
	assert.Equal(t, 2*minBackoff, backoff(2))
	assert.Equal(t, 4*minBackoff, backoff(3))
	assert.Equal(t, maxBackoff, backoff(50))
}

func TestHandleWithRetry(t *testing.T) {
	calls := 0
	flaky := func(context.Context, kafka.Message) error {
		calls++
		if calls < 2 {
			return errors.New("redis unavailable")
		}
		return nil
	}
	require.NoError(t, handleWithRetry(context.Background(), flaky, kafka.Message{}))
	assert.Equal(t, 2, calls)

	calls = 0
	broken := func(context.Context, kafka.Message) error {
		calls++
		return errors.New("still down")
	}
	assert.EqualError(t, handleWithRetry(context.Background(), broken, kafka.Message{}), "still down")
	assert.Equal(t, maxHandlerAttempts, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	assert.ErrorIs(t, handleWithRetry(ctx, broken, kafka.Message{}), context.Canceled)
	assert.Equal(t, 1, calls)
}

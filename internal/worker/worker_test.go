package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"export-import-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	identities []string
	err        error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, identity string) error {
	r.identities = append(r.identities, identity)
	return r.err
}

func send(t *testing.T, w *LedgerEventWorker, event interface{}) error {
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return w.eventHandler.HandleMessage(context.Background(), kafka.Message{Value: raw})
}

func TestWorkerInvalidatesOwnerOfEveryEvent(t *testing.T) {
	inv := &recordingInvalidator{}
	w := NewLedgerEventWorker(nil, inv)

	require.NoError(t, send(t, w, &models.ImportRecordedEvent{
		BaseEvent:  models.BaseEvent{EventType: models.EventTypeImportRecorded},
		ImportedBy: "buyer@example.com",
	}))
	require.NoError(t, send(t, w, &models.ImportDeletedEvent{
		BaseEvent:  models.BaseEvent{EventType: models.EventTypeImportDeleted},
		ImportedBy: "buyer@example.com",
	}))
	require.NoError(t, send(t, w, &models.ExportChangedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeExportUpdated},
		AddedBy:   "seller@example.com",
	}))

	assert.Equal(t, []string{"buyer@example.com", "buyer@example.com", "seller@example.com"}, inv.identities)
}

func TestWorkerReportsInvalidationFailure(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	w := NewLedgerEventWorker(nil, inv)

	err := send(t, w, &models.ExportChangedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeExportCreated},
		AddedBy:   "seller@example.com",
	})
	assert.Error(t, err)
}

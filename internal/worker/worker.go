package worker

import (
	"context"

	"export-import-service/internal/broker"
	"export-import-service/internal/models"
	"export-import-service/internal/util"

	"go.uber.org/zap"
)

// CacheInvalidator drops derived views of one identity
type CacheInvalidator interface {
	Invalidate(ctx context.Context, identity string) error
}

// LedgerEventWorker consumes ledger events and keeps dashboard caches in line
// with writes made by any instance of the service.
type LedgerEventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	invalidator  CacheInvalidator
	logger       *zap.Logger
}

// NewLedgerEventWorker creates a new ledger event worker
func NewLedgerEventWorker(consumer *broker.Consumer, invalidator CacheInvalidator) *LedgerEventWorker {
	w := &LedgerEventWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		invalidator:  invalidator,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnImportRecorded(w.handleImportRecorded)
	w.eventHandler.OnImportDeleted(w.handleImportDeleted)
	w.eventHandler.OnExportChanged(w.handleExportChanged)
	return w
}

// Start starts the worker
func (w *LedgerEventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ledger event worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *LedgerEventWorker) Stop() error {
	w.logger.Info("Stopping ledger event worker")
	return w.consumer.Close()
}

func (w *LedgerEventWorker) handleImportRecorded(ctx context.Context, event *models.ImportRecordedEvent) error {
	util.LedgerEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return w.invalidate(ctx, event.ImportedBy)
}

func (w *LedgerEventWorker) handleImportDeleted(ctx context.Context, event *models.ImportDeletedEvent) error {
	util.LedgerEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return w.invalidate(ctx, event.ImportedBy)
}

func (w *LedgerEventWorker) handleExportChanged(ctx context.Context, event *models.ExportChangedEvent) error {
	util.LedgerEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return w.invalidate(ctx, event.AddedBy)
}

func (w *LedgerEventWorker) invalidate(ctx context.Context, identity string) error {
	if err := w.invalidator.Invalidate(ctx, identity); err != nil {
		w.logger.Warn("Dashboard invalidation failed", zap.String("identity", identity), zap.Error(err))
		return err
	}
	return nil
}

package service

import (
	"context"
	"strings"
	"time"

	"export-import-service/internal/models"
	"export-import-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExportService manages seller listings. Exports never touch product stock.
type ExportService struct {
	ledger    ExportLedger
	cache     DashboardCache
	publisher EventPublisher
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService creates a new export service. cache and publisher may be nil.
func NewExportService(ledger ExportLedger, cache DashboardCache, publisher EventPublisher, opts Options) *ExportService {
	if cache == nil {
		cache = noopCache{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ExportService{
		ledger:    ledger,
		cache:     cache,
		publisher: publisher,
		opts:      opts,
		logger:    util.GetLogger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateExport stores a new export record owned by rec.AddedBy
func (s *ExportService) CreateExport(ctx context.Context, rec *models.ExportRecord) (*models.ExportRecord, error) {
	ctx, span := util.StartSpan(ctx, "ExportService.CreateExport")
	defer span.End()

	rec.AddedBy = strings.TrimSpace(rec.AddedBy)
	switch {
	case rec.AddedBy == "":
		return nil, invalid("addedBy is required")
	case rec.Price < 0:
		return nil, invalid("price must not be negative")
	case rec.AvailableQuantity < 0:
		return nil, invalid("available_quantity must not be negative")
	}
	if err := validateAttributes(rec.Attributes); err != nil {
		return nil, err
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	err := s.ledger.CreateExport(storeCtx, rec)
	cancel()
	if err != nil {
		err = translate(err, "export")
		util.RecordSpanError(span, err)
		logFailure(s.logger, "Export create failed", err, zap.String("added_by", rec.AddedBy))
		return nil, err
	}

	util.ExportWritesTotal.WithLabelValues("create").Inc()
	s.changed(ctx, models.EventTypeExportCreated, rec)
	s.logger.Info("Export created", zap.String("export_id", rec.ID), zap.String("added_by", rec.AddedBy))
	return rec, nil
}

// UpdateExport merges patch into the export record id. Every backend stamps
// updatedAt on a matched record, so ModifiedCount always equals MatchedCount,
// even for a patch that repeats the stored values.
func (s *ExportService) UpdateExport(ctx context.Context, id string, patch *models.ExportPatch) (*models.UpdateResult, error) {
	ctx, span := util.StartSpan(ctx, "ExportService.UpdateExport")
	defer span.End()

	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return nil, invalid("export id is required")
	case patch == nil || patch.Empty():
		return nil, invalid("no fields to update")
	case patch.Price != nil && *patch.Price < 0:
		return nil, invalid("price must not be negative")
	case patch.AvailableQuantity != nil && *patch.AvailableQuantity < 0:
		return nil, invalid("available_quantity must not be negative")
	}
	if err := validateAttributes(patch.Attributes); err != nil {
		return nil, err
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	rec, err := s.ledger.UpdateExport(storeCtx, id, patch)
	cancel()
	if err != nil {
		err = translate(err, "export")
		util.RecordSpanError(span, err)
		logFailure(s.logger, "Export update failed", err, zap.String("export_id", id))
		return nil, err
	}

	util.ExportWritesTotal.WithLabelValues("update").Inc()
	s.changed(ctx, models.EventTypeExportUpdated, rec)
	return &models.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

// DeleteExport removes the export record id. Deleting an absent record is not an error.
func (s *ExportService) DeleteExport(ctx context.Context, id string) (*models.DeleteResult, error) {
	ctx, span := util.StartSpan(ctx, "ExportService.DeleteExport")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("export id is required")
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	rec, err := s.ledger.DeleteExport(storeCtx, id)
	cancel()
	if err != nil {
		err = translate(err, "export")
		util.RecordSpanError(span, err)
		logFailure(s.logger, "Export delete failed", err, zap.String("export_id", id))
		return nil, err
	}
	if rec == nil {
		return &models.DeleteResult{DeletedCount: 0}, nil
	}

	util.ExportWritesTotal.WithLabelValues("delete").Inc()
	s.changed(ctx, models.EventTypeExportDeleted, rec)
	return &models.DeleteResult{DeletedCount: 1}, nil
}

// ListExports returns the export records of identity, newest first
func (s *ExportService) ListExports(ctx context.Context, identity string) ([]models.ExportRecord, error) {
	ctx, span := util.StartSpan(ctx, "ExportService.ListExports")
	defer span.End()

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, invalid("email is required")
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	records, err := s.ledger.ListExports(storeCtx, identity)
	if err != nil {
		err = translate(err, "export")
		util.RecordSpanError(span, err)
		return nil, err
	}
	return records, nil
}

func (s *ExportService) changed(ctx context.Context, eventType string, rec *models.ExportRecord) {
	if err := s.cache.InvalidateDashboard(ctx, rec.AddedBy); err != nil {
		s.logger.Warn("Failed to invalidate dashboard cache", zap.String("identity", rec.AddedBy), zap.Error(err))
	}

	event := &models.ExportChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		ExportID: rec.ID,
		AddedBy:  rec.AddedBy,
		Price:    rec.Price,
	}
	if err := s.publisher.PublishExportChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish export event", zap.String("type", eventType), zap.Error(err))
	}
}

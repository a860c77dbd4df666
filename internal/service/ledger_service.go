package service

import (
	"context"
	"strings"
	"time"

	"export-import-service/internal/apperrors"
	"export-import-service/internal/models"
	"export-import-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService records and removes imports. It is the only writer of
// available_quantity outside catalog maintenance.
type LedgerService struct {
	ledger      ImportLedger
	cache       DashboardCache
	idempotency IdempotencyStore
	publisher   EventPublisher
	opts        Options
	logger      *zap.Logger
	now         func() time.Time
}

// NewLedgerService creates a new ledger service. cache, idempotency and
// publisher may be nil.
func NewLedgerService(
	ledger ImportLedger,
	cache DashboardCache,
	idempotency IdempotencyStore,
	publisher EventPublisher,
	opts Options,
) *LedgerService {
	if cache == nil {
		cache = noopCache{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &LedgerService{
		ledger:      ledger,
		cache:       cache,
		idempotency: idempotency,
		publisher:   publisher,
		opts:        opts,
		logger:      util.GetLogger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ImportRequest represents a request to consume stock of one product
type ImportRequest struct {
	ProductID        string `json:"-"`
	Identity         string `json:"email"`
	ImportedQuantity int    `json:"importedQuantity"`
	IdempotencyKey   string `json:"-"`
}

func (r *ImportRequest) validate() error {
	r.ProductID = strings.TrimSpace(r.ProductID)
	r.Identity = strings.TrimSpace(r.Identity)

	switch {
	case r.ProductID == "":
		return invalid("product id is required")
	case r.Identity == "":
		return invalid("email is required")
	case r.ImportedQuantity <= 0:
		return invalid("importedQuantity must be a positive integer")
	}
	return nil
}

// RecordImport consumes stock and appends an import record in one unit of work
func (s *LedgerService) RecordImport(ctx context.Context, req *ImportRequest) (*models.ImportReceipt, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.RecordImport")
	defer span.End()

	if err := req.validate(); err != nil {
		util.ImportsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	idemKey := ""
	if req.IdempotencyKey != "" && s.idempotency != nil {
		idemKey = req.Identity + ":" + req.IdempotencyKey
		receipt, err := s.claim(ctx, idemKey)
		if err != nil || receipt != nil {
			return receipt, err
		}
	}

	rec := &models.ImportRecord{
		ProductID:        req.ProductID,
		ImportedQuantity: req.ImportedQuantity,
		ImportedBy:       req.Identity,
		CreatedAt:        s.now(),
	}

	start := time.Now()
	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	err := s.ledger.RecordImport(storeCtx, rec)
	cancel()
	util.ImportRecordLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		err = translate(err, "product")
		util.RecordSpanError(span, err)
		util.ImportsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		s.release(ctx, idemKey)
		logFailure(s.logger, "Import rejected", err,
			zap.String("product_id", req.ProductID),
			zap.String("imported_by", req.Identity),
			zap.Int("quantity", req.ImportedQuantity))
		return nil, err
	}

	util.ImportsRecordedTotal.Inc()
	util.ImportedQuantityTotal.Add(float64(rec.ImportedQuantity))

	receipt := &models.ImportReceipt{Success: true, ImportID: rec.ID}
	if idemKey != "" {
		s.storeReceipt(ctx, idemKey, receipt)
	}

	s.invalidate(ctx, rec.ImportedBy)

	event := &models.ImportRecordedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeImportRecorded,
			Timestamp: s.now(),
		},
		ImportID:         rec.ID,
		ProductID:        rec.ProductID,
		ImportedBy:       rec.ImportedBy,
		ImportedQuantity: rec.ImportedQuantity,
		ProductSnapshot:  rec.ProductSnapshot,
	}
	if err := s.publisher.PublishImportRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish ImportRecorded event", zap.Error(err))
	}

	s.logger.Info("Import recorded",
		zap.String("import_id", rec.ID),
		zap.String("product_id", rec.ProductID),
		zap.String("imported_by", rec.ImportedBy),
		zap.Int("quantity", rec.ImportedQuantity))

	return receipt, nil
}

// claim reserves idemKey for this request. A non-nil receipt means the request
// already completed and must be answered from it.
func (s *LedgerService) claim(ctx context.Context, idemKey string) (*models.ImportReceipt, error) {
	claimed, err := s.idempotency.ClaimIdempotencyKey(ctx, idemKey, s.opts.claimTTL())
	if err != nil {
		// Without the cache the request still runs once; only replay protection is lost.
		s.logger.Warn("Idempotency claim failed", zap.String("key", idemKey), zap.Error(err))
		return nil, nil
	}
	if claimed {
		return nil, nil
	}

	receipt, pending, err := s.idempotency.GetImportReceipt(ctx, idemKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorageUnavailable, err, "idempotency lookup failed")
	}
	if pending {
		util.ImportsRejectedTotal.WithLabelValues("conflict").Inc()
		return nil, apperrors.New(apperrors.KindConflict, "a request with this Idempotency-Key is still in progress")
	}
	if receipt == nil {
		// The claim expired between SETNX and GET.
		return nil, apperrors.New(apperrors.KindConflict, "idempotency key expired, retry the request")
	}

	util.IdempotentReplaysTotal.Inc()
	s.logger.Info("Duplicate import request detected",
		zap.String("key", idemKey),
		zap.String("import_id", receipt.ImportID))
	return receipt, nil
}

// receiptWriteAttempts is how often a receipt write is tried before the claim
// is left to expire on its own.
const receiptWriteAttempts = 2

// storeReceipt replaces the in-flight claim with the receipt. The import is
// already committed, so the claim is never released here: a retry inside the
// claim TTL still gets a conflict rather than a second import.
func (s *LedgerService) storeReceipt(ctx context.Context, idemKey string, receipt *models.ImportReceipt) {
	var err error
	for attempt := 1; attempt <= receiptWriteAttempts; attempt++ {
		if err = s.idempotency.StoreImportReceipt(ctx, idemKey, receipt, s.opts.IdempotencyTTL); err == nil {
			return
		}
		s.logger.Warn("Failed to store import receipt",
			zap.String("key", idemKey),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	s.logger.Error("Import receipt lost, key frees when the claim expires",
		zap.String("key", idemKey),
		zap.String("import_id", receipt.ImportID),
		zap.Duration("claim_ttl", s.opts.claimTTL()),
		zap.Error(err))
}

func (s *LedgerService) release(ctx context.Context, idemKey string) {
	if idemKey == "" {
		return
	}
	if err := s.idempotency.ReleaseIdempotencyKey(ctx, idemKey); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("key", idemKey), zap.Error(err))
	}
}

func (s *LedgerService) invalidate(ctx context.Context, identity string) {
	if err := s.cache.InvalidateDashboard(ctx, identity); err != nil {
		s.logger.Warn("Failed to invalidate dashboard cache", zap.String("identity", identity), zap.Error(err))
	}
}

// DeleteImport removes an import record. It never restores stock and
// succeeds when the record is already gone.
func (s *LedgerService) DeleteImport(ctx context.Context, importID string) error {
	ctx, span := util.StartSpan(ctx, "LedgerService.DeleteImport")
	defer span.End()

	importID = strings.TrimSpace(importID)
	if importID == "" {
		return invalid("import id is required")
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	rec, err := s.ledger.DeleteImport(storeCtx, importID)
	cancel()
	if err != nil {
		err = translate(err, "import")
		util.RecordSpanError(span, err)
		logFailure(s.logger, "Import delete failed", err, zap.String("import_id", importID))
		return err
	}
	if rec == nil {
		return nil
	}

	util.ImportsDeletedTotal.Inc()
	s.invalidate(ctx, rec.ImportedBy)

	event := &models.ImportDeletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeImportDeleted,
			Timestamp: s.now(),
		},
		ImportID:   rec.ID,
		ImportedBy: rec.ImportedBy,
	}
	if err := s.publisher.PublishImportDeleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish ImportDeleted event", zap.Error(err))
	}

	s.logger.Info("Import deleted", zap.String("import_id", rec.ID), zap.String("imported_by", rec.ImportedBy))
	return nil
}

// ListImports returns every import of identity, newest first
func (s *LedgerService) ListImports(ctx context.Context, identity string) ([]models.ImportRecord, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ListImports")
	defer span.End()

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, invalid("email is required")
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	records, err := s.ledger.ListImports(storeCtx, identity, 0)
	if err != nil {
		err = translate(err, "import")
		util.RecordSpanError(span, err)
		return nil, err
	}
	return records, nil
}

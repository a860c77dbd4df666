package service

import (
	"context"
	"time"

	"export-import-service/internal/models"
)

// ProductStore is the catalog side of a store
type ProductStore interface {
	ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id string, patch *models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) (bool, error)
}

// ImportLedger is the import side of a store. RecordImport must check
// availability, insert rec and decrement stock as one unit of work.
type ImportLedger interface {
	RecordImport(ctx context.Context, rec *models.ImportRecord) error
	ListImports(ctx context.Context, identity string, limit int) ([]models.ImportRecord, error)
	CountImports(ctx context.Context, identity string) (int64, error)
	DeleteImport(ctx context.Context, id string) (*models.ImportRecord, error)
}

// ExportLedger is the export side of a store
type ExportLedger interface {
	CreateExport(ctx context.Context, rec *models.ExportRecord) error
	UpdateExport(ctx context.Context, id string, patch *models.ExportPatch) (*models.ExportRecord, error)
	DeleteExport(ctx context.Context, id string) (*models.ExportRecord, error)
	ListExports(ctx context.Context, identity string) ([]models.ExportRecord, error)
	CountExports(ctx context.Context, identity string) (int64, error)
}

// DashboardSource is the read-only view the dashboard aggregates over
type DashboardSource interface {
	ListImports(ctx context.Context, identity string, limit int) ([]models.ImportRecord, error)
	CountImports(ctx context.Context, identity string) (int64, error)
	ListExports(ctx context.Context, identity string) ([]models.ExportRecord, error)
	CountExports(ctx context.Context, identity string) (int64, error)
}

// Store is implemented by every storage backend
type Store interface {
	ProductStore
	ImportLedger
	ExportLedger
	Ping(ctx context.Context) error
	Close() error
}

// DashboardCache caches computed dashboards per identity. GetDashboard also
// reports the current version; SetDashboard stamps the entry with the version
// read before computing, and InvalidateDashboard bumps it so an entry computed
// before a write is never served after it.
type DashboardCache interface {
	GetDashboard(ctx context.Context, identity string) (*models.Dashboard, int64, bool, error)
	SetDashboard(ctx context.Context, identity string, version int64, dash *models.Dashboard, ttl time.Duration) error
	InvalidateDashboard(ctx context.Context, identity string) error
}

// IdempotencyStore remembers the receipts of keyed import requests
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	GetImportReceipt(ctx context.Context, key string) (*models.ImportReceipt, bool, error)
	StoreImportReceipt(ctx context.Context, key string, receipt *models.ImportReceipt, ttl time.Duration) error
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// EventPublisher publishes ledger events
type EventPublisher interface {
	PublishImportRecorded(ctx context.Context, event *models.ImportRecordedEvent) error
	PublishImportDeleted(ctx context.Context, event *models.ImportDeletedEvent) error
	PublishExportChanged(ctx context.Context, event *models.ExportChangedEvent) error
}

// Options tunes the services
type Options struct {
	// StoreTimeout bounds every storage call. Zero means no extra bound.
	StoreTimeout      time.Duration
	DashboardCacheTTL time.Duration
	// IdempotencyTTL is how long a completed receipt is replayed.
	IdempotencyTTL time.Duration
	// IdempotencyClaimTTL bounds an in-flight claim, so a receipt that never
	// gets written frees the key instead of blocking retries.
	IdempotencyClaimTTL time.Duration
}

const minIdempotencyClaimTTL = 30 * time.Second

func (o Options) claimTTL() time.Duration {
	if o.IdempotencyClaimTTL > 0 {
		return o.IdempotencyClaimTTL
	}
	if ttl := 4 * o.StoreTimeout; ttl > minIdempotencyClaimTTL {
		return ttl
	}
	return minIdempotencyClaimTTL
}

type noopCache struct{}

func (noopCache) GetDashboard(context.Context, string) (*models.Dashboard, int64, bool, error) {
	return nil, 0, false, nil
}

func (noopCache) SetDashboard(context.Context, string, int64, *models.Dashboard, time.Duration) error {
	return nil
}

func (noopCache) InvalidateDashboard(context.Context, string) error {
	return nil
}

type noopPublisher struct{}

func (noopPublisher) PublishImportRecorded(context.Context, *models.ImportRecordedEvent) error {
	return nil
}

func (noopPublisher) PublishImportDeleted(context.Context, *models.ImportDeletedEvent) error {
	return nil
}

func (noopPublisher) PublishExportChanged(context.Context, *models.ExportChangedEvent) error {
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Package memstore is an in-process implementation of the ledger store, used
// for local development (STORE_DRIVER=memory) and tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"export-import-service/internal/models"

	"github.com/google/uuid"
)

// Store keeps products and both ledgers in maps guarded by one lock
type Store struct {
	mu       sync.RWMutex
	products map[string]models.Product
	imports  map[string]models.ImportRecord
	exports  map[string]models.ExportRecord
	seq      map[string]int64
	next     int64
	now      func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		products: make(map[string]models.Product),
		imports:  make(map[string]models.ImportRecord),
		exports:  make(map[string]models.ExportRecord),
		seq:      make(map[string]int64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ping only fails when ctx is already done
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func parseID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidID, id)
	}
	return parsed.String(), nil
}

// newID returns a fresh id and remembers its insertion order. Caller holds mu.
func (s *Store) newID() string {
	id := uuid.New().String()
	s.next++
	s.seq[id] = s.next
	return id
}

// ListProducts returns products by created_at, oldest first unless q.Latest
func (s *Store) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(q.Search)
	products := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		products = append(products, p)
	}

	sort.Slice(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if q.Latest {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return s.seq[a.ID] < s.seq[b.ID]
	})

	if q.Limit > 0 && len(products) > q.Limit {
		products = products[:q.Limit]
	}
	return products, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

// CreateProduct inserts a product and assigns its ID and timestamps
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = s.newID()
	product.CreatedAt = s.now()
	product.UpdatedAt = product.CreatedAt
	s.products[product.ID] = *product
	return nil
}

// UpdateProduct applies patch to a product
func (s *Store) UpdateProduct(ctx context.Context, id string, patch *models.ProductPatch) (*models.Product, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	patch.Apply(&p)
	p.UpdatedAt = s.now()
	s.products[id] = p
	return &p, nil
}

// DeleteProduct removes a product. Import records keep their snapshot.
func (s *Store) DeleteProduct(ctx context.Context, id string) (bool, error) {
	id, err := parseID(id)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.products[id]
	delete(s.products, id)
	return ok, nil
}

// RecordImport checks, inserts and decrements while holding the write lock.
func (s *Store) RecordImport(ctx context.Context, rec *models.ImportRecord) error {
	productID, err := parseID(rec.ProductID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return models.ErrNotFound
	}
	if p.AvailableQuantity < rec.ImportedQuantity {
		return fmt.Errorf("%w: available=%d, requested=%d",
			models.ErrInsufficientStock, p.AvailableQuantity, rec.ImportedQuantity)
	}

	rec.ID = s.newID()
	rec.ProductID = productID
	rec.ProductSnapshot = p.Snapshot()
	s.imports[rec.ID] = *rec

	p.AvailableQuantity -= rec.ImportedQuantity
	p.UpdatedAt = s.now()
	s.products[productID] = p
	return nil
}

// ListImports returns the imports of identity, newest first. limit <= 0 means all.
func (s *Store) ListImports(ctx context.Context, identity string, limit int) ([]models.ImportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []models.ImportRecord{}
	for _, rec := range s.imports {
		if rec.ImportedBy == identity {
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return s.seq[records[i].ID] > s.seq[records[j].ID]
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// CountImports counts the imports of identity
func (s *Store) CountImports(ctx context.Context, identity string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.imports {
		if rec.ImportedBy == identity {
			n++
		}
	}
	return n, nil
}

// DeleteImport removes an import record without touching stock.
// It returns nil when the record does not exist.
func (s *Store) DeleteImport(ctx context.Context, id string) (*models.ImportRecord, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.imports[id]
	if !ok {
		return nil, nil
	}
	delete(s.imports, id)
	return &rec, nil
}

// CreateExport inserts an export record
func (s *Store) CreateExport(ctx context.Context, rec *models.ExportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.newID()
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt
	s.exports[rec.ID] = *rec
	return nil
}

// UpdateExport applies patch to an export record
func (s *Store) UpdateExport(ctx context.Context, id string, patch *models.ExportPatch) (*models.ExportRecord, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.exports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	patch.Apply(&rec)
	rec.UpdatedAt = s.now()
	s.exports[id] = rec
	return &rec, nil
}

// DeleteExport removes an export record, returning nil when absent
func (s *Store) DeleteExport(ctx context.Context, id string) (*models.ExportRecord, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.exports[id]
	if !ok {
		return nil, nil
	}
	delete(s.exports, id)
	return &rec, nil
}

// ListExports returns the exports of identity, newest first
func (s *Store) ListExports(ctx context.Context, identity string) ([]models.ExportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []models.ExportRecord{}
	for _, rec := range s.exports {
		if rec.AddedBy == identity {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return s.seq[records[i].ID] > s.seq[records[j].ID]
	})
	return records, nil
}

// CountExports counts the exports of identity
func (s *Store) CountExports(ctx context.Context, identity string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.exports {
		if rec.AddedBy == identity {
			n++
		}
	}
	return n, nil
}

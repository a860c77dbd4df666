package memstore

import (
	"context"
	"testing"
	"time"

	"export-import-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordImportChecksThenDecrements(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := &models.Product{Name: "Saffron", Price: 30, AvailableQuantity: 5}
	require.NoError(t, s.CreateProduct(ctx, p))

	rec := &models.ImportRecord{ProductID: p.ID, ImportedQuantity: 5, ImportedBy: "a@example.com", CreatedAt: time.Now()}
	require.NoError(t, s.RecordImport(ctx, rec))

	err := s.RecordImport(ctx, &models.ImportRecord{ProductID: p.ID, ImportedQuantity: 1, ImportedBy: "a@example.com"})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	stored, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AvailableQuantity)

	n, err := s.CountImports(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRecordImportUnknownAndMalformedProduct(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.RecordImport(ctx, &models.ImportRecord{ProductID: "nope", ImportedQuantity: 1})
	assert.ErrorIs(t, err, models.ErrInvalidID)

	err = s.RecordImport(ctx, &models.ImportRecord{ProductID: "7d5b9d3e-6f43-4f42-9a55-8f7b4b0b3c11", ImportedQuantity: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListProductsSearchAndLatest(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, name := range []string{"Green Tea", "Coffee", "Black tea"} {
		require.NoError(t, s.CreateProduct(ctx, &models.Product{Name: name}))
	}

	found, err := s.ListProducts(ctx, models.ProductQuery{Search: "TEA"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Green Tea", found[0].Name)

	latest, err := s.ListProducts(ctx, models.ProductQuery{Latest: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "Black tea", latest[0].Name)
	assert.Equal(t, "Coffee", latest[1].Name)
}

func TestListImportsNewestFirstWithLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := &models.Product{Name: "Pepper", AvailableQuantity: 10}
	require.NoError(t, s.CreateProduct(ctx, p))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := &models.ImportRecord{ProductID: p.ID, ImportedQuantity: 1, ImportedBy: "b@example.com", CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, s.RecordImport(ctx, rec))
	}

	records, err := s.ListImports(ctx, "b@example.com", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, base.Add(2*time.Hour), records[0].CreatedAt)
	assert.Equal(t, base.Add(time.Hour), records[1].CreatedAt)
}

func TestLatestOrdersByCreatedAt(t *testing.T) {
	s := New()
	ctx := context.Background()

	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.CreateProduct(ctx, &models.Product{Name: "Newer"}))
	clock = clock.Add(-time.Hour)
	require.NoError(t, s.CreateProduct(ctx, &models.Product{Name: "Older"}))
	clock = clock.Add(time.Hour)
	require.NoError(t, s.CreateProduct(ctx, &models.Product{Name: "Tied", CreatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)}))

	latest, err := s.ListProducts(ctx, models.ProductQuery{Latest: true})
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, []string{"Tied", "Newer", "Older"}, []string{latest[0].Name, latest[1].Name, latest[2].Name})

	all, err := s.ListProducts(ctx, models.ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, "Older", all[0].Name)
	assert.Equal(t, clock, all[2].CreatedAt)
}

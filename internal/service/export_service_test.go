package service

import (
	"context"
	"testing"

	"export-import-service/internal/apperrors"
	"export-import-service/internal/memstore"
	"export-import-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportLifecycle(t *testing.T) {
	store := memstore.New()
	publisher := &recordingPublisher{}
	svc := NewExportService(store, nil, publisher, Options{})
	ctx := context.Background()

	created, err := svc.CreateExport(ctx, &models.ExportRecord{
		AddedBy:    "s@example.com",
		Name:       "Cardamom",
		Price:      12.5,
		Attributes: models.Attributes{"grade": "A", "organic": true},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	price := 15.0
	res, err := svc.UpdateExport(ctx, created.ID, &models.ExportPatch{
		Price:      &price,
		Attributes: models.Attributes{"grade": "AA"},
	})
	require.NoError(t, err)
	assert.Equal(t, &models.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, res)

	listed, err := svc.ListExports(ctx, "s@example.com")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Cardamom", listed[0].Name)
	assert.Equal(t, 15.0, listed[0].Price)
	assert.Equal(t, "AA", listed[0].Attributes["grade"])
	assert.Equal(t, true, listed[0].Attributes["organic"])

	del, err := svc.DeleteExport(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), del.DeletedCount)

	del, err = svc.DeleteExport(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), del.DeletedCount)

	assert.Equal(t, []string{models.EventTypeExportCreated, models.EventTypeExportUpdated, models.EventTypeExportDeleted}, publisher.events)
}

func TestExportValidation(t *testing.T) {
	svc := NewExportService(memstore.New(), nil, nil, Options{})
	ctx := context.Background()

	_, err := svc.CreateExport(ctx, &models.ExportRecord{Name: "No owner"})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	_, err = svc.CreateExport(ctx, &models.ExportRecord{AddedBy: "s@example.com", Price: -1})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	_, err = svc.CreateExport(ctx, &models.ExportRecord{AddedBy: "s@example.com", Attributes: models.Attributes{"$where": 1}})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	_, err = svc.UpdateExport(ctx, uuid.New().String(), &models.ExportPatch{})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	name := "x"
	_, err = svc.UpdateExport(ctx, "bad-id", &models.ExportPatch{Name: &name})
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	_, err = svc.UpdateExport(ctx, uuid.New().String(), &models.ExportPatch{Name: &name})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = svc.DeleteExport(ctx, "bad-id")
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	_, err = svc.ListExports(ctx, "")
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestExportsDoNotTouchStock(t *testing.T) {
	store := memstore.New()
	p := seedProduct(t, store, 30, 10)
	svc := NewExportService(store, nil, nil, Options{})

	_, err := svc.CreateExport(context.Background(), &models.ExportRecord{AddedBy: "s@example.com", Name: p.Name, AvailableQuantity: 500})
	require.NoError(t, err)
	assert.Equal(t, 10, available(t, store, p.ID))
}

func TestUpdateExportWithUnchangedValuesStillModifies(t *testing.T) {
	store := memstore.New()
	svc := NewExportService(store, nil, nil, Options{})
	ctx := context.Background()

	created, err := svc.CreateExport(ctx, &models.ExportRecord{AddedBy: "s@example.com", Price: 12.5})
	require.NoError(t, err)
	createdAt := created.UpdatedAt

	price := 12.5
	res, err := svc.UpdateExport(ctx, created.ID, &models.ExportPatch{Price: &price})
	require.NoError(t, err)
	assert.Equal(t, &models.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, res)

	listed, err := svc.ListExports(ctx, "s@example.com")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 12.5, listed[0].Price)
	assert.False(t, listed[0].UpdatedAt.Before(createdAt))
}

package mongostore

import (
	"context"
	"os"
	"testing"
	"time"

	"export-import-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseID(t *testing.T) {
	oid := primitive.NewObjectID()
	parsed, err := parseID(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, parsed)

	_, err = parseID("not-an-object-id")
	assert.ErrorIs(t, err, models.ErrInvalidID)
}

func TestWrapErrTagsTimeouts(t *testing.T) {
	assert.Nil(t, wrapErr("noop", nil))
	assert.ErrorIs(t, wrapErr("find", context.DeadlineExceeded), models.ErrStorageUnavailable)
}

func TestExportSetFieldsSetsAttributeKeysIndividually(t *testing.T) {
	price := 9.5
	set := exportSetFields(&models.ExportPatch{
		Price:      &price,
		Attributes: models.Attributes{"grade": "A", "organic": true},
	})

	assert.Equal(t, bson.M{
		"price":              9.5,
		"attributes.grade":   "A",
		"attributes.organic": true,
	}, set)
}

func TestProductSetFieldsSkipsNil(t *testing.T) {
	name := "Clove"
	assert.Equal(t, bson.M{"name": "Clove"}, productSetFields(&models.ProductPatch{Name: &name}))
}

func TestImportDocToModel(t *testing.T) {
	oid := primitive.NewObjectID()
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := importDoc{
		ID:               oid,
		ProductID:        "p1",
		ImportedQuantity: 2,
		ImportedBy:       "a@example.com",
		CreatedAt:        at,
		ProductSnapshot:  snapshotDoc{Name: "Saffron", Price: 30, OriginCountry: "IR"},
	}

	rec := doc.toModel()
	assert.Equal(t, oid.Hex(), rec.ID)
	assert.Equal(t, 30.0, rec.ProductSnapshot.Price)
	assert.Equal(t, "IR", rec.ProductSnapshot.OriginCountry)
	assert.Equal(t, at, rec.CreatedAt)
}

// Integration: requires a replica set (transactions), e.g. TEST_MONGO_URI=mongodb://localhost:27017/?replicaSet=rs0
func TestRecordImportAgainstMongo(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("Integration test - requires MongoDB replica set (set TEST_MONGO_URI)")
	}
	ctx := context.Background()

	s, err := Connect(ctx, uri, "export_import_test_"+primitive.NewObjectID().Hex())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.products.Database().Drop(context.Background())
		_ = s.Close()
	})

	p := &models.Product{Name: "Saffron", Price: 30, AvailableQuantity: 5}
	require.NoError(t, s.CreateProduct(ctx, p))

	rec := &models.ImportRecord{ProductID: p.ID, ImportedQuantity: 3, ImportedBy: "a@example.com", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.RecordImport(ctx, rec))
	assert.Equal(t, "Saffron", rec.ProductSnapshot.Name)

	err = s.RecordImport(ctx, &models.ImportRecord{ProductID: p.ID, ImportedQuantity: 3, ImportedBy: "a@example.com"})
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	err = s.RecordImport(ctx, &models.ImportRecord{ProductID: primitive.NewObjectID().Hex(), ImportedQuantity: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)

	stored, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.AvailableQuantity)
}

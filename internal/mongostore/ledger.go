package mongostore

import (
	"context"
	"errors"
	"time"

	"export-import-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RecordImport decrements available_quantity with a conditional update
// ({available_quantity: {$gte: q}}) and inserts the import record in the same
// transaction. The snapshot is taken from the pre-image of the decremented document.
func (s *Store) RecordImport(ctx context.Context, rec *models.ImportRecord) error {
	oid, err := parseID(rec.ProductID)
	if err != nil {
		return err
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return wrapErr("start session", err)
	}
	defer sess.EndSession(ctx)

	var inserted *importDoc
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var before productDoc
		err := s.products.FindOneAndUpdate(sc,
			bson.M{"_id": oid, "available_quantity": bson.M{"$gte": rec.ImportedQuantity}},
			bson.M{
				"$inc": bson.M{"available_quantity": -rec.ImportedQuantity},
				"$set": bson.M{"updated_at": time.Now().UTC()},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&before)
		if errors.Is(err, mongo.ErrNoDocuments) {
			n, cerr := s.products.CountDocuments(sc, bson.M{"_id": oid})
			if cerr != nil {
				return nil, cerr
			}
			if n == 0 {
				return nil, models.ErrNotFound
			}
			return nil, models.ErrInsufficientStock
		}
		if err != nil {
			return nil, err
		}

		doc := importDoc{
			ID:               primitive.NewObjectID(),
			ProductID:        oid.Hex(),
			ImportedQuantity: rec.ImportedQuantity,
			ImportedBy:       rec.ImportedBy,
			CreatedAt:        rec.CreatedAt,
			ProductSnapshot: snapshotDoc{
				Name:          before.Name,
				Price:         before.Price,
				Image:         before.Image,
				OriginCountry: before.OriginCountry,
				Rating:        before.Rating,
			},
		}
		if _, err := s.imports.InsertOne(sc, doc); err != nil {
			return nil, err
		}
		inserted = &doc
		return nil, nil
	})
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInsufficientStock) {
		return err
	}
	if err != nil {
		return wrapErr("record import", err)
	}

	*rec = inserted.toModel()
	return nil
}

// ListImports returns the imports of identity, newest first
func (s *Store) ListImports(ctx context.Context, identity string, limit int) ([]models.ImportRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.imports.Find(ctx, bson.M{"imported_by": identity}, opts)
	if err != nil {
		return nil, wrapErr("list imports", err)
	}
	var docs []importDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode imports", err)
	}

	records := make([]models.ImportRecord, 0, len(docs))
	for i := range docs {
		records = append(records, docs[i].toModel())
	}
	return records, nil
}

// CountImports counts the imports of identity
func (s *Store) CountImports(ctx context.Context, identity string) (int64, error) {
	n, err := s.imports.CountDocuments(ctx, bson.M{"imported_by": identity})
	if err != nil {
		return 0, wrapErr("count imports", err)
	}
	return n, nil
}

// DeleteImport removes the record only; stock is not restored.
func (s *Store) DeleteImport(ctx context.Context, id string) (*models.ImportRecord, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc importDoc
	err = s.imports.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("delete import", err)
	}
	rec := doc.toModel()
	return &rec, nil
}

// CreateExport inserts an export record
func (s *Store) CreateExport(ctx context.Context, rec *models.ExportRecord) error {
	now := time.Now().UTC()
	doc := exportDoc{
		ID:                primitive.NewObjectID(),
		AddedBy:           rec.AddedBy,
		Name:              rec.Name,
		Price:             rec.Price,
		Image:             rec.Image,
		OriginCountry:     rec.OriginCountry,
		Rating:            rec.Rating,
		Category:          rec.Category,
		AvailableQuantity: rec.AvailableQuantity,
		Attributes:        bson.M(rec.Attributes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := s.exports.InsertOne(ctx, doc); err != nil {
		return wrapErr("create export", err)
	}

	rec.ID = doc.ID.Hex()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// UpdateExport $sets the patched fields. Attribute keys are set one by one
// so existing attributes survive.
func (s *Store) UpdateExport(ctx context.Context, id string, patch *models.ExportPatch) (*models.ExportRecord, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := exportSetFields(patch)
	set["updatedAt"] = time.Now().UTC()

	var doc exportDoc
	err = s.exports.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("update export", err)
	}
	rec := doc.toModel()
	return &rec, nil
}

// DeleteExport removes an export record, returning nil when absent
func (s *Store) DeleteExport(ctx context.Context, id string) (*models.ExportRecord, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc exportDoc
	err = s.exports.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("delete export", err)
	}
	rec := doc.toModel()
	return &rec, nil
}

// ListExports returns the exports of identity, newest first
func (s *Store) ListExports(ctx context.Context, identity string) ([]models.ExportRecord, error) {
	cursor, err := s.exports.Find(ctx, bson.M{"addedBy": identity},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, wrapErr("list exports", err)
	}
	var docs []exportDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode exports", err)
	}

	records := make([]models.ExportRecord, 0, len(docs))
	for i := range docs {
		records = append(records, docs[i].toModel())
	}
	return records, nil
}

// CountExports counts the exports of identity
func (s *Store) CountExports(ctx context.Context, identity string) (int64, error) {
	n, err := s.exports.CountDocuments(ctx, bson.M{"addedBy": identity})
	if err != nil {
		return 0, wrapErr("count exports", err)
	}
	return n, nil
}

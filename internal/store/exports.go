package store

import (
	"context"
	"database/sql"
	"errors"

	"export-import-service/internal/models"

	"github.com/google/uuid"
)

const exportColumns = `id, added_by, name, price, image, origin_country, rating, category, available_quantity, attributes, created_at, updated_at`

// CreateExport inserts a seller listing and fills its ID and timestamps
func (s *Store) CreateExport(ctx context.Context, rec *models.ExportRecord) error {
	rec.ID = uuid.New().String()

	query := `
		INSERT INTO exports (id, added_by, name, price, image, origin_country, rating, category, available_quantity, attributes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		rec.ID, rec.AddedBy, rec.Name, rec.Price, rec.Image, rec.OriginCountry,
		rec.Rating, rec.Category, rec.AvailableQuantity, rec.Attributes)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return wrapErr("create export", err)
	}
	return nil
}

// UpdateExport merges patch over the stored listing under a row lock
func (s *Store) UpdateExport(ctx context.Context, id string, patch *models.ExportPatch) (*models.ExportRecord, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin export update", err)
	}
	defer tx.Rollback()

	var rec models.ExportRecord
	err = tx.GetContext(ctx, &rec, "SELECT "+exportColumns+" FROM exports WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("lock export", err)
	}

	patch.Apply(&rec)

	err = tx.GetContext(ctx, &rec.UpdatedAt, `
		UPDATE exports
		SET name = $1, price = $2, image = $3, origin_country = $4, rating = $5,
		    category = $6, available_quantity = $7, attributes = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`,
		rec.Name, rec.Price, rec.Image, rec.OriginCountry, rec.Rating,
		rec.Category, rec.AvailableQuantity, rec.Attributes, id)
	if err != nil {
		return nil, wrapErr("update export", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapErr("commit export update", err)
	}
	return &rec, nil
}

// DeleteExport removes a listing and returns it, or nil when it did not exist
func (s *Store) DeleteExport(ctx context.Context, id string) (*models.ExportRecord, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var rec models.ExportRecord
	err = s.db.GetContext(ctx, &rec, "DELETE FROM exports WHERE id = $1 RETURNING "+exportColumns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("delete export", err)
	}
	return &rec, nil
}

// ListExports retrieves the listings added by identity
func (s *Store) ListExports(ctx context.Context, identity string) ([]models.ExportRecord, error) {
	records := []models.ExportRecord{}
	err := s.db.SelectContext(ctx, &records,
		"SELECT "+exportColumns+" FROM exports WHERE added_by = $1 ORDER BY created_at DESC", identity)
	if err != nil {
		return nil, wrapErr("list exports", err)
	}
	return records, nil
}

// CountExports counts the listings added by identity
func (s *Store) CountExports(ctx context.Context, identity string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM exports WHERE added_by = $1", identity); err != nil {
		return 0, wrapErr("count exports", err)
	}
	return n, nil
}

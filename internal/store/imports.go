package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"export-import-service/internal/models"

	"github.com/google/uuid"
)

const importColumns = `id, product_id, imported_quantity, imported_by, created_at, product_snapshot`

// RecordImport locks the product row, checks availability, inserts the import
// record with a snapshot of the locked row and decrements available_quantity,
// all in one transaction. rec.ID and rec.ProductSnapshot are filled in.
func (s *Store) RecordImport(ctx context.Context, rec *models.ImportRecord) error {
	productID, err := parseID(rec.ProductID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapErr("begin import tx", err)
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return wrapErr("lock product", err)
	}

	if product.AvailableQuantity < rec.ImportedQuantity {
		return fmt.Errorf("%w: available=%d, requested=%d",
			models.ErrInsufficientStock, product.AvailableQuantity, rec.ImportedQuantity)
	}

	rec.ID = uuid.New().String()
	rec.ProductID = productID
	rec.ProductSnapshot = product.Snapshot()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO imports (id, product_id, imported_quantity, imported_by, created_at, product_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.ProductID, rec.ImportedQuantity, rec.ImportedBy, rec.CreatedAt, rec.ProductSnapshot)
	if err != nil {
		return wrapErr("insert import", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET available_quantity = available_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND available_quantity >= $1`,
		rec.ImportedQuantity, productID)
	if err != nil {
		return wrapErr("decrement stock", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return wrapErr("decrement stock", err)
	} else if n != 1 {
		return models.ErrInsufficientStock
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("commit import tx", err)
	}
	return nil
}

// ListImports retrieves import records of identity, newest first. limit <= 0 returns all.
func (s *Store) ListImports(ctx context.Context, identity string, limit int) ([]models.ImportRecord, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}

	records := []models.ImportRecord{}
	err := s.db.SelectContext(ctx, &records,
		"SELECT "+importColumns+" FROM imports WHERE imported_by = $1 ORDER BY created_at DESC LIMIT $2",
		identity, lim)
	if err != nil {
		return nil, wrapErr("list imports", err)
	}
	return records, nil
}

// CountImports counts import records of identity
func (s *Store) CountImports(ctx context.Context, identity string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM imports WHERE imported_by = $1", identity); err != nil {
		return 0, wrapErr("count imports", err)
	}
	return n, nil
}

// DeleteImport removes an import record and returns it, or nil when it did not exist.
// The product's available_quantity is left untouched.
func (s *Store) DeleteImport(ctx context.Context, id string) (*models.ImportRecord, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var rec models.ImportRecord
	err = s.db.GetContext(ctx, &rec, "DELETE FROM imports WHERE id = $1 RETURNING "+importColumns, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("delete import", err)
	}
	return &rec, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"export-import-service/internal/models"

	"github.com/google/uuid"
)

const productColumns = `id, name, price, image, origin_country, rating, category, available_quantity, created_at, updated_at`

// ListProducts retrieves catalog entries matching q
func (s *Store) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	args := []interface{}{}

	if q.Search != "" {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		query += " WHERE name ILIKE $1"
	}
	if q.Latest {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY created_at ASC"
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, wrapErr("list products", err)
	}
	return products, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var product models.Product
	err = s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("get product", err)
	}
	return &product, nil
}

// CreateProduct inserts a product and fills its ID and timestamps
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	product.ID = uuid.New().String()

	query := `
		INSERT INTO products (id, name, price, image, origin_country, rating, category, available_quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		product.ID, product.Name, product.Price, product.Image, product.OriginCountry,
		product.Rating, product.Category, product.AvailableQuantity)
	if err := row.Scan(&product.CreatedAt, &product.UpdatedAt); err != nil {
		return wrapErr("create product", err)
	}
	return nil
}

// UpdateProduct applies a partial update under a row lock
func (s *Store) UpdateProduct(ctx context.Context, id string, patch *models.ProductPatch) (*models.Product, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapErr("begin product update", err)
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("lock product", err)
	}

	patch.Apply(&product)

	err = tx.GetContext(ctx, &product.UpdatedAt, `
		UPDATE products
		SET name = $1, price = $2, image = $3, origin_country = $4, rating = $5,
		    category = $6, available_quantity = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`,
		product.Name, product.Price, product.Image, product.OriginCountry, product.Rating,
		product.Category, product.AvailableQuantity, id)
	if err != nil {
		return nil, wrapErr("update product", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapErr("commit product update", err)
	}
	return &product, nil
}

// DeleteProduct removes a product. Import records referencing it are kept.
func (s *Store) DeleteProduct(ctx context.Context, id string) (bool, error) {
	id, err := parseID(id)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return false, wrapErr("delete product", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrapErr("delete product", err)
	}
	return n > 0, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

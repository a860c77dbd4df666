package service

import (
	"context"
	"strings"

	"export-import-service/internal/models"
	"export-import-service/internal/util"

	"go.uber.org/zap"
)

// LatestProductsLimit is the size of the latest products listing
const LatestProductsLimit = 6

// ProductService serves the catalog
type ProductService struct {
	products ProductStore
	opts     Options
	logger   *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(products ProductStore, opts Options) *ProductService {
	return &ProductService{
		products: products,
		opts:     opts,
		logger:   util.GetLogger(),
	}
}

func (s *ProductService) list(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	products, err := s.products.ListProducts(storeCtx, q)
	if err != nil {
		return nil, translate(err, "product")
	}
	return products, nil
}

// ListProducts returns the whole catalog in insertion order
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.ListProducts")
	defer span.End()
	return s.list(ctx, models.ProductQuery{})
}

// SearchProducts matches term case-insensitively against product names
func (s *ProductService) SearchProducts(ctx context.Context, term string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.SearchProducts")
	defer span.End()
	return s.list(ctx, models.ProductQuery{Search: strings.TrimSpace(term)})
}

// LatestProducts returns the newest products
func (s *ProductService) LatestProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.LatestProducts")
	defer span.End()
	return s.list(ctx, models.ProductQuery{Latest: true, Limit: LatestProductsLimit})
}

func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.GetProduct")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("product id is required")
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	product, err := s.products.GetProductByID(storeCtx, id)
	if err != nil {
		return nil, translate(err, "product")
	}
	return product, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	product.Name = strings.TrimSpace(product.Name)
	switch {
	case product.Name == "":
		return nil, invalid("name is required")
	case product.Price < 0:
		return nil, invalid("price must not be negative")
	case product.AvailableQuantity < 0:
		return nil, invalid("available_quantity must not be negative")
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	if err := s.products.CreateProduct(storeCtx, product); err != nil {
		err = translate(err, "product")
		util.RecordSpanError(span, err)
		logFailure(s.logger, "Product create failed", err)
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.Int("available_quantity", product.AvailableQuantity))
	return product, nil
}

// UpdateProduct applies a partial update. Restocking goes through here.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, patch *models.ProductPatch) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.UpdateProduct")
	defer span.End()

	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return nil, invalid("product id is required")
	case patch.Name != nil && strings.TrimSpace(*patch.Name) == "":
		return nil, invalid("name must not be empty")
	case patch.Price != nil && *patch.Price < 0:
		return nil, invalid("price must not be negative")
	case patch.AvailableQuantity != nil && *patch.AvailableQuantity < 0:
		return nil, invalid("available_quantity must not be negative")
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	product, err := s.products.UpdateProduct(storeCtx, id, patch)
	if err != nil {
		err = translate(err, "product")
		util.RecordSpanError(span, err)
		logFailure(s.logger, "Product update failed", err, zap.String("product_id", id))
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a product. Import records keep their snapshot.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) (*models.DeleteResult, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.DeleteProduct")
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("product id is required")
	}

	storeCtx, cancel := withTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	deleted, err := s.products.DeleteProduct(storeCtx, id)
	if err != nil {
		err = translate(err, "product")
		util.RecordSpanError(span, err)
		return nil, err
	}
	if !deleted {
		return &models.DeleteResult{DeletedCount: 0}, nil
	}

	s.logger.Info("Product deleted", zap.String("product_id", id))
	return &models.DeleteResult{DeletedCount: 1}, nil
}

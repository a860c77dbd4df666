// Package mongostore implements the ledger store on MongoDB. Stock-consuming
// writes run inside a session transaction, so the server must be a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"export-import-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the MongoDB backend. Transactions need a replica set.
type Store struct {
	client   *mongo.Client
	products *mongo.Collection
	imports  *mongo.Collection
	exports  *mongo.Collection
}

// Connect opens a client against uri and ensures the ledger indexes exist
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetAppName("export-import-service").
		SetMaxPoolSize(25).
		SetMaxConnIdleTime(30 * time.Second).
		SetTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:   client,
		products: db.Collection(collProducts),
		imports:  db.Collection(collImports),
		exports:  db.Collection(collExports),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create products index: %w", err)
	}

	_, err = s.imports.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "imported_by", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create imports index: %w", err)
	}

	_, err = s.exports.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "addedBy", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create exports index: %w", err)
	}
	return nil
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping checks the primary is reachable
func (s *Store) Ping(ctx context.Context) error {
	return wrapErr("ping", s.client.Ping(ctx, nil))
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", models.ErrInvalidID, id)
	}
	return oid, nil
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fmt.Errorf("%s: %w: %w", op, models.ErrStorageUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ListProducts returns products sorted by created_at, newest first when q.Latest
func (s *Store) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, error) {
	filter := bson.M{}
	if q.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(q.Search), "$options": "i"}
	}

	order := 1
	if q.Latest {
		order = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: order}, {Key: "_id", Value: order}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr("list products", err)
	}
	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode products", err)
	}

	products := make([]models.Product, 0, len(docs))
	for i := range docs {
		products = append(products, docs[i].toModel())
	}
	return products, nil
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc productDoc
	err = s.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("get product", err)
	}
	p := doc.toModel()
	return &p, nil
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	now := time.Now().UTC()
	doc := productDoc{
		ID:                primitive.NewObjectID(),
		Name:              product.Name,
		Price:             product.Price,
		Image:             product.Image,
		OriginCountry:     product.OriginCountry,
		Rating:            product.Rating,
		Category:          product.Category,
		AvailableQuantity: product.AvailableQuantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if _, err := s.products.InsertOne(ctx, doc); err != nil {
		return wrapErr("create product", err)
	}

	product.ID = doc.ID.Hex()
	product.CreatedAt = now
	product.UpdatedAt = now
	return nil
}

// UpdateProduct $sets the patched fields and returns the updated product
func (s *Store) UpdateProduct(ctx context.Context, id string, patch *models.ProductPatch) (*models.Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	set := productSetFields(patch)
	set["updated_at"] = time.Now().UTC()

	var doc productDoc
	err = s.products.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("update product", err)
	}
	p := doc.toModel()
	return &p, nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id string) (bool, error) {
	oid, err := parseID(id)
	if err != nil {
		return false, err
	}

	res, err := s.products.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, wrapErr("delete product", err)
	}
	return res.DeletedCount > 0, nil
}

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Product represents a catalog entry. AvailableQuantity is only ever
// decremented through the import ledger.
type Product struct {
	ID                string    `db:"id" json:"_id"`
	Name              string    `db:"name" json:"name"`
	Price             float64   `db:"price" json:"price"`
	Image             string    `db:"image" json:"image"`
	OriginCountry     string    `db:"origin_country" json:"origin_country"`
	Rating            float64   `db:"rating" json:"rating"`
	Category          string    `db:"category" json:"category"`
	AvailableQuantity int       `db:"available_quantity" json:"available_quantity"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Snapshot freezes the product fields an import record keeps.
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Name:          p.Name,
		Price:         p.Price,
		Image:         p.Image,
		OriginCountry: p.OriginCountry,
		Rating:        p.Rating,
	}
}

// ProductPatch carries the fields of a partial product update; nil fields are left untouched.
type ProductPatch struct {
	Name              *string  `json:"name"`
	Price             *float64 `json:"price" binding:"omitempty,gte=0"`
	Image             *string  `json:"image"`
	OriginCountry     *string  `json:"origin_country"`
	Rating            *float64 `json:"rating"`
	Category          *string  `json:"category"`
	AvailableQuantity *int     `json:"available_quantity" binding:"omitempty,gte=0"`
}

// Apply merges the patch over p.
func (pp *ProductPatch) Apply(p *Product) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Image != nil {
		p.Image = *pp.Image
	}
	if pp.OriginCountry != nil {
		p.OriginCountry = *pp.OriginCountry
	}
	if pp.Rating != nil {
		p.Rating = *pp.Rating
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.AvailableQuantity != nil {
		p.AvailableQuantity = *pp.AvailableQuantity
	}
}

// ProductSnapshot is the immutable copy of product fields taken at import time
type ProductSnapshot struct {
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Image         string  `json:"image"`
	OriginCountry string  `json:"originCountry"`
	Rating        float64 `json:"rating"`
}

// Value stores the snapshot as a JSON document.
func (s ProductSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON document column into the snapshot.
func (s *ProductSnapshot) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// ImportRecord is one consumption event in the import ledger.
// ProductID is a weak reference; the product may be deleted later.
type ImportRecord struct {
	ID               string          `db:"id" json:"_id"`
	ProductID        string          `db:"product_id" json:"productId"`
	ImportedQuantity int             `db:"imported_quantity" json:"importedQuantity"`
	ImportedBy       string          `db:"imported_by" json:"imported_by"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	ProductSnapshot  ProductSnapshot `db:"product_snapshot" json:"productSnapshot"`
}

// ImportReceipt is returned by a successful import
type ImportReceipt struct {
	Success  bool   `json:"success"`
	ImportID string `json:"importId"`
}

// ExportRecord is a seller listing. It has no relationship to the catalog.
type ExportRecord struct {
	ID                string     `db:"id" json:"_id"`
	AddedBy           string     `db:"added_by" json:"addedBy"`
	Name              string     `db:"name" json:"name"`
	Price             float64    `db:"price" json:"price"`
	Image             string     `db:"image" json:"image"`
	OriginCountry     string     `db:"origin_country" json:"origin_country"`
	Rating            float64    `db:"rating" json:"rating"`
	Category          string     `db:"category" json:"category"`
	AvailableQuantity int        `db:"available_quantity" json:"available_quantity"`
	Attributes        Attributes `db:"attributes" json:"attributes,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// ExportPatch is a shallow partial update of an export record
type ExportPatch struct {
	Name              *string    `json:"name"`
	Price             *float64   `json:"price" binding:"omitempty,gte=0"`
	Image             *string    `json:"image"`
	OriginCountry     *string    `json:"origin_country"`
	Rating            *float64   `json:"rating"`
	Category          *string    `json:"category"`
	AvailableQuantity *int       `json:"available_quantity" binding:"omitempty,gte=0"`
	Attributes        Attributes `json:"attributes"`
}

// Empty reports whether the patch carries no field at all.
func (ep *ExportPatch) Empty() bool {
	return ep.Name == nil && ep.Price == nil && ep.Image == nil && ep.OriginCountry == nil &&
		ep.Rating == nil && ep.Category == nil && ep.AvailableQuantity == nil && len(ep.Attributes) == 0
}

// Apply merges the patch over e. Attribute keys are merged one level deep.
func (ep *ExportPatch) Apply(e *ExportRecord) {
	if ep.Name != nil {
		e.Name = *ep.Name
	}
	if ep.Price != nil {
		e.Price = *ep.Price
	}
	if ep.Image != nil {
		e.Image = *ep.Image
	}
	if ep.OriginCountry != nil {
		e.OriginCountry = *ep.OriginCountry
	}
	if ep.Rating != nil {
		e.Rating = *ep.Rating
	}
	if ep.Category != nil {
		e.Category = *ep.Category
	}
	if ep.AvailableQuantity != nil {
		e.AvailableQuantity = *ep.AvailableQuantity
	}
	if len(ep.Attributes) > 0 {
		merged := make(Attributes, len(e.Attributes)+len(ep.Attributes))
		for k, v := range e.Attributes {
			merged[k] = v
		}
		for k, v := range ep.Attributes {
			merged[k] = v
		}
		e.Attributes = merged
	}
}

// Attributes holds free-form seller supplied fields
type Attributes map[string]interface{}

// Value stores the attributes as a JSON document.
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads a JSON document column into the attributes.
func (a *Attributes) Scan(src interface{}) error {
	return scanJSON(src, a)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}

// UpdateResult mirrors the counters a document store reports for an update
type UpdateResult struct {
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult mirrors the counter a document store reports for a delete
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ChartPoint is one bar of the dashboard chart
type ChartPoint struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// DashboardStats are the headline numbers of the dashboard
type DashboardStats struct {
	Imports int64   `json:"imports"`
	Exports int64   `json:"exports"`
	Balance float64 `json:"balance"`
}

// Dashboard is the aggregated view of one identity's ledgers
type Dashboard struct {
	Stats        DashboardStats `json:"stats"`
	ChartData    []ChartPoint   `json:"chartData"`
	RecentTrades []ImportRecord `json:"recentTrades"`
}

// ProductQuery selects catalog entries for listing
type ProductQuery struct {
	// Search is matched case-insensitively against the product name.
	Search string
	// Latest orders by created_at descending instead of insertion order.
	Latest bool
	Limit  int
}

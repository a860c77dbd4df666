package mongostore

import (
	"time"

	"export-import-service/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection names
const (
	collProducts = "products"
	collImports  = "imports"
	collExports  = "exports"
)

type productDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	Name              string             `bson:"name"`
	Price             float64            `bson:"price"`
	Image             string             `bson:"image"`
	OriginCountry     string             `bson:"origin_country"`
	Rating            float64            `bson:"rating"`
	Category          string             `bson:"category"`
	AvailableQuantity int                `bson:"available_quantity"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

func (d *productDoc) toModel() models.Product {
	return models.Product{
		ID:                d.ID.Hex(),
		Name:              d.Name,
		Price:             d.Price,
		Image:             d.Image,
		OriginCountry:     d.OriginCountry,
		Rating:            d.Rating,
		Category:          d.Category,
		AvailableQuantity: d.AvailableQuantity,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type snapshotDoc struct {
	Name          string  `bson:"name"`
	Price         float64 `bson:"price"`
	Image         string  `bson:"image"`
	OriginCountry string  `bson:"originCountry"`
	Rating        float64 `bson:"rating"`
}

type importDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	ProductID        string             `bson:"productId"`
	ImportedQuantity int                `bson:"importedQuantity"`
	ImportedBy       string             `bson:"imported_by"`
	CreatedAt        time.Time          `bson:"createdAt"`
	ProductSnapshot  snapshotDoc        `bson:"productSnapshot"`
}

func (d *importDoc) toModel() models.ImportRecord {
	return models.ImportRecord{
		ID:               d.ID.Hex(),
		ProductID:        d.ProductID,
		ImportedQuantity: d.ImportedQuantity,
		ImportedBy:       d.ImportedBy,
		CreatedAt:        d.CreatedAt,
		ProductSnapshot: models.ProductSnapshot{
			Name:          d.ProductSnapshot.Name,
			Price:         d.ProductSnapshot.Price,
			Image:         d.ProductSnapshot.Image,
			OriginCountry: d.ProductSnapshot.OriginCountry,
			Rating:        d.ProductSnapshot.Rating,
		},
	}
}

type exportDoc struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	AddedBy           string             `bson:"addedBy"`
	Name              string             `bson:"name"`
	Price             float64            `bson:"price"`
	Image             string             `bson:"image"`
	OriginCountry     string             `bson:"origin_country"`
	Rating            float64            `bson:"rating"`
	Category          string             `bson:"category"`
	AvailableQuantity int                `bson:"available_quantity"`
	Attributes        bson.M             `bson:"attributes,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt"`
}

func (d *exportDoc) toModel() models.ExportRecord {
	var attrs models.Attributes
	if len(d.Attributes) > 0 {
		attrs = make(models.Attributes, len(d.Attributes))
		for k, v := range d.Attributes {
			attrs[k] = v
		}
	}
	return models.ExportRecord{
		ID:                d.ID.Hex(),
		AddedBy:           d.AddedBy,
		Name:              d.Name,
		Price:             d.Price,
		Image:             d.Image,
		OriginCountry:     d.OriginCountry,
		Rating:            d.Rating,
		Category:          d.Category,
		AvailableQuantity: d.AvailableQuantity,
		Attributes:        attrs,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func productSetFields(p *models.ProductPatch) bson.M {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Price != nil {
		set["price"] = *p.Price
	}
	if p.Image != nil {
		set["image"] = *p.Image
	}
	if p.OriginCountry != nil {
		set["origin_country"] = *p.OriginCountry
	}
	if p.Rating != nil {
		set["rating"] = *p.Rating
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.AvailableQuantity != nil {
		set["available_quantity"] = *p.AvailableQuantity
	}
	return set
}

// exportSetFields builds a $set document; attribute keys are set individually
// so unrelated attributes survive the update.
func exportSetFields(p *models.ExportPatch) bson.M {
	set := bson.M{}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Price != nil {
		set["price"] = *p.Price
	}
	if p.Image != nil {
		set["image"] = *p.Image
	}
	if p.OriginCountry != nil {
		set["origin_country"] = *p.OriginCountry
	}
	if p.Rating != nil {
		set["rating"] = *p.Rating
	}
	if p.Category != nil {
		set["category"] = *p.Category
	}
	if p.AvailableQuantity != nil {
		set["available_quantity"] = *p.AvailableQuantity
	}
	for k, v := range p.Attributes {
		set["attributes."+k] = v
	}
	return set
}

package models

import "time"

// Event types
const (
	EventTypeImportRecorded = "IMPORT_RECORDED"
	EventTypeImportDeleted  = "IMPORT_DELETED"
	EventTypeExportCreated  = "EXPORT_CREATED"
	EventTypeExportUpdated  = "EXPORT_UPDATED"
	EventTypeExportDeleted  = "EXPORT_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ImportRecordedEvent published when stock is consumed
type ImportRecordedEvent struct {
	BaseEvent
	ImportID         string          `json:"import_id"`
	ProductID        string          `json:"product_id"`
	ImportedBy       string          `json:"imported_by"`
	ImportedQuantity int             `json:"imported_quantity"`
	ProductSnapshot  ProductSnapshot `json:"product_snapshot"`
}

// ImportDeletedEvent published when an import record is removed
type ImportDeletedEvent struct {
	BaseEvent
	ImportID   string `json:"import_id"`
	ImportedBy string `json:"imported_by"`
}

// ExportChangedEvent published on export create, update and delete
type ExportChangedEvent struct {
	BaseEvent
	ExportID string  `json:"export_id"`
	AddedBy  string  `json:"added_by"`
	Price    float64 `json:"price"`
}

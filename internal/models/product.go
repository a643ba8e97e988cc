package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// EnrichmentStatus represents the enrichment state of a single product record
type EnrichmentStatus string

const (
	EnrichmentStatusPending    EnrichmentStatus = "pending"
	EnrichmentStatusProcessing EnrichmentStatus = "processing"
	EnrichmentStatusCompleted  EnrichmentStatus = "completed"
	EnrichmentStatusFailed     EnrichmentStatus = "failed"
)

// Product represents a single line item extracted from an uploaded catalog.
// OriginalData keeps the raw row verbatim; the canonical columns hold the
// mapped values and EnrichedData holds whatever the provider returned.
type Product struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CatalogID   uuid.UUID      `json:"catalogId" gorm:"type:uuid;not null;index:idx_products_catalog;index:idx_products_catalog_status"`
	UserID      uuid.UUID      `json:"userId" gorm:"type:uuid;not null;index:idx_products_user"`
	LineItemID  string         `json:"lineItemId" gorm:"not null"`
	RowIndex    int            `json:"rowIndex" gorm:"not null;default:0"`
	Name        string         `json:"name" gorm:"not null"`
	Description *string        `json:"description,omitempty"`
	Category    *string        `json:"category,omitempty"`
	Brand       *string        `json:"brand,omitempty"`
	SKU         *string        `json:"sku,omitempty"`
	UPC         *string        `json:"upc,omitempty"`
	Price       *float64       `json:"price,omitempty"`
	Currency    string         `json:"currency" gorm:"default:'USD'"`
	Quantity    *int           `json:"quantity,omitempty"`
	Unit        string         `json:"unit" gorm:"default:'piece'"`
	MainImage   *string        `json:"mainImage,omitempty"`
	Images      pq.StringArray `json:"images,omitempty" gorm:"type:text[]"`

	OriginalData datatypes.JSON `json:"originalData,omitempty" gorm:"type:jsonb"`
	EnrichedData datatypes.JSON `json:"enrichedData,omitempty" gorm:"type:jsonb"`

	EnrichmentSource string           `json:"enrichmentSource,omitempty"`
	EnrichmentStatus EnrichmentStatus `json:"enrichmentStatus" gorm:"not null;default:'pending';index:idx_products_catalog_status"`
	EnrichmentErrors pq.StringArray   `json:"enrichmentErrors,omitempty" gorm:"type:text[]"`
	EnrichedAt       *time.Time       `json:"enrichedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// ProductResponse wraps a single product
type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
	Message *string  `json:"message,omitempty"`
}

// ProductListResponse wraps a product page
type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

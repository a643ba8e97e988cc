package models

import (
	"time"

	"github.com/google/uuid"
)

// CatalogStatus represents the enrichment lifecycle state of a catalog
type CatalogStatus string

const (
	CatalogStatusUploaded           CatalogStatus = "uploaded"
	CatalogStatusProcessing         CatalogStatus = "processing"
	CatalogStatusCompleted          CatalogStatus = "completed"
	CatalogStatusPartiallyCompleted CatalogStatus = "partially_completed"
	CatalogStatusError              CatalogStatus = "error"
)

// Catalog represents an uploaded product catalog file and its enrichment progress.
// The status field moves uploaded -> processing -> {completed, partially_completed, error};
// the enrichment engine is the only writer once processing starts.
type Catalog struct {
	ID                    uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID                uuid.UUID     `json:"userId" gorm:"type:uuid;not null;index:idx_catalogs_user;index:idx_catalogs_user_status"`
	Name                  string        `json:"name" gorm:"not null"`
	Description           *string       `json:"description,omitempty"`
	Category              *string       `json:"category,omitempty"`
	FilePath              string        `json:"filePath" gorm:"not null"`
	FileName              string        `json:"fileName" gorm:"not null"`
	FileSize              int64         `json:"fileSize"`
	TotalItems            int           `json:"totalItems" gorm:"not null;default:0"`
	EnrichedItems         int           `json:"enrichedItems" gorm:"not null;default:0"`
	Status                CatalogStatus `json:"status" gorm:"not null;default:'uploaded';index:idx_catalogs_user_status"`
	EnrichmentStartedAt   *time.Time    `json:"enrichmentStartedAt,omitempty"`
	EnrichmentCompletedAt *time.Time    `json:"enrichmentCompletedAt,omitempty"`
	CreatedAt             time.Time     `json:"createdAt"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

// TableName returns the table name for the Catalog model
func (Catalog) TableName() string {
	return "catalogs"
}

// UpdateCatalogRequest represents a request to update catalog metadata
type UpdateCatalogRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
}

// CatalogResponse wraps a single catalog
type CatalogResponse struct {
	Success bool     `json:"success"`
	Data    *Catalog `json:"data"`
	Message *string  `json:"message,omitempty"`
}

// CatalogListResponse wraps a catalog page
type CatalogListResponse struct {
	Success    bool            `json:"success"`
	Data       []Catalog       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

// CatalogUploadResponse is returned after a successful catalog file upload
type CatalogUploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	CatalogID  string `json:"catalogId"`
	FileName   string `json:"fileName"`
	TotalItems int    `json:"totalItems"`
}

// EnrichmentProgress breaks down product records by enrichment status
type EnrichmentProgress struct {
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
}

// CatalogSummary aggregates catalog-level enrichment statistics
type CatalogSummary struct {
	CatalogID             string             `json:"catalogId"`
	Name                  string             `json:"name"`
	Status                CatalogStatus      `json:"status"`
	TotalItems            int                `json:"totalItems"`
	EnrichedItems         int                `json:"enrichedItems"`
	EnrichmentProgress    EnrichmentProgress `json:"enrichmentProgress"`
	ProgressPercentage    float64            `json:"progressPercentage"`
	CreatedAt             time.Time          `json:"createdAt"`
	UpdatedAt             time.Time          `json:"updatedAt"`
	EnrichmentStartedAt   *time.Time         `json:"enrichmentStartedAt,omitempty"`
	EnrichmentCompletedAt *time.Time         `json:"enrichmentCompletedAt,omitempty"`
}

// EnrichmentStatusResponse is the polling contract for enrichment progress
type EnrichmentStatusResponse struct {
	CatalogID             string        `json:"catalogId"`
	Status                CatalogStatus `json:"status"`
	TotalItems            int           `json:"totalItems"`
	EnrichedItems         int           `json:"enrichedItems"`
	EnrichmentStartedAt   *time.Time    `json:"enrichmentStartedAt,omitempty"`
	EnrichmentCompletedAt *time.Time    `json:"enrichmentCompletedAt,omitempty"`
	ProgressPercentage    float64       `json:"progressPercentage"`
}

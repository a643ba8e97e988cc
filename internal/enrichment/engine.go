package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/rowsource"
	"catalog-service/internal/storage"
)

var (
	// ErrUnknownProvider is returned when the requested provider is not registered
	ErrUnknownProvider = errors.New("unknown enrichment provider")
	// ErrCatalogNotEnrichable is returned when the catalog is already processing
	// or in a terminal status
	ErrCatalogNotEnrichable = errors.New("catalog is not in an enrichable state")
)

// DefaultBatchSize bounds concurrent provider calls per batch
const DefaultBatchSize = 10

// enrichableStatuses are the catalog states an enrichment run may start from
var enrichableStatuses = []models.CatalogStatus{
	models.CatalogStatusUploaded,
	models.CatalogStatusError,
}

// EnrichmentResult summarizes one enrichment run
type EnrichmentResult struct {
	CatalogID        string               `json:"catalogId"`
	TotalItems       int                  `json:"totalItems"`
	EnrichedItems    int                  `json:"enrichedItems"`
	FailedItems      int                  `json:"failedItems"`
	Status           models.CatalogStatus `json:"status"`
	Provider         string               `json:"provider"`
	UsedFallbackRows bool                 `json:"usedFallbackRows"`
}

// Engine runs the catalog enrichment pipeline: it partitions a catalog's rows
// into batches, maps and enriches the items of each batch concurrently,
// persists one product record per row and keeps the catalog's progress
// counters current. Batches run strictly sequentially, so peak concurrent
// provider calls are bounded by the batch size.
type Engine struct {
	catalogs repository.CatalogsRepositoryInterface
	products repository.ProductsRepositoryInterface
	files    storage.FilesClient
	mapper   *Mapper
	registry *Registry
}

func NewEngine(
	catalogs repository.CatalogsRepositoryInterface,
	products repository.ProductsRepositoryInterface,
	files storage.FilesClient,
	mapper *Mapper,
	registry *Registry,
) *Engine {
	return &Engine{
		catalogs: catalogs,
		products: products,
		files:    files,
		mapper:   mapper,
		registry: registry,
	}
}

// Providers returns the registered provider names
func (e *Engine) Providers() []string {
	return e.registry.Names()
}

// EnrichCatalog enriches every line item of a catalog with the named
// provider. The catalog must belong to userID and must not already be
// processing or in a completed state; the status transition is a conditional
// update, so two concurrent calls cannot both start a run.
func (e *Engine) EnrichCatalog(ctx context.Context, catalogID, userID uuid.UUID, providerName string, batchSize int) (*EnrichmentResult, error) {
	provider, ok := e.registry.Get(providerName)
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownProvider, providerName, e.registry.Names())
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	catalog, err := e.catalogs.GetByID(ctx, catalogID, userID)
	if err != nil {
		return nil, err
	}

	won, err := e.catalogs.TransitionStatus(ctx, catalogID, enrichableStatuses, models.CatalogStatusProcessing)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: status is %s", ErrCatalogNotEnrichable, catalog.Status)
	}

	rows, usedFallback := e.loadRows(ctx, catalog)
	if len(rows) == 0 {
		err := errors.New("no line items found in catalog")
		e.failRun(ctx, catalogID, err)
		return nil, err
	}

	totalItems := len(rows)
	enriched := 0
	failed := 0

	for start := 0; start < totalItems; start += batchSize {
		if err := ctx.Err(); err != nil {
			e.failRun(ctx, catalogID, err)
			return nil, err
		}

		end := start + batchSize
		if end > totalItems {
			end = totalItems
		}

		batchEnriched, batchFailed := e.runBatch(ctx, rows[start:end], start, catalog, provider)
		enriched += batchEnriched
		failed += batchFailed

		if err := e.catalogs.UpdateEnrichmentProgress(ctx, catalogID, enriched, totalItems); err != nil {
			e.failRun(ctx, catalogID, err)
			return nil, err
		}

		logrus.WithFields(logrus.Fields{
			"catalog_id": catalogID.String(),
			"batch":      start/batchSize + 1,
			"enriched":   enriched,
			"failed":     failed,
		}).Info("Processed enrichment batch")
	}

	finalStatus := models.CatalogStatusCompleted
	if failed > 0 {
		finalStatus = models.CatalogStatusPartiallyCompleted
	}
	if err := e.catalogs.FinishEnrichment(ctx, catalogID, finalStatus, enriched); err != nil {
		e.failRun(ctx, catalogID, err)
		return nil, err
	}

	return &EnrichmentResult{
		CatalogID:        catalogID.String(),
		TotalItems:       totalItems,
		EnrichedItems:    enriched,
		FailedItems:      failed,
		Status:           finalStatus,
		Provider:         providerName,
		UsedFallbackRows: usedFallback,
	}, nil
}

// runBatch enriches one batch's items concurrently and waits for all of them.
// A single item's failure or panic is counted, never propagated to siblings.
func (e *Engine) runBatch(ctx context.Context, batch []rowsource.RawRow, offset int, catalog *models.Catalog, provider Provider) (enriched, failed int) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, row := range batch {
		wg.Add(1)
		go func(row rowsource.RawRow, index int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithFields(logrus.Fields{
						"catalog_id": catalog.ID.String(),
						"item_index": index,
						"panic":      r,
					}).Error("Item enrichment panicked")
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}()

			ok := e.enrichOne(ctx, row, index, catalog, provider)

			mu.Lock()
			if ok {
				enriched++
			} else {
				failed++
			}
			mu.Unlock()
		}(row, offset+i)
	}

	wg.Wait()
	return enriched, failed
}

// enrichOne maps, enriches and persists a single item. Returns whether the
// item counts as enriched.
func (e *Engine) enrichOne(ctx context.Context, row rowsource.RawRow, index int, catalog *models.Catalog, provider Provider) bool {
	canonical := e.mapper.Map(row, index)
	outcome := provider.EnrichItem(ctx, canonical)

	record := buildProductRecord(catalog, row, index, canonical, outcome)
	if err := e.products.Create(ctx, record); err != nil {
		logrus.WithFields(logrus.Fields{
			"catalog_id": catalog.ID.String(),
			"item_index": index,
			"error":      err.Error(),
		}).Error("Failed to persist product record")
		return false
	}

	return outcome.Status == models.EnrichmentStatusCompleted
}

// loadRows fetches and parses the catalog's backing file. On any retrieval or
// parsing failure it falls back to the built-in sample rows so a broken file
// degrades instead of aborting the run; the fallback is logged and surfaced in
// the result.
func (e *Engine) loadRows(ctx context.Context, catalog *models.Catalog) ([]rowsource.RawRow, bool) {
	data, err := e.files.Download(ctx, catalog.FilePath)
	if err == nil {
		rows, parseErr := rowsource.Rows(catalog.FileName, data)
		if parseErr == nil {
			return rows, false
		}
		err = parseErr
	}

	logrus.WithFields(logrus.Fields{
		"catalog_id": catalog.ID.String(),
		"file_name":  catalog.FileName,
		"error":      err.Error(),
	}).Warn("Failed to load catalog rows, falling back to sample data")

	return sampleRows(), true
}

func (e *Engine) failRun(ctx context.Context, catalogID uuid.UUID, cause error) {
	logrus.WithFields(logrus.Fields{
		"catalog_id": catalogID.String(),
		"error":      cause.Error(),
	}).Error("Catalog enrichment failed")
	if err := e.catalogs.MarkEnrichmentError(context.WithoutCancel(ctx), catalogID); err != nil {
		logrus.WithField("catalog_id", catalogID.String()).
			WithError(err).Error("Failed to mark catalog enrichment error")
	}
}

// buildProductRecord flattens a canonical product and its enrichment outcome
// into the persisted row, keeping the raw input verbatim as audit trail.
func buildProductRecord(catalog *models.Catalog, row rowsource.RawRow, index int, canonical CanonicalProduct, outcome Outcome) *models.Product {
	originalData, _ := json.Marshal(row)

	var enrichedData datatypes.JSON
	if outcome.Data != nil {
		enrichedData, _ = json.Marshal(outcome.Data)
	}

	mainImage, images := extractImages(outcome)

	record := &models.Product{
		CatalogID:        catalog.ID,
		UserID:           catalog.UserID,
		LineItemID:       fmt.Sprintf("item_%d", index),
		RowIndex:         index,
		Name:             canonical.Name,
		Category:         canonical.Category,
		Brand:            canonical.Brand,
		SKU:              canonical.SKU,
		UPC:              canonical.UPC,
		Price:            canonical.Price,
		Currency:         canonical.Currency,
		Quantity:         canonical.Quantity,
		Unit:             canonical.Unit,
		MainImage:        mainImage,
		Images:           pq.StringArray(images),
		OriginalData:     datatypes.JSON(originalData),
		EnrichedData:     enrichedData,
		EnrichmentSource: outcome.Source,
		EnrichmentStatus: outcome.Status,
		EnrichmentErrors: pq.StringArray(outcome.Errors),
	}
	if canonical.Description != "" {
		description := canonical.Description
		record.Description = &description
	}
	if !outcome.EnrichedAt.IsZero() {
		enrichedAt := outcome.EnrichedAt
		record.EnrichedAt = &enrichedAt
	}
	return record
}

// extractImages pulls image URLs out of the provider payload
func extractImages(outcome Outcome) (*string, []string) {
	if outcome.Data == nil {
		return nil, nil
	}

	var images []string
	var mainImage *string

	switch {
	case strings.Contains(outcome.Source, "keepa"):
		images = toStringSlice(outcome.Data["keepa_images"])
		if main, ok := outcome.Data["keepa_main_image"].(string); ok && main != "" {
			mainImage = &main
		}
	case strings.Contains(outcome.Source, "amazon"):
		images = toStringSlice(outcome.Data["amazon_images"])
	}

	if mainImage == nil && len(images) > 0 {
		mainImage = &images[0]
	}
	return mainImage, images
}

func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// sampleRows is the degraded-mode data set used when the catalog file cannot
// be read or parsed.
func sampleRows() []rowsource.RawRow {
	return []rowsource.RawRow{
		{
			"name":        "Wireless Bluetooth Headphones",
			"description": "High-quality wireless headphones",
			"category":    "Electronics",
			"brand":       "AudioTech",
			"sku":         "ATH-BT001",
			"price":       99.99,
			"currency":    "USD",
			"quantity":    1,
			"unit":        "piece",
		},
		{
			"name":        "Smartphone Case",
			"description": "Protective case for smartphones",
			"category":    "Accessories",
			"brand":       "CasePro",
			"sku":         "CP-SC001",
			"price":       19.99,
			"currency":    "USD",
			"quantity":    1,
			"unit":        "piece",
		},
		{
			"name":        "USB-C Cable",
			"description": "Fast charging USB-C cable",
			"category":    "Cables",
			"brand":       "CableMax",
			"sku":         "CM-UC001",
			"price":       12.99,
			"currency":    "USD",
			"quantity":    2,
			"unit":        "piece",
		},
	}
}

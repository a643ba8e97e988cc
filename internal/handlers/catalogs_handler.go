package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/config"
	"catalog-service/internal/enrichment"
	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/rowsource"
	"catalog-service/internal/storage"
)

type CatalogsHandler struct {
	catalogs        repository.CatalogsRepositoryInterface
	products        repository.ProductsRepositoryInterface
	offers          repository.OffersRepositoryInterface
	files           storage.FilesClient
	engine          *enrichment.Engine
	eventsPublisher *events.Publisher
	cfg             *config.Config
}

func NewCatalogsHandler(
	catalogs repository.CatalogsRepositoryInterface,
	products repository.ProductsRepositoryInterface,
	offers repository.OffersRepositoryInterface,
	files storage.FilesClient,
	engine *enrichment.Engine,
	eventsPublisher *events.Publisher,
	cfg *config.Config,
) *CatalogsHandler {
	return &CatalogsHandler{
		catalogs:        catalogs,
		products:        products,
		offers:          offers,
		files:           files,
		engine:          engine,
		eventsPublisher: eventsPublisher,
		cfg:             cfg,
	}
}

// userID extracts the authenticated user ID set by the auth middleware
func userID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UNAUTHORIZED",
				Message: "Invalid or missing user identity",
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses a UUID path parameter
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid " + name + " format",
				Field:   name,
			},
		})
		return uuid.Nil, false
	}
	return id, true
}

// paginationParams parses page/limit query params within configured bounds
func paginationParams(c *gin.Context, cfg *config.Config) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(cfg.DefaultPageSize)))
	if limit < 1 {
		limit = cfg.DefaultPageSize
	}
	if limit > cfg.MaxPageSize {
		limit = cfg.MaxPageSize
	}
	return page, limit
}

func paginationInfo(page, limit int, total int64) *models.PaginationInfo {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &models.PaginationInfo{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

func notFoundOrInternal(c *gin.Context, err error, notFoundMessage, code, message string) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: notFoundMessage,
			},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    code,
			Message: message,
		},
	})
}

// UploadCatalog uploads a catalog file and registers it for enrichment
// @Summary Upload a catalog file
// @Description Upload a CSV, XLSX or JSON product catalog
// @Tags catalogs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Catalog file"
// @Param name formData string true "Catalog name"
// @Param description formData string false "Catalog description"
// @Param category formData string false "Catalog category"
// @Success 201 {object} models.CatalogUploadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalogs/upload [post]
func (h *CatalogsHandler) UploadCatalog(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Catalog file is required",
				Field:   "file",
			},
		})
		return
	}

	name := c.PostForm("name")
	if name == "" {
		name = fileHeader.Filename
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Failed to read uploaded file",
				Field:   "file",
			},
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "Failed to read uploaded file",
				Field:   "file",
			},
		})
		return
	}

	rows, err := rowsource.Rows(fileHeader.Filename, data)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UNSUPPORTED_FILE",
				Message: err.Error(),
				Field:   "file",
			},
		})
		return
	}

	catalogID := uuid.New()
	fileKey := storage.FileKey(uid.String(), catalogID.String(), fileHeader.Filename)

	if err := h.files.Upload(c.Request.Context(), fileKey, fileHeader.Filename, data); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "UPLOAD_FAILED",
				Message: "Failed to store catalog file",
			},
		})
		return
	}

	catalog := &models.Catalog{
		ID:         catalogID,
		UserID:     uid,
		Name:       name,
		FilePath:   fileKey,
		FileName:   fileHeader.Filename,
		FileSize:   fileHeader.Size,
		TotalItems: len(rows),
		Status:     models.CatalogStatusUploaded,
	}
	if description := c.PostForm("description"); description != "" {
		catalog.Description = &description
	}
	if category := c.PostForm("category"); category != "" {
		catalog.Category = &category
	}

	if err := h.catalogs.Create(c.Request.Context(), catalog); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATION_FAILED",
				Message: "Failed to create catalog",
			},
		})
		return
	}

	h.eventsPublisher.PublishCatalogUploaded(catalog)

	c.JSON(http.StatusCreated, models.CatalogUploadResponse{
		Success:    true,
		Message:    "Catalog uploaded successfully",
		CatalogID:  catalog.ID.String(),
		FileName:   catalog.FileName,
		TotalItems: catalog.TotalItems,
	})
}

// ListCatalogs lists the user's catalogs
// @Summary List catalogs
// @Tags catalogs
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param status query string false "Filter by status"
// @Success 200 {object} models.CatalogListResponse
// @Security BearerAuth
// @Router /catalogs [get]
func (h *CatalogsHandler) ListCatalogs(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	page, limit := paginationParams(c, h.cfg)

	var status *models.CatalogStatus
	if raw := c.Query("status"); raw != "" {
		s := models.CatalogStatus(raw)
		status = &s
	}

	catalogs, total, err := h.catalogs.List(c.Request.Context(), uid, status, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "LIST_FAILED",
				Message: "Failed to list catalogs",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.CatalogListResponse{
		Success:    true,
		Data:       catalogs,
		Pagination: paginationInfo(page, limit, total),
	})
}

// GetCatalog returns one catalog
// @Summary Get catalog by ID
// @Tags catalogs
// @Produce json
// @Param id path string true "Catalog ID"
// @Success 200 {object} models.CatalogResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalogs/{id} [get]
func (h *CatalogsHandler) GetCatalog(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	catalog, err := h.catalogs.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Catalog not found", "FETCH_FAILED", "Failed to fetch catalog")
		return
	}

	c.JSON(http.StatusOK, models.CatalogResponse{Success: true, Data: catalog})
}

// UpdateCatalog updates catalog metadata
// @Summary Update catalog
// @Tags catalogs
// @Accept json
// @Produce json
// @Param id path string true "Catalog ID"
// @Param catalog body models.UpdateCatalogRequest true "Fields to update"
// @Success 200 {object} models.CatalogResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalogs/{id} [put]
func (h *CatalogsHandler) UpdateCatalog(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
			},
		})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "No fields to update",
			},
		})
		return
	}

	if err := h.catalogs.Update(c.Request.Context(), id, uid, updates); err != nil {
		notFoundOrInternal(c, err, "Catalog not found", "UPDATE_FAILED", "Failed to update catalog")
		return
	}

	catalog, err := h.catalogs.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Catalog not found", "FETCH_FAILED", "Failed to fetch catalog")
		return
	}

	c.JSON(http.StatusOK, models.CatalogResponse{Success: true, Data: catalog})
}

// DeleteCatalog deletes a catalog along with its products, offers and stored file
// @Summary Delete catalog
// @Tags catalogs
// @Produce json
// @Param id path string true "Catalog ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalogs/{id} [delete]
func (h *CatalogsHandler) DeleteCatalog(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	catalog, err := h.catalogs.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Catalog not found", "FETCH_FAILED", "Failed to fetch catalog")
		return
	}

	if err := h.products.DeleteByCatalog(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DELETE_FAILED",
				Message: "Failed to delete catalog products",
			},
		})
		return
	}
	if err := h.offers.DeleteByCatalog(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DELETE_FAILED",
				Message: "Failed to delete catalog offers",
			},
		})
		return
	}

	// Stored file removal is best-effort
	if err := h.files.Delete(c.Request.Context(), catalog.FilePath); err != nil {
		logrus.WithFields(logrus.Fields{
			"catalog_id": id.String(),
			"file_path":  catalog.FilePath,
		}).WithError(err).Warn("Failed to delete catalog file")
	}

	if err := h.catalogs.Delete(c.Request.Context(), id, uid); err != nil {
		notFoundOrInternal(c, err, "Catalog not found", "DELETE_FAILED", "Failed to delete catalog")
		return
	}

	message := "Catalog deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// GetCatalogSummary returns catalog-level enrichment statistics
// @Summary Get catalog summary
// @Tags catalogs
// @Produce json
// @Param id path string true "Catalog ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalogs/{id}/summary [get]
func (h *CatalogsHandler) GetCatalogSummary(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	catalog, err := h.catalogs.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Catalog not found", "FETCH_FAILED", "Failed to fetch catalog")
		return
	}

	counts, err := h.products.CountByStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FETCH_FAILED",
				Message: "Failed to compute catalog summary",
			},
		})
		return
	}

	summary := models.CatalogSummary{
		CatalogID:     catalog.ID.String(),
		Name:          catalog.Name,
		Status:        catalog.Status,
		TotalItems:    catalog.TotalItems,
		EnrichedItems: catalog.EnrichedItems,
		EnrichmentProgress: models.EnrichmentProgress{
			Completed:  int(counts[models.EnrichmentStatusCompleted]),
			Failed:     int(counts[models.EnrichmentStatusFailed]),
			Pending:    int(counts[models.EnrichmentStatusPending]),
			Processing: int(counts[models.EnrichmentStatusProcessing]),
		},
		ProgressPercentage:    progressPercentage(catalog.EnrichedItems, catalog.TotalItems),
		CreatedAt:             catalog.CreatedAt,
		UpdatedAt:             catalog.UpdatedAt,
		EnrichmentStartedAt:   catalog.EnrichmentStartedAt,
		EnrichmentCompletedAt: catalog.EnrichmentCompletedAt,
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: summary})
}

// GetEnrichmentStatus returns the enrichment progress for polling
// @Summary Get catalog enrichment status
// @Tags catalogs
// @Produce json
// @Param id path string true "Catalog ID"
// @Success 200 {object} models.EnrichmentStatusResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalogs/{id}/enrichment-status [get]
func (h *CatalogsHandler) GetEnrichmentStatus(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	catalog, err := h.catalogs.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Catalog not found", "FETCH_FAILED", "Failed to fetch catalog")
		return
	}

	c.JSON(http.StatusOK, models.EnrichmentStatusResponse{
		CatalogID:             catalog.ID.String(),
		Status:                catalog.Status,
		TotalItems:            catalog.TotalItems,
		EnrichedItems:         catalog.EnrichedItems,
		EnrichmentStartedAt:   catalog.EnrichmentStartedAt,
		EnrichmentCompletedAt: catalog.EnrichmentCompletedAt,
		ProgressPercentage:    progressPercentage(catalog.EnrichedItems, catalog.TotalItems),
	})
}

// EnrichCatalogRequest selects the provider and batch size for a run
type EnrichCatalogRequest struct {
	Provider  string `json:"provider,omitempty"`
	BatchSize int    `json:"batchSize,omitempty"`
}

// EnrichCatalog starts an enrichment run for a catalog
// @Summary Enrich catalog
// @Description Runs the enrichment pipeline over the catalog's line items
// @Tags catalogs
// @Accept json
// @Produce json
// @Param id path string true "Catalog ID"
// @Param request body EnrichCatalogRequest false "Enrichment options"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalogs/{id}/enrich [post]
func (h *CatalogsHandler) EnrichCatalog(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	// Options come from the JSON body, with query params as fallback
	var req EnrichCatalogRequest
	_ = c.ShouldBindJSON(&req)
	if req.Provider == "" {
		req.Provider = c.Query("provider")
	}
	if req.BatchSize <= 0 {
		req.BatchSize, _ = strconv.Atoi(c.Query("batchSize"))
	}
	if req.Provider == "" {
		req.Provider = h.cfg.DefaultProvider
	}
	if req.BatchSize <= 0 {
		req.BatchSize = h.cfg.DefaultBatchSize
	}

	result, err := h.engine.EnrichCatalog(c.Request.Context(), id, uid, req.Provider, req.BatchSize)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Catalog not found",
				},
			})
		case errors.Is(err, enrichment.ErrUnknownProvider):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "UNKNOWN_PROVIDER",
					Message: err.Error(),
					Field:   "provider",
				},
			})
		case errors.Is(err, enrichment.ErrCatalogNotEnrichable):
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_ENRICHABLE",
					Message: err.Error(),
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "ENRICHMENT_FAILED",
					Message: "Catalog enrichment failed",
				},
			})
		}
		return
	}

	h.eventsPublisher.PublishCatalogEnriched(
		uid.String(), result.CatalogID, result.Status,
		result.EnrichedItems, result.FailedItems, result.Provider,
	)

	message := "Catalog enrichment completed"
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    result,
		Message: &message,
	})
}

// ListProviders returns the registered enrichment providers
// @Summary List enrichment providers
// @Tags enrichment
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Security BearerAuth
// @Router /enrichment/providers [get]
func (h *CatalogsHandler) ListProviders(c *gin.Context) {
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data: gin.H{
			"providers": h.engine.Providers(),
			"default":   h.cfg.DefaultProvider,
		},
	})
}

func progressPercentage(enriched, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(enriched) / float64(total) * 100
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/config"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

type ProductsHandler struct {
	products repository.ProductsRepositoryInterface
	cfg      *config.Config
}

func NewProductsHandler(products repository.ProductsRepositoryInterface, cfg *config.Config) *ProductsHandler {
	return &ProductsHandler{products: products, cfg: cfg}
}

// ListCatalogProducts lists the product records of a catalog
// @Summary List catalog products
// @Tags products
// @Produce json
// @Param id path string true "Catalog ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param status query string false "Filter by enrichment status"
// @Success 200 {object} models.ProductListResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalogs/{id}/products [get]
func (h *ProductsHandler) ListCatalogProducts(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	catalogID, ok := pathID(c, "id")
	if !ok {
		return
	}

	page, limit := paginationParams(c, h.cfg)

	var status *models.EnrichmentStatus
	if raw := c.Query("status"); raw != "" {
		s := models.EnrichmentStatus(raw)
		status = &s
	}

	products, total, err := h.products.ListByCatalog(c.Request.Context(), catalogID, uid, status, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "LIST_FAILED",
				Message: "Failed to list products",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       products,
		Pagination: paginationInfo(page, limit, total),
	})
}

// GetProduct returns one product record
// @Summary Get product by ID
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} models.ProductResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /products/{id} [get]
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Product not found", "FETCH_FAILED", "Failed to fetch product")
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"catalog-service/internal/config"
	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/services"
)

type OffersHandler struct {
	offers          repository.OffersRepositoryInterface
	offerService    *services.OfferService
	sheetService    *services.OfferSheetService
	eventsPublisher *events.Publisher
	cfg             *config.Config
}

func NewOffersHandler(
	offers repository.OffersRepositoryInterface,
	offerService *services.OfferService,
	sheetService *services.OfferSheetService,
	eventsPublisher *events.Publisher,
	cfg *config.Config,
) *OffersHandler {
	return &OffersHandler{
		offers:          offers,
		offerService:    offerService,
		sheetService:    sheetService,
		eventsPublisher: eventsPublisher,
		cfg:             cfg,
	}
}

// GenerateOffers generates discount offers from a catalog's enriched products
// @Summary Generate offers
// @Description Generates rule-based discount offers from enriched catalog products
// @Tags offers
// @Accept json
// @Produce json
// @Param request body models.GenerateOffersRequest true "Generation options"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /offers/generate [post]
func (h *OffersHandler) GenerateOffers(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	// Options come from the JSON body, with query params as fallback
	var req models.GenerateOffersRequest
	_ = c.ShouldBindJSON(&req)
	if req.CatalogID == "" {
		req.CatalogID = c.Query("catalogId")
	}
	if req.OfferType == nil {
		if raw := c.Query("offerType"); raw != "" {
			req.OfferType = &raw
		}
	}
	if req.MaxOffers == nil {
		if raw := c.Query("maxOffers"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				req.MaxOffers = &n
			}
		}
	}
	if req.CatalogID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: "catalogId is required",
				Field:   "catalogId",
			},
		})
		return
	}

	catalogID, err := uuid.Parse(req.CatalogID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid catalogId format",
				Field:   "catalogId",
			},
		})
		return
	}

	offerType := ""
	if req.OfferType != nil {
		offerType = *req.OfferType
	}
	maxOffers := 0
	if req.MaxOffers != nil {
		maxOffers = *req.MaxOffers
	}

	offers, err := h.offerService.GenerateOffers(c.Request.Context(), catalogID, uid, offerType, maxOffers)
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
		case errors.Is(err, services.ErrNoEnrichedProducts):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NO_ENRICHED_PRODUCTS",
					Message: err.Error(),
				},
			})
		case errors.Is(err, services.ErrUnknownOfferType):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "UNKNOWN_OFFER_TYPE",
					Message: err.Error(),
					Field:   "offerType",
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "GENERATION_FAILED",
					Message: "Failed to generate offers",
				},
			})
		}
		return
	}

	for i := range offers {
		h.eventsPublisher.PublishOfferGenerated(&offers[i])
	}

	message := fmt.Sprintf("Generated %d offers", len(offers))
	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    offers,
		Message: &message,
	})
}

// ListOffers lists the user's offers
// @Summary List offers
// @Tags offers
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param catalogId query string false "Filter by catalog"
// @Param offerType query string false "Filter by offer type"
// @Success 200 {object} models.OfferListResponse
// @Security BearerAuth
// @Router /offers [get]
func (h *OffersHandler) ListOffers(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	page, limit := paginationParams(c, h.cfg)

	var catalogID *uuid.UUID
	if raw := c.Query("catalogId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "INVALID_ID",
					Message: "Invalid catalogId format",
					Field:   "catalogId",
				},
			})
			return
		}
		catalogID = &id
	}

	var offerType *models.OfferType
	if raw := c.Query("offerType"); raw != "" {
		t := models.OfferType(raw)
		offerType = &t
	}

	offers, total, err := h.offers.List(c.Request.Context(), uid, catalogID, offerType, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "LIST_FAILED",
				Message: "Failed to list offers",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.OfferListResponse{
		Success:    true,
		Data:       offers,
		Pagination: paginationInfo(page, limit, total),
	})
}

// GetOffer returns one offer
// @Summary Get offer by ID
// @Tags offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} models.OfferResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /offers/{id} [get]
func (h *OffersHandler) GetOffer(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	offer, err := h.offers.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Offer not found", "FETCH_FAILED", "Failed to fetch offer")
		return
	}

	c.JSON(http.StatusOK, models.OfferResponse{Success: true, Data: offer})
}

// UpdateOffer updates offer metadata
// @Summary Update offer
// @Tags offers
// @Accept json
// @Produce json
// @Param id path string true "Offer ID"
// @Param offer body models.UpdateOfferRequest true "Fields to update"
// @Success 200 {object} models.OfferResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /offers/{id} [put]
func (h *OffersHandler) UpdateOffer(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateOfferRequest
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
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.ValidUntil != nil {
		updates["valid_until"] = *req.ValidUntil
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

	if err := h.offers.Update(c.Request.Context(), id, uid, updates); err != nil {
		notFoundOrInternal(c, err, "Offer not found", "UPDATE_FAILED", "Failed to update offer")
		return
	}

	offer, err := h.offers.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Offer not found", "FETCH_FAILED", "Failed to fetch offer")
		return
	}

	c.JSON(http.StatusOK, models.OfferResponse{Success: true, Data: offer})
}

// DeleteOffer deletes an offer
// @Summary Delete offer
// @Tags offers
// @Produce json
// @Param id path string true "Offer ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /offers/{id} [delete]
func (h *OffersHandler) DeleteOffer(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.offers.Delete(c.Request.Context(), id, uid); err != nil {
		notFoundOrInternal(c, err, "Offer not found", "DELETE_FAILED", "Failed to delete offer")
		return
	}

	message := "Offer deleted successfully"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// DownloadOfferSheet renders the offer as a printable PDF
// @Summary Download offer sheet
// @Description Renders a PDF sheet for the offer
// @Tags offers
// @Produce application/pdf
// @Param id path string true "Offer ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /offers/{id}/sheet [get]
func (h *OffersHandler) DownloadOfferSheet(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	offer, err := h.offers.GetByID(c.Request.Context(), id, uid)
	if err != nil {
		notFoundOrInternal(c, err, "Offer not found", "FETCH_FAILED", "Failed to fetch offer")
		return
	}

	data, filename, err := h.sheetService.GenerateSheet(offer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "SHEET_FAILED",
				Message: "Failed to generate offer sheet",
			},
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", data)
}

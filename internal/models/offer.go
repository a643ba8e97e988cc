package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// OfferType represents the kind of discount offer
type OfferType string

const (
	OfferTypeStandard OfferType = "standard"
	OfferTypeBundle   OfferType = "bundle"
	OfferTypeFlash    OfferType = "flash"
)

// OfferItem is one product entry inside an offer's items payload
type OfferItem struct {
	ProductID          string  `json:"product_id"`
	ProductName        string  `json:"product_name"`
	OriginalPrice      float64 `json:"original_price"`
	OfferPrice         float64 `json:"offer_price"`
	DiscountPercentage float64 `json:"discount_percentage"`
	QuantityRequired   int     `json:"quantity_required"`
	MaxQuantity        int     `json:"max_quantity"`
}

// OfferRule is one generation rule recorded inside an offer's rules payload
type OfferRule struct {
	RuleID         string                 `json:"rule_id"`
	RuleName       string                 `json:"rule_name"`
	RuleType       string                 `json:"rule_type"`
	RuleParameters map[string]interface{} `json:"rule_parameters"`
	Priority       int                    `json:"priority"`
	IsActive       bool                   `json:"is_active"`
}

// Offer represents a generated discount offer over one or more catalog products.
// Items and Rules are stored as JSONB since their shape varies by offer type.
type Offer struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CatalogID   uuid.UUID `json:"catalogId" gorm:"type:uuid;not null;index:idx_offers_catalog"`
	UserID      uuid.UUID `json:"userId" gorm:"type:uuid;not null;index:idx_offers_user"`
	Name        string    `json:"name" gorm:"not null"`
	Description *string   `json:"description,omitempty"`
	OfferType   OfferType `json:"offerType" gorm:"not null;index:idx_offers_type"`
	ValidFrom   time.Time `json:"validFrom" gorm:"not null"`
	ValidUntil  time.Time `json:"validUntil" gorm:"not null"`
	IsActive    bool      `json:"isActive" gorm:"not null;default:true"`

	Items datatypes.JSON `json:"items" gorm:"type:jsonb"`
	Rules datatypes.JSON `json:"rules,omitempty" gorm:"type:jsonb"`

	TotalDiscount    float64 `json:"totalDiscount"`
	TotalSavings     float64 `json:"totalSavings"`
	OfferScore       float64 `json:"offerScore"`
	GenerationMethod string  `json:"generationMethod" gorm:"default:'rule_based'"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the table name for the Offer model
func (Offer) TableName() string {
	return "offers"
}

// GenerateOffersRequest asks for offers to be generated from a catalog
type GenerateOffersRequest struct {
	CatalogID string  `json:"catalogId" binding:"required"`
	OfferType *string `json:"offerType,omitempty"`
	MaxOffers *int    `json:"maxOffers,omitempty"`
}

// UpdateOfferRequest represents a request to update offer metadata
type UpdateOfferRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
	ValidUntil  *time.Time `json:"validUntil,omitempty"`
}

// OfferResponse wraps a single offer
type OfferResponse struct {
	Success bool    `json:"success"`
	Data    *Offer  `json:"data"`
	Message *string `json:"message,omitempty"`
}

// OfferListResponse wraps an offer page
type OfferListResponse struct {
	Success    bool            `json:"success"`
	Data       []Offer         `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

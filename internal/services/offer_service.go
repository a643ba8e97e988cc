package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

var (
	// ErrNoEnrichedProducts is returned when a catalog has no completed
	// enrichment records to build offers from
	ErrNoEnrichedProducts = errors.New("no enriched products found for this catalog")
	// ErrUnknownOfferType is returned for an unrecognized offer type
	ErrUnknownOfferType = errors.New("unknown offer type")
)

// DefaultMaxOffers bounds how many offers one generation request produces per type
const DefaultMaxOffers = 5

// OfferService generates rule-based discount offers from a catalog's enriched
// products. Generation is randomized within fixed per-type bounds; the rng is
// injected so tests can pin the sequence.
type OfferService struct {
	offers   repository.OffersRepositoryInterface
	products repository.ProductsRepositoryInterface
	catalogs repository.CatalogsRepositoryInterface
	rng      *rand.Rand
}

func NewOfferService(
	offers repository.OffersRepositoryInterface,
	products repository.ProductsRepositoryInterface,
	catalogs repository.CatalogsRepositoryInterface,
) *OfferService {
	return &OfferService{
		offers:   offers,
		products: products,
		catalogs: catalogs,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateOffers builds and persists offers of the requested type from the
// catalog's enriched products. offerType "all" generates every type.
func (s *OfferService) GenerateOffers(ctx context.Context, catalogID, userID uuid.UUID, offerType string, maxOffers int) ([]models.Offer, error) {
	if offerType == "" {
		offerType = string(models.OfferTypeStandard)
	}
	if maxOffers <= 0 {
		maxOffers = DefaultMaxOffers
	}

	catalog, err := s.catalogs.GetByID(ctx, catalogID, userID)
	if err != nil {
		return nil, err
	}

	products, err := s.products.ListEnriched(ctx, catalogID, userID)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNoEnrichedProducts
	}

	var offers []models.Offer
	switch offerType {
	case string(models.OfferTypeStandard):
		offers = s.standardOffers(catalog, products, maxOffers)
	case string(models.OfferTypeBundle):
		offers = s.bundleOffers(catalog, products, maxOffers)
	case string(models.OfferTypeFlash):
		offers = s.flashOffers(catalog, products, maxOffers)
	case "all":
		offers = append(offers, s.standardOffers(catalog, products, maxOffers)...)
		offers = append(offers, s.bundleOffers(catalog, products, maxOffers)...)
		offers = append(offers, s.flashOffers(catalog, products, maxOffers)...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOfferType, offerType)
	}

	created := make([]models.Offer, 0, len(offers))
	for i := range offers {
		if err := s.offers.Create(ctx, &offers[i]); err != nil {
			return nil, fmt.Errorf("failed to save offer: %w", err)
		}
		created = append(created, offers[i])
	}

	logrus.WithFields(logrus.Fields{
		"catalog_id": catalogID.String(),
		"offer_type": offerType,
		"generated":  len(created),
	}).Info("Generated offers for catalog")

	return created, nil
}

// standardOffers makes single-product percentage discount offers
func (s *OfferService) standardOffers(catalog *models.Catalog, products []models.Product, maxOffers int) []models.Offer {
	now := time.Now().UTC()
	selected := s.sample(products, maxOffers)

	var offers []models.Offer
	for i, product := range selected {
		if product.Price == nil || *product.Price <= 0 {
			continue
		}
		price := *product.Price

		discount := s.uniform(5, 25)
		offerPrice := round2(price * (1 - discount/100))

		item := models.OfferItem{
			ProductID:          product.ID.String(),
			ProductName:        product.Name,
			OriginalPrice:      price,
			OfferPrice:         offerPrice,
			DiscountPercentage: round2(discount),
			QuantityRequired:   1,
			MaxQuantity:        s.intBetween(5, 20),
		}
		rule := models.OfferRule{
			RuleID:   fmt.Sprintf("rule_%d", i+1),
			RuleName: "Standard Discount Rule",
			RuleType: "pricing",
			RuleParameters: map[string]interface{}{
				"discount_type": "percentage",
				"min_discount":  5,
			},
			Priority: 1,
			IsActive: true,
		}

		description := fmt.Sprintf("Limited time discount on %s", product.Name)
		offers = append(offers, models.Offer{
			CatalogID:        catalog.ID,
			UserID:           catalog.UserID,
			Name:             fmt.Sprintf("Special Offer: %s", product.Name),
			Description:      &description,
			OfferType:        models.OfferTypeStandard,
			ValidFrom:        now,
			ValidUntil:       now.AddDate(0, 0, s.intBetween(7, 30)),
			IsActive:         true,
			Items:            marshalJSON([]models.OfferItem{item}),
			Rules:            marshalJSON([]models.OfferRule{rule}),
			TotalDiscount:    round2(discount),
			TotalSavings:     round2(price - offerPrice),
			OfferScore:       round1(s.uniform(6.0, 9.5)),
			GenerationMethod: "rule_based",
		})
	}
	return offers
}

// bundleOffers makes multi-product offers priced as a discounted bundle
func (s *OfferService) bundleOffers(catalog *models.Catalog, products []models.Product, maxOffers int) []models.Offer {
	if len(products) < 2 {
		return nil
	}

	now := time.Now().UTC()
	count := maxOffers
	if half := len(products) / 2; half < count {
		count = half
	}

	var offers []models.Offer
	for i := 0; i < count; i++ {
		maxSize := 3
		if len(products) < maxSize {
			maxSize = len(products)
		}
		bundleSize := s.intBetween(2, maxSize)
		bundle := s.sample(products, bundleSize)

		var items []models.OfferItem
		var totalOriginal, totalOffer float64
		for _, product := range bundle {
			if product.Price == nil || *product.Price <= 0 {
				continue
			}
			price := *product.Price
			discount := s.uniform(15, 35)
			offerPrice := round2(price * (1 - discount/100))

			items = append(items, models.OfferItem{
				ProductID:          product.ID.String(),
				ProductName:        product.Name,
				OriginalPrice:      price,
				OfferPrice:         offerPrice,
				DiscountPercentage: round2(discount),
				QuantityRequired:   1,
				MaxQuantity:        s.intBetween(3, 10),
			})
			totalOriginal += price
			totalOffer += offerPrice
		}
		if len(items) < 2 {
			continue
		}

		bundleDiscountPct := round2((totalOriginal - totalOffer) / totalOriginal * 100)
		rule := models.OfferRule{
			RuleID:   fmt.Sprintf("bundle_rule_%d", i+1),
			RuleName: "Bundle Discount Rule",
			RuleType: "bundle",
			RuleParameters: map[string]interface{}{
				"min_products":    len(items),
				"bundle_discount": bundleDiscountPct,
			},
			Priority: 2,
			IsActive: true,
		}

		description := fmt.Sprintf("Save on %d products when purchased together", len(items))
		offers = append(offers, models.Offer{
			CatalogID:        catalog.ID,
			UserID:           catalog.UserID,
			Name:             fmt.Sprintf("Bundle Deal #%d", i+1),
			Description:      &description,
			OfferType:        models.OfferTypeBundle,
			ValidFrom:        now,
			ValidUntil:       now.AddDate(0, 0, s.intBetween(14, 45)),
			IsActive:         true,
			Items:            marshalJSON(items),
			Rules:            marshalJSON([]models.OfferRule{rule}),
			TotalDiscount:    bundleDiscountPct,
			TotalSavings:     round2(totalOriginal - totalOffer),
			OfferScore:       round1(s.uniform(7.0, 9.8)),
			GenerationMethod: "rule_based",
		})
	}
	return offers
}

// flashOffers makes short-lived high-discount offers
func (s *OfferService) flashOffers(catalog *models.Catalog, products []models.Product, maxOffers int) []models.Offer {
	now := time.Now().UTC()
	selected := s.sample(products, maxOffers)

	var offers []models.Offer
	for i, product := range selected {
		if product.Price == nil || *product.Price <= 0 {
			continue
		}
		price := *product.Price

		discount := s.uniform(20, 40)
		offerPrice := round2(price * (1 - discount/100))
		maxQuantity := s.intBetween(3, 8)

		item := models.OfferItem{
			ProductID:          product.ID.String(),
			ProductName:        product.Name,
			OriginalPrice:      price,
			OfferPrice:         offerPrice,
			DiscountPercentage: round2(discount),
			QuantityRequired:   1,
			MaxQuantity:        maxQuantity,
		}
		rule := models.OfferRule{
			RuleID:   fmt.Sprintf("flash_rule_%d", i+1),
			RuleName: "Flash Sale Rule",
			RuleType: "timing",
			RuleParameters: map[string]interface{}{
				"flash_duration_hours": 24,
				"max_quantity":         maxQuantity,
			},
			Priority: 3,
			IsActive: true,
		}

		description := fmt.Sprintf("Limited time flash sale! %.0f%% off!", discount)
		offers = append(offers, models.Offer{
			CatalogID:        catalog.ID,
			UserID:           catalog.UserID,
			Name:             fmt.Sprintf("Flash Sale: %s", product.Name),
			Description:      &description,
			OfferType:        models.OfferTypeFlash,
			ValidFrom:        now,
			ValidUntil:       now.Add(time.Duration(s.intBetween(6, 48)) * time.Hour),
			IsActive:         true,
			Items:            marshalJSON([]models.OfferItem{item}),
			Rules:            marshalJSON([]models.OfferRule{rule}),
			TotalDiscount:    round2(discount),
			TotalSavings:     round2(price - offerPrice),
			OfferScore:       round1(s.uniform(8.0, 9.9)),
			GenerationMethod: "rule_based",
		})
	}
	return offers
}

// sample returns up to n products drawn without replacement
func (s *OfferService) sample(products []models.Product, n int) []models.Product {
	if n > len(products) {
		n = len(products)
	}
	shuffled := make([]models.Product, len(products))
	copy(shuffled, products)
	s.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// uniform draws from [min, max)
func (s *OfferService) uniform(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

// intBetween draws from [min, max] inclusive
func (s *OfferService) intBetween(min, max int) int {
	return min + s.rng.Intn(max-min+1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func marshalJSON(v interface{}) datatypes.JSON {
	data, _ := json.Marshal(v)
	return datatypes.JSON(data)
}

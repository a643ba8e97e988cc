package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// ============================================================================
// Mocks
// ============================================================================

type MockOffersRepository struct {
	mock.Mock
}

var _ repository.OffersRepositoryInterface = (*MockOffersRepository)(nil)

func (m *MockOffersRepository) Create(ctx context.Context, offer *models.Offer) error {
	args := m.Called(ctx, offer)
	return args.Error(0)
}

func (m *MockOffersRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Offer, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Offer), args.Error(1)
}

func (m *MockOffersRepository) List(ctx context.Context, userID uuid.UUID, catalogID *uuid.UUID, offerType *models.OfferType, page, limit int) ([]models.Offer, int64, error) {
	args := m.Called(ctx, userID, catalogID, offerType, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Offer), args.Get(1).(int64), args.Error(2)
}

func (m *MockOffersRepository) Update(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error {
	args := m.Called(ctx, id, userID, updates)
	return args.Error(0)
}

func (m *MockOffersRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockOffersRepository) DeleteByCatalog(ctx context.Context, catalogID uuid.UUID) error {
	args := m.Called(ctx, catalogID)
	return args.Error(0)
}

type MockProductsRepository struct {
	mock.Mock
}

var _ repository.ProductsRepositoryInterface = (*MockProductsRepository)(nil)

func (m *MockProductsRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductsRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductsRepository) ListByCatalog(ctx context.Context, catalogID, userID uuid.UUID, status *models.EnrichmentStatus, page, limit int) ([]models.Product, int64, error) {
	args := m.Called(ctx, catalogID, userID, status, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductsRepository) ListEnriched(ctx context.Context, catalogID, userID uuid.UUID) ([]models.Product, error) {
	args := m.Called(ctx, catalogID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductsRepository) CountByStatus(ctx context.Context, catalogID uuid.UUID) (map[models.EnrichmentStatus]int64, error) {
	args := m.Called(ctx, catalogID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.EnrichmentStatus]int64), args.Error(1)
}

func (m *MockProductsRepository) DeleteByCatalog(ctx context.Context, catalogID uuid.UUID) error {
	args := m.Called(ctx, catalogID)
	return args.Error(0)
}

type MockCatalogsRepository struct {
	mock.Mock
}

var _ repository.CatalogsRepositoryInterface = (*MockCatalogsRepository)(nil)

func (m *MockCatalogsRepository) Create(ctx context.Context, catalog *models.Catalog) error {
	args := m.Called(ctx, catalog)
	return args.Error(0)
}

func (m *MockCatalogsRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Catalog, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Catalog), args.Error(1)
}

func (m *MockCatalogsRepository) List(ctx context.Context, userID uuid.UUID, status *models.CatalogStatus, page, limit int) ([]models.Catalog, int64, error) {
	args := m.Called(ctx, userID, status, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Catalog), args.Get(1).(int64), args.Error(2)
}

func (m *MockCatalogsRepository) Update(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error {
	args := m.Called(ctx, id, userID, updates)
	return args.Error(0)
}

func (m *MockCatalogsRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockCatalogsRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.CatalogStatus, to models.CatalogStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalogsRepository) UpdateEnrichmentProgress(ctx context.Context, id uuid.UUID, enrichedItems, totalItems int) error {
	args := m.Called(ctx, id, enrichedItems, totalItems)
	return args.Error(0)
}

func (m *MockCatalogsRepository) FinishEnrichment(ctx context.Context, id uuid.UUID, status models.CatalogStatus, enrichedItems int) error {
	args := m.Called(ctx, id, status, enrichedItems)
	return args.Error(0)
}

func (m *MockCatalogsRepository) MarkEnrichmentError(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ============================================================================
// Helpers
// ============================================================================

func floatPtr(v float64) *float64 { return &v }

func seededService(offers *MockOffersRepository, products *MockProductsRepository, catalogs *MockCatalogsRepository) *OfferService {
	service := NewOfferService(offers, products, catalogs)
	service.rng = rand.New(rand.NewSource(42))
	return service
}

func enrichedProducts(catalogID, userID uuid.UUID, prices ...float64) []models.Product {
	products := make([]models.Product, 0, len(prices))
	for i, price := range prices {
		p := price
		products = append(products, models.Product{
			ID:               uuid.New(),
			CatalogID:        catalogID,
			UserID:           userID,
			Name:             "Product " + string(rune('A'+i)),
			Price:            &p,
			EnrichmentStatus: models.EnrichmentStatusCompleted,
		})
	}
	return products
}

func testCatalog(catalogID, userID uuid.UUID) *models.Catalog {
	return &models.Catalog{
		ID:     catalogID,
		UserID: userID,
		Name:   "Test Catalog",
		Status: models.CatalogStatusCompleted,
	}
}

// ============================================================================
// Generation preconditions
// ============================================================================

func TestGenerateOffers_NoEnrichedProducts(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).Return([]models.Product{}, nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "standard", 5)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoEnrichedProducts)
	offers.AssertNotCalled(t, "Create")
}

func TestGenerateOffers_CatalogNotFound(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(nil, repository.ErrNotFound)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "standard", 5)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	products.AssertNotCalled(t, "ListEnriched")
}

func TestGenerateOffers_UnknownType(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(enrichedProducts(catalogID, userID, 10.0), nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "clearance", 5)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrUnknownOfferType)
}

// ============================================================================
// Standard offers
// ============================================================================

func TestGenerateOffers_StandardDiscountBounds(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(enrichedProducts(catalogID, userID, 100.0, 50.0, 25.0), nil)
	offers.On("Create", mock.Anything, mock.AnythingOfType("*models.Offer")).Return(nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "standard", 3)

	assert.NoError(t, err)
	assert.Len(t, result, 3)
	for _, offer := range result {
		assert.Equal(t, models.OfferTypeStandard, offer.OfferType)
		assert.GreaterOrEqual(t, offer.TotalDiscount, 5.0)
		assert.LessOrEqual(t, offer.TotalDiscount, 25.0)
		assert.True(t, offer.IsActive)
		assert.Equal(t, "rule_based", offer.GenerationMethod)
		assert.Contains(t, offer.Name, "Special Offer:")

		var items []models.OfferItem
		assert.NoError(t, json.Unmarshal(offer.Items, &items))
		assert.Len(t, items, 1)
		assert.Equal(t, 1, items[0].QuantityRequired)
		assert.Less(t, items[0].OfferPrice, items[0].OriginalPrice)

		var rules []models.OfferRule
		assert.NoError(t, json.Unmarshal(offer.Rules, &rules))
		assert.Len(t, rules, 1)
		assert.Equal(t, "pricing", rules[0].RuleType)
		assert.Equal(t, 1, rules[0].Priority)
	}
	offers.AssertNumberOfCalls(t, "Create", 3)
}

func TestGenerateOffers_SkipsUnpricedProducts(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	priced := enrichedProducts(catalogID, userID, 100.0)
	unpriced := models.Product{
		ID:               uuid.New(),
		CatalogID:        catalogID,
		UserID:           userID,
		Name:             "Freebie",
		Price:            floatPtr(0),
		EnrichmentStatus: models.EnrichmentStatusCompleted,
	}
	noPrice := models.Product{
		ID:               uuid.New(),
		CatalogID:        catalogID,
		UserID:           userID,
		Name:             "Mystery Item",
		EnrichmentStatus: models.EnrichmentStatusCompleted,
	}

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(append(priced, unpriced, noPrice), nil)
	offers.On("Create", mock.Anything, mock.AnythingOfType("*models.Offer")).Return(nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "standard", 5)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestGenerateOffers_DefaultsTypeAndMax(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(enrichedProducts(catalogID, userID, 10, 20, 30, 40, 50, 60, 70), nil)
	offers.On("Create", mock.Anything, mock.AnythingOfType("*models.Offer")).Return(nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "", 0)

	assert.NoError(t, err)
	assert.Len(t, result, DefaultMaxOffers)
	assert.Equal(t, models.OfferTypeStandard, result[0].OfferType)
}

// ============================================================================
// Bundle offers
// ============================================================================

func TestGenerateOffers_BundleRequiresTwoProducts(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(enrichedProducts(catalogID, userID, 100.0), nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "bundle", 5)

	assert.NoError(t, err)
	assert.Empty(t, result)
	offers.AssertNotCalled(t, "Create")
}

func TestGenerateOffers_BundleContents(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(enrichedProducts(catalogID, userID, 100.0, 80.0, 60.0, 40.0), nil)
	offers.On("Create", mock.Anything, mock.AnythingOfType("*models.Offer")).Return(nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "bundle", 5)

	assert.NoError(t, err)
	// four products support at most two bundles
	assert.Len(t, result, 2)
	for _, offer := range result {
		assert.Equal(t, models.OfferTypeBundle, offer.OfferType)
		assert.Contains(t, offer.Name, "Bundle Deal #")
		assert.Greater(t, offer.TotalSavings, 0.0)

		var items []models.OfferItem
		assert.NoError(t, json.Unmarshal(offer.Items, &items))
		assert.GreaterOrEqual(t, len(items), 2)
		assert.LessOrEqual(t, len(items), 3)
		for _, item := range items {
			assert.GreaterOrEqual(t, item.DiscountPercentage, 15.0)
			assert.LessOrEqual(t, item.DiscountPercentage, 35.0)
		}

		var rules []models.OfferRule
		assert.NoError(t, json.Unmarshal(offer.Rules, &rules))
		assert.Equal(t, "bundle", rules[0].RuleType)
		assert.Equal(t, 2, rules[0].Priority)
	}
}

// ============================================================================
// Flash offers
// ============================================================================

func TestGenerateOffers_FlashValidityWindow(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(enrichedProducts(catalogID, userID, 100.0, 50.0), nil)
	offers.On("Create", mock.Anything, mock.AnythingOfType("*models.Offer")).Return(nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "flash", 2)

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	for _, offer := range result {
		assert.Equal(t, models.OfferTypeFlash, offer.OfferType)
		assert.GreaterOrEqual(t, offer.TotalDiscount, 20.0)
		assert.LessOrEqual(t, offer.TotalDiscount, 40.0)

		window := offer.ValidUntil.Sub(offer.ValidFrom)
		assert.GreaterOrEqual(t, window, 6*time.Hour)
		assert.LessOrEqual(t, window, 48*time.Hour)

		var rules []models.OfferRule
		assert.NoError(t, json.Unmarshal(offer.Rules, &rules))
		assert.Equal(t, "timing", rules[0].RuleType)
		assert.Equal(t, 3, rules[0].Priority)
	}
}

// ============================================================================
// All types
// ============================================================================

func TestGenerateOffers_AllTypes(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(enrichedProducts(catalogID, userID, 100.0, 80.0, 60.0, 40.0), nil)
	offers.On("Create", mock.Anything, mock.AnythingOfType("*models.Offer")).Return(nil)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "all", 2)

	assert.NoError(t, err)

	types := map[models.OfferType]int{}
	for _, offer := range result {
		types[offer.OfferType]++
	}
	assert.Equal(t, 2, types[models.OfferTypeStandard])
	assert.Equal(t, 2, types[models.OfferTypeBundle])
	assert.Equal(t, 2, types[models.OfferTypeFlash])
}

func TestGenerateOffers_PersistenceFailure(t *testing.T) {
	offers := new(MockOffersRepository)
	products := new(MockProductsRepository)
	catalogs := new(MockCatalogsRepository)
	service := seededService(offers, products, catalogs)

	catalogID := uuid.New()
	userID := uuid.New()

	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(testCatalog(catalogID, userID), nil)
	products.On("ListEnriched", mock.Anything, catalogID, userID).
		Return(enrichedProducts(catalogID, userID, 100.0), nil)
	offers.On("Create", mock.Anything, mock.AnythingOfType("*models.Offer")).
		Return(assert.AnError)

	result, err := service.GenerateOffers(context.Background(), catalogID, userID, "standard", 1)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, assert.AnError)
}

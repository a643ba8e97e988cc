package enrichment

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
	"catalog-service/internal/storage"
)

// ============================================================================
// Mocks
// ============================================================================

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

type MockFilesClient struct {
	mock.Mock
}

var _ storage.FilesClient = (*MockFilesClient)(nil)

func (m *MockFilesClient) Upload(ctx context.Context, key, fileName string, data []byte) error {
	args := m.Called(ctx, key, fileName, data)
	return args.Error(0)
}

func (m *MockFilesClient) Download(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockFilesClient) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// stubProvider returns a fixed outcome, optionally failing every n-th item
type stubProvider struct {
	name    string
	status  models.EnrichmentStatus
	failSKU string
}

func (p *stubProvider) Name() string {
	return p.name
}

func (p *stubProvider) EnrichItem(ctx context.Context, product CanonicalProduct) Outcome {
	status := p.status
	if p.failSKU != "" && product.SKU != nil && *product.SKU == p.failSKU {
		return Outcome{
			Source:     p.name + "_api",
			Status:     models.EnrichmentStatusFailed,
			Errors:     []string{"stubbed failure"},
			EnrichedAt: time.Now().UTC(),
		}
	}
	return Outcome{
		Source:     p.name + "_api",
		Status:     status,
		Data:       map[string]interface{}{"stub": true},
		EnrichedAt: time.Now().UTC(),
	}
}

// ============================================================================
// Helpers
// ============================================================================

func newTestCatalog(userID uuid.UUID, status models.CatalogStatus) *models.Catalog {
	return &models.Catalog{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     "Spring Catalog",
		FilePath: "users/u/catalogs/c/catalog.csv",
		FileName: "catalog.csv",
		Status:   status,
	}
}

func csvWithItems(n int) []byte {
	var b strings.Builder
	b.WriteString("name,price,sku\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Product %d,%d.99,SKU-%d\n", i, i+1, i)
	}
	return []byte(b.String())
}

func newTestEngine(catalogs *MockCatalogsRepository, products *MockProductsRepository, files *MockFilesClient, providers ...Provider) *Engine {
	if len(providers) == 0 {
		providers = []Provider{&stubProvider{name: "amazon", status: models.EnrichmentStatusCompleted}}
	}
	return NewEngine(catalogs, products, files, NewMapper(), NewRegistry(providers...))
}

// ============================================================================
// EnrichCatalog
// ============================================================================

func TestEnrichCatalog_UnknownProvider(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	engine := newTestEngine(catalogs, products, files)

	_, err := engine.EnrichCatalog(context.Background(), uuid.New(), uuid.New(), "ebay", 10)

	assert.ErrorIs(t, err, ErrUnknownProvider)
	catalogs.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrichCatalog_CatalogNotFound(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	engine := newTestEngine(catalogs, products, files)

	catalogID := uuid.New()
	userID := uuid.New()
	catalogs.On("GetByID", mock.Anything, catalogID, userID).Return(nil, repository.ErrNotFound)

	_, err := engine.EnrichCatalog(context.Background(), catalogID, userID, "amazon", 10)

	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnrichCatalog_RejectsProcessingCatalog(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	engine := newTestEngine(catalogs, products, files)

	userID := uuid.New()
	catalog := newTestCatalog(userID, models.CatalogStatusProcessing)

	catalogs.On("GetByID", mock.Anything, catalog.ID, userID).Return(catalog, nil)
	catalogs.On("TransitionStatus", mock.Anything, catalog.ID, enrichableStatuses, models.CatalogStatusProcessing).
		Return(false, nil)

	_, err := engine.EnrichCatalog(context.Background(), catalog.ID, userID, "amazon", 10)

	assert.ErrorIs(t, err, ErrCatalogNotEnrichable)
	products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	files.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestEnrichCatalog_BatchBoundaries(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	engine := newTestEngine(catalogs, products, files)

	userID := uuid.New()
	catalog := newTestCatalog(userID, models.CatalogStatusUploaded)

	catalogs.On("GetByID", mock.Anything, catalog.ID, userID).Return(catalog, nil)
	catalogs.On("TransitionStatus", mock.Anything, catalog.ID, enrichableStatuses, models.CatalogStatusProcessing).
		Return(true, nil)
	files.On("Download", mock.Anything, catalog.FilePath).Return(csvWithItems(23), nil)
	products.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	catalogs.On("UpdateEnrichmentProgress", mock.Anything, catalog.ID, mock.AnythingOfType("int"), 23).
		Return(nil).Times(3)
	catalogs.On("FinishEnrichment", mock.Anything, catalog.ID, models.CatalogStatusCompleted, 23).Return(nil)

	result, err := engine.EnrichCatalog(context.Background(), catalog.ID, userID, "amazon", 10)

	assert.NoError(t, err)
	assert.Equal(t, 23, result.TotalItems)
	assert.Equal(t, 23, result.EnrichedItems)
	assert.Equal(t, 0, result.FailedItems)
	assert.Equal(t, models.CatalogStatusCompleted, result.Status)
	assert.False(t, result.UsedFallbackRows)
	products.AssertNumberOfCalls(t, "Create", 23)
	catalogs.AssertExpectations(t)
}

func TestEnrichCatalog_PartialFailure(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	provider := &stubProvider{name: "amazon", status: models.EnrichmentStatusCompleted, failSKU: "SKU-2"}
	engine := newTestEngine(catalogs, products, files, provider)

	userID := uuid.New()
	catalog := newTestCatalog(userID, models.CatalogStatusUploaded)

	catalogs.On("GetByID", mock.Anything, catalog.ID, userID).Return(catalog, nil)
	catalogs.On("TransitionStatus", mock.Anything, catalog.ID, enrichableStatuses, models.CatalogStatusProcessing).
		Return(true, nil)
	files.On("Download", mock.Anything, catalog.FilePath).Return(csvWithItems(5), nil)
	products.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	catalogs.On("UpdateEnrichmentProgress", mock.Anything, catalog.ID, 4, 5).Return(nil)
	catalogs.On("FinishEnrichment", mock.Anything, catalog.ID, models.CatalogStatusPartiallyCompleted, 4).Return(nil)

	result, err := engine.EnrichCatalog(context.Background(), catalog.ID, userID, "amazon", 10)

	assert.NoError(t, err)
	assert.Equal(t, 5, result.TotalItems)
	assert.Equal(t, 4, result.EnrichedItems)
	assert.Equal(t, 1, result.FailedItems)
	assert.Equal(t, result.TotalItems, result.EnrichedItems+result.FailedItems)
	assert.Equal(t, models.CatalogStatusPartiallyCompleted, result.Status)
	// every row still gets a persisted record, failed ones included
	products.AssertNumberOfCalls(t, "Create", 5)
}

func TestEnrichCatalog_FallbackRowsOnDownloadFailure(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	engine := newTestEngine(catalogs, products, files)

	userID := uuid.New()
	catalog := newTestCatalog(userID, models.CatalogStatusUploaded)

	catalogs.On("GetByID", mock.Anything, catalog.ID, userID).Return(catalog, nil)
	catalogs.On("TransitionStatus", mock.Anything, catalog.ID, enrichableStatuses, models.CatalogStatusProcessing).
		Return(true, nil)
	files.On("Download", mock.Anything, catalog.FilePath).Return(nil, fmt.Errorf("object store unavailable"))
	products.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	catalogs.On("UpdateEnrichmentProgress", mock.Anything, catalog.ID, 3, 3).Return(nil)
	catalogs.On("FinishEnrichment", mock.Anything, catalog.ID, models.CatalogStatusCompleted, 3).Return(nil)

	result, err := engine.EnrichCatalog(context.Background(), catalog.ID, userID, "amazon", 10)

	assert.NoError(t, err)
	assert.True(t, result.UsedFallbackRows)
	assert.Equal(t, 3, result.TotalItems)
}

func TestEnrichCatalog_CancelledContext(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	engine := newTestEngine(catalogs, products, files)

	userID := uuid.New()
	catalog := newTestCatalog(userID, models.CatalogStatusUploaded)

	catalogs.On("GetByID", mock.Anything, catalog.ID, userID).Return(catalog, nil)
	catalogs.On("TransitionStatus", mock.Anything, catalog.ID, enrichableStatuses, models.CatalogStatusProcessing).
		Return(true, nil)
	files.On("Download", mock.Anything, catalog.FilePath).Return(csvWithItems(5), nil)
	catalogs.On("MarkEnrichmentError", mock.Anything, catalog.ID).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.EnrichCatalog(ctx, catalog.ID, userID, "amazon", 10)

	assert.ErrorIs(t, err, context.Canceled)
	products.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	catalogs.AssertCalled(t, "MarkEnrichmentError", mock.Anything, catalog.ID)
}

func TestEnrichCatalog_ProgressPersistFailureMarksError(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	engine := newTestEngine(catalogs, products, files)

	userID := uuid.New()
	catalog := newTestCatalog(userID, models.CatalogStatusUploaded)

	catalogs.On("GetByID", mock.Anything, catalog.ID, userID).Return(catalog, nil)
	catalogs.On("TransitionStatus", mock.Anything, catalog.ID, enrichableStatuses, models.CatalogStatusProcessing).
		Return(true, nil)
	files.On("Download", mock.Anything, catalog.FilePath).Return(csvWithItems(2), nil)
	products.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	catalogs.On("UpdateEnrichmentProgress", mock.Anything, catalog.ID, 2, 2).
		Return(fmt.Errorf("database outage"))
	catalogs.On("MarkEnrichmentError", mock.Anything, catalog.ID).Return(nil)

	_, err := engine.EnrichCatalog(context.Background(), catalog.ID, userID, "amazon", 10)

	assert.Error(t, err)
	catalogs.AssertCalled(t, "MarkEnrichmentError", mock.Anything, catalog.ID)
	catalogs.AssertNotCalled(t, "FinishEnrichment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrichCatalog_DefaultBatchSize(t *testing.T) {
	catalogs := new(MockCatalogsRepository)
	products := new(MockProductsRepository)
	files := new(MockFilesClient)
	engine := newTestEngine(catalogs, products, files)

	userID := uuid.New()
	catalog := newTestCatalog(userID, models.CatalogStatusUploaded)

	catalogs.On("GetByID", mock.Anything, catalog.ID, userID).Return(catalog, nil)
	catalogs.On("TransitionStatus", mock.Anything, catalog.ID, enrichableStatuses, models.CatalogStatusProcessing).
		Return(true, nil)
	files.On("Download", mock.Anything, catalog.FilePath).Return(csvWithItems(12), nil)
	products.On("Create", mock.Anything, mock.AnythingOfType("*models.Product")).Return(nil)
	catalogs.On("UpdateEnrichmentProgress", mock.Anything, catalog.ID, mock.AnythingOfType("int"), 12).
		Return(nil).Times(2)
	catalogs.On("FinishEnrichment", mock.Anything, catalog.ID, models.CatalogStatusCompleted, 12).Return(nil)

	result, err := engine.EnrichCatalog(context.Background(), catalog.ID, userID, "amazon", 0)

	assert.NoError(t, err)
	assert.Equal(t, 12, result.EnrichedItems)
	catalogs.AssertExpectations(t)
}

func TestBuildProductRecord_LineItemIdentity(t *testing.T) {
	userID := uuid.New()
	catalog := newTestCatalog(userID, models.CatalogStatusProcessing)
	mapper := NewMapper()
	row := sampleRows()[0]

	canonical := mapper.Map(row, 17)
	outcome := Outcome{
		Source:     keepaSource,
		Status:     models.EnrichmentStatusCompleted,
		Data:       mockKeepaData("Wireless Bluetooth Headphones"),
		EnrichedAt: time.Now().UTC(),
	}

	record := buildProductRecord(catalog, row, 17, canonical, outcome)

	assert.Equal(t, "item_17", record.LineItemID)
	assert.Equal(t, 17, record.RowIndex)
	assert.Equal(t, catalog.ID, record.CatalogID)
	assert.Equal(t, userID, record.UserID)
	assert.Equal(t, "Wireless Bluetooth Headphones", record.Name)
	assert.Equal(t, models.EnrichmentStatusCompleted, record.EnrichmentStatus)
	assert.NotNil(t, record.MainImage)
	assert.Len(t, record.Images, 3)
	assert.NotEmpty(t, record.OriginalData)
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// ProductsRepositoryInterface defines the product persistence operations
type ProductsRepositoryInterface interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Product, error)
	ListByCatalog(ctx context.Context, catalogID, userID uuid.UUID, status *models.EnrichmentStatus, page, limit int) ([]models.Product, int64, error)
	ListEnriched(ctx context.Context, catalogID, userID uuid.UUID) ([]models.Product, error)
	CountByStatus(ctx context.Context, catalogID uuid.UUID) (map[models.EnrichmentStatus]int64, error)
	DeleteByCatalog(ctx context.Context, catalogID uuid.UUID) error
}

type ProductsRepository struct {
	db *gorm.DB
}

func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{db: db}
}

// Create creates a new product record
func (r *ProductsRepository) Create(ctx context.Context, product *models.Product) error {
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(product).Error
}

// GetByID retrieves a product by ID scoped to its owner
func (r *ProductsRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// ListByCatalog retrieves a catalog's products with an optional enrichment
// status filter and pagination
func (r *ProductsRepository) ListByCatalog(ctx context.Context, catalogID, userID uuid.UUID, status *models.EnrichmentStatus, page, limit int) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("catalog_id = ? AND user_id = ?", catalogID, userID)
	if status != nil {
		query = query.Where("enrichment_status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("row_index ASC").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ListEnriched retrieves all successfully enriched products of a catalog
func (r *ProductsRepository) ListEnriched(ctx context.Context, catalogID, userID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("catalog_id = ? AND user_id = ? AND enrichment_status = ?",
			catalogID, userID, models.EnrichmentStatusCompleted).
		Order("row_index ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CountByStatus returns product counts per enrichment status for a catalog
func (r *ProductsRepository) CountByStatus(ctx context.Context, catalogID uuid.UUID) (map[models.EnrichmentStatus]int64, error) {
	var rows []struct {
		EnrichmentStatus models.EnrichmentStatus
		Count            int64
	}

	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Select("enrichment_status, COUNT(*) as count").
		Where("catalog_id = ?", catalogID).
		Group("enrichment_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.EnrichmentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.EnrichmentStatus] = row.Count
	}
	return counts, nil
}

// DeleteByCatalog removes all product records belonging to a catalog
func (r *ProductsRepository) DeleteByCatalog(ctx context.Context, catalogID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("catalog_id = ?", catalogID).Delete(&models.Product{}).Error
}

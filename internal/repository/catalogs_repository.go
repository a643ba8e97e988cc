package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Cache TTL constants
const (
	CatalogCacheTTL = 1 * time.Minute
)

// CatalogsRepositoryInterface defines the catalog persistence operations
type CatalogsRepositoryInterface interface {
	Create(ctx context.Context, catalog *models.Catalog) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Catalog, error)
	List(ctx context.Context, userID uuid.UUID, status *models.CatalogStatus, page, limit int) ([]models.Catalog, int64, error)
	Update(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	TransitionStatus(ctx context.Context, id uuid.UUID, from []models.CatalogStatus, to models.CatalogStatus) (bool, error)
	UpdateEnrichmentProgress(ctx context.Context, id uuid.UUID, enrichedItems, totalItems int) error
	FinishEnrichment(ctx context.Context, id uuid.UUID, status models.CatalogStatus, enrichedItems int) error
	MarkEnrichmentError(ctx context.Context, id uuid.UUID) error
}

type CatalogsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewCatalogsRepository(db *gorm.DB, redis *redis.Client) *CatalogsRepository {
	return &CatalogsRepository{db: db, redis: redis}
}

func catalogCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("catalogs:%s", id.String())
}

func (r *CatalogsRepository) invalidateCatalogCache(ctx context.Context, id uuid.UUID) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Del(ctx, catalogCacheKey(id)).Err()
}

// Create creates a new catalog
func (r *CatalogsRepository) Create(ctx context.Context, catalog *models.Catalog) error {
	catalog.CreatedAt = time.Now()
	catalog.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(catalog).Error
}

// GetByID retrieves a catalog by ID scoped to its owner, with caching
func (r *CatalogsRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Catalog, error) {
	cacheKey := catalogCacheKey(id)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var catalog models.Catalog
			if err := json.Unmarshal([]byte(val), &catalog); err == nil {
				// Ownership is still enforced on cache hits
				if catalog.UserID != userID {
					return nil, ErrNotFound
				}
				return &catalog, nil
			}
		}
	}

	var catalog models.Catalog
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&catalog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(catalog); err == nil {
			r.redis.Set(ctx, cacheKey, data, CatalogCacheTTL)
		}
	}

	return &catalog, nil
}

// List retrieves catalogs for a user with an optional status filter and pagination
func (r *CatalogsRepository) List(ctx context.Context, userID uuid.UUID, status *models.CatalogStatus, page, limit int) ([]models.Catalog, int64, error) {
	var catalogs []models.Catalog
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Catalog{}).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&catalogs).Error; err != nil {
		return nil, 0, err
	}

	return catalogs, total, nil
}

// Update applies metadata updates to a catalog
func (r *CatalogsRepository) Update(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&models.Catalog{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.invalidateCatalogCache(ctx, id)
	return nil
}

// Delete removes a catalog
func (r *CatalogsRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Catalog{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.invalidateCatalogCache(ctx, id)
	return nil
}

// TransitionStatus moves the catalog status conditionally. The update only
// applies while the current status is one of `from`; the rows-affected count
// tells the caller whether it won the transition.
func (r *CatalogsRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.CatalogStatus, to models.CatalogStatus) (bool, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	if to == models.CatalogStatusProcessing {
		updates["enrichment_started_at"] = now
		updates["enrichment_completed_at"] = nil
		updates["enriched_items"] = 0
	}

	result := r.db.WithContext(ctx).Model(&models.Catalog{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		r.invalidateCatalogCache(ctx, id)
	}
	return result.RowsAffected > 0, nil
}

// UpdateEnrichmentProgress persists the running enriched-items count
func (r *CatalogsRepository) UpdateEnrichmentProgress(ctx context.Context, id uuid.UUID, enrichedItems, totalItems int) error {
	err := r.db.WithContext(ctx).Model(&models.Catalog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"enriched_items": enrichedItems,
			"total_items":    totalItems,
			"updated_at":     time.Now(),
		}).Error
	if err == nil {
		r.invalidateCatalogCache(ctx, id)
	}
	return err
}

// FinishEnrichment records the terminal status of an enrichment run
func (r *CatalogsRepository) FinishEnrichment(ctx context.Context, id uuid.UUID, status models.CatalogStatus, enrichedItems int) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&models.Catalog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                  status,
			"enriched_items":          enrichedItems,
			"enrichment_completed_at": now,
			"updated_at":              now,
		}).Error
	if err == nil {
		r.invalidateCatalogCache(ctx, id)
	}
	return err
}

// MarkEnrichmentError flags the catalog after an enrichment run escaped with an error
func (r *CatalogsRepository) MarkEnrichmentError(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Model(&models.Catalog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.CatalogStatusError,
			"updated_at": time.Now(),
		}).Error
	if err == nil {
		r.invalidateCatalogCache(ctx, id)
	}
	return err
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// OffersRepositoryInterface defines the offer persistence operations
type OffersRepositoryInterface interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Offer, error)
	List(ctx context.Context, userID uuid.UUID, catalogID *uuid.UUID, offerType *models.OfferType, page, limit int) ([]models.Offer, int64, error)
	Update(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	DeleteByCatalog(ctx context.Context, catalogID uuid.UUID) error
}

type OffersRepository struct {
	db *gorm.DB
}

func NewOffersRepository(db *gorm.DB) *OffersRepository {
	return &OffersRepository{db: db}
}

// Create creates a new offer
func (r *OffersRepository) Create(ctx context.Context, offer *models.Offer) error {
	offer.CreatedAt = time.Now()
	offer.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(offer).Error
}

// GetByID retrieves an offer by ID scoped to its owner
func (r *OffersRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &offer, nil
}

// List retrieves offers for a user with optional catalog/type filters and pagination
func (r *OffersRepository) List(ctx context.Context, userID uuid.UUID, catalogID *uuid.UUID, offerType *models.OfferType, page, limit int) ([]models.Offer, int64, error) {
	var offers []models.Offer
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Offer{}).Where("user_id = ?", userID)
	if catalogID != nil {
		query = query.Where("catalog_id = ?", *catalogID)
	}
	if offerType != nil {
		query = query.Where("offer_type = ?", *offerType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&offers).Error; err != nil {
		return nil, 0, err
	}

	return offers, total, nil
}

// Update applies updates to an offer
func (r *OffersRepository) Update(ctx context.Context, id, userID uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&models.Offer{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an offer
func (r *OffersRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Offer{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByCatalog removes all offers generated from a catalog
func (r *OffersRepository) DeleteByCatalog(ctx context.Context, catalogID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("catalog_id = ?", catalogID).Delete(&models.Offer{}).Error
}

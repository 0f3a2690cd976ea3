package records

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"medilog-server/internal/errs"
	"medilog-server/internal/models"
)

// Repository is the persistence boundary for records. Implementations must
// provide single-row atomic updates; the service layers no locking on top.
type Repository interface {
	Create(ctx context.Context, rec *models.Record) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Record, error)
	GetByID(ctx context.Context, id string) (*models.Record, error)
	GetByShareToken(ctx context.Context, token string) (*models.Record, error)
	// UpdateShareToken sets or clears (nil) the share token in one UPDATE.
	UpdateShareToken(ctx context.Context, id string, token *string) error
	Delete(ctx context.Context, id string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns the gorm-backed Repository.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, rec *models.Record) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrConflict
		}
		return err
	}
	return nil
}

func (r *gormRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Record, error) {
	var recs []models.Record
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at desc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *gormRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	var rec models.Record
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) GetByShareToken(ctx context.Context, token string) (*models.Record, error) {
	var rec models.Record
	if err := r.db.WithContext(ctx).First(&rec, "share_token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *gormRepository) UpdateShareToken(ctx context.Context, id string, token *string) error {
	// No RowsAffected check here: the MySQL protocol reports rows changed,
	// not rows matched, so clearing an already-NULL token affects zero rows
	// even though the record exists. The caller verifies existence and
	// ownership before this UPDATE runs.
	err := r.db.WithContext(ctx).
		Model(&models.Record{}).
		Where("id = ?", id).
		Update("share_token", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrConflict
		}
		return err
	}
	return nil
}

func (r *gormRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Record{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrNotFound
	}
	return nil
}

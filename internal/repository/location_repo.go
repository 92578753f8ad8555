package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
)

// LocationRepository stores favourite locations (playground pins).
type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(database *gorm.DB) *LocationRepository {
	return &LocationRepository{db: database}
}

func (r *LocationRepository) Add(ctx context.Context, loc *db.FavoriteLocation) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

// List returns the user's pins, oldest first.
func (r *LocationRepository) List(ctx context.Context, userID uint64) ([]db.FavoriteLocation, error) {
	var locs []db.FavoriteLocation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, id").
		Find(&locs).Error
	return locs, err
}

func (r *LocationRepository) Delete(ctx context.Context, userID uint64, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&db.FavoriteLocation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return svcErr.NotFound("favorite location %s", id)
	}
	return nil
}

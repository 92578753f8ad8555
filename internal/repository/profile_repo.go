package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
)

// Photo count bounds that hold after every completed profile mutation.
const (
	MinPhotos = 2
	MaxPhotos = 6
)

// ProfileRepository owns profiles and the entities that hang off them.
// Photo mutations run in a transaction with the profile row locked so the
// 2–6 photo invariant survives concurrent requests.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// forUpdate adds a row lock on dialects that support SELECT ... FOR UPDATE.
// SQLite serialises writers on its own.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "mysql" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Create inserts p together with its photos, prompts and preferences.
func (r *ProfileRepository) Create(ctx context.Context, p *db.Profile) error {
	if n := len(p.Photos); n < MinPhotos || n > MaxPhotos {
		return svcErr.Validation("a profile needs between %d and %d photos, got %d", MinPhotos, MaxPhotos, n)
	}
	for i := range p.Photos {
		p.Photos[i].Position = i
	}
	for i := range p.Prompts {
		p.Prompts[i].Position = i
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&db.Profile{}).Where("user_id = ?", p.UserID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return svcErr.Conflict("profile already exists for user %d", p.UserID)
		}
		return tx.Create(p).Error
	})
}

// GetByUserID loads the profile with photos and prompts in display order.
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uint64) (db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).
		Preload("Photos", func(tx *gorm.DB) *gorm.DB { return tx.Order("sort_order") }).
		Preload("Prompts", func(tx *gorm.DB) *gorm.DB { return tx.Order("sort_order") }).
		Preload("Preferences").
		Where("user_id = ?", userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Profile{}, svcErr.NotFound("profile for user %d", userID)
	}
	return p, err
}

// lockProfile loads the bare profile row inside tx, locking it where supported.
func lockProfile(tx *gorm.DB, userID uint64) (db.Profile, error) {
	var p db.Profile
	err := forUpdate(tx).Where("user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Profile{}, svcErr.NotFound("profile for user %d", userID)
	}
	return p, err
}

// Update applies a partial update of scalar profile columns.
func (r *ProfileRepository) Update(ctx context.Context, userID uint64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		return tx.Model(&p).Updates(fields).Error
	})
}

// ReplacePrompts swaps the profile's prompts for the given list.
func (r *ProfileRepository) ReplacePrompts(ctx context.Context, userID uint64, prompts []db.Prompt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		if err := tx.Where("profile_id = ?", p.ID).Delete(&db.Prompt{}).Error; err != nil {
			return err
		}
		if len(prompts) == 0 {
			return nil
		}
		for i := range prompts {
			prompts[i].ID = ""
			prompts[i].ProfileID = p.ID
			prompts[i].Position = i
		}
		return tx.Create(&prompts).Error
	})
}

// UpsertPreferences writes the profile's preference set.
func (r *ProfileRepository) UpsertPreferences(ctx context.Context, userID uint64, prefs db.Preferences) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		prefs.ProfileID = p.ID
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "profile_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"min_age", "max_age", "max_distance", "activity_level", "distance_unit", "updated_at",
			}),
		}).Create(&prefs).Error
	})
}

// Delete removes the profile and everything it owns, favourite locations included.
func (r *ProfileRepository) Delete(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		for _, child := range []any{&db.Photo{}, &db.Prompt{}, &db.Preferences{}} {
			if err := tx.Where("profile_id = ?", p.ID).Delete(child).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&db.FavoriteLocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&p).Error
	})
}

// Photos returns the profile's photos in display order.
func (r *ProfileRepository) Photos(ctx context.Context, userID uint64) ([]db.Photo, error) {
	var photos []db.Photo
	err := r.db.WithContext(ctx).
		Joins("JOIN profiles p ON p.id = photos.profile_id").
		Where("p.user_id = ?", userID).
		Order("photos.sort_order").
		Find(&photos).Error
	return photos, err
}

// AddPhoto appends a photo at the end of the list.
func (r *ProfileRepository) AddPhoto(ctx context.Context, userID uint64, url string) (db.Photo, error) {
	var photo db.Photo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&db.Photo{}).Where("profile_id = ?", p.ID).Count(&n).Error; err != nil {
			return err
		}
		if n >= MaxPhotos {
			return svcErr.Validation("a profile can have at most %d photos", MaxPhotos)
		}
		photo = db.Photo{ProfileID: p.ID, URL: url, Position: int(n)}
		return tx.Create(&photo).Error
	})
	return photo, err
}

// DeletePhoto removes one photo and closes the gap in positions.
func (r *ProfileRepository) DeletePhoto(ctx context.Context, userID uint64, photoID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		var photos []db.Photo
		if err := tx.Where("profile_id = ?", p.ID).Order("sort_order").Find(&photos).Error; err != nil {
			return err
		}

		idx := -1
		for i, ph := range photos {
			if ph.ID == photoID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return svcErr.NotFound("photo %s", photoID)
		}
		if len(photos) <= MinPhotos {
			return svcErr.Validation("a profile needs at least %d photos", MinPhotos)
		}

		if err := tx.Delete(&db.Photo{}, "id = ?", photoID).Error; err != nil {
			return err
		}
		remaining := append(photos[:idx:idx], photos[idx+1:]...)
		return resequence(tx, remaining)
	})
}

// ReorderPhotos sets the display order. ids must be a permutation of the
// profile's current photo ids.
func (r *ProfileRepository) ReorderPhotos(ctx context.Context, userID uint64, ids []string) ([]db.Photo, error) {
	var ordered []db.Photo
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		var photos []db.Photo
		if err := tx.Where("profile_id = ?", p.ID).Find(&photos).Error; err != nil {
			return err
		}
		if len(ids) != len(photos) {
			return svcErr.Validation("reorder must list all %d photos", len(photos))
		}

		byID := make(map[string]db.Photo, len(photos))
		for _, ph := range photos {
			byID[ph.ID] = ph
		}
		ordered = make([]db.Photo, 0, len(ids))
		for _, id := range ids {
			ph, ok := byID[id]
			if !ok {
				return svcErr.Validation("photo %s is not on this profile or is listed twice", id)
			}
			delete(byID, id)
			ordered = append(ordered, ph)
		}
		return resequence(tx, ordered)
	})
	if err != nil {
		return nil, err
	}
	return ordered, nil
}

// resequence writes contiguous positions 0..n-1 in slice order.
func resequence(tx *gorm.DB, photos []db.Photo) error {
	for i := range photos {
		if photos[i].Position == i {
			continue
		}
		photos[i].Position = i
		if err := tx.Model(&db.Photo{}).Where("id = ?", photos[i].ID).Update("sort_order", i).Error; err != nil {
			return err
		}
	}
	return nil
}

// AddPrompt appends a prompt to the profile.
func (r *ProfileRepository) AddPrompt(ctx context.Context, userID uint64, question, answer string) (db.Prompt, error) {
	var prompt db.Prompt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&db.Prompt{}).Where("profile_id = ?", p.ID).Count(&n).Error; err != nil {
			return err
		}
		prompt = db.Prompt{ProfileID: p.ID, Question: question, Answer: answer, Position: int(n)}
		return tx.Create(&prompt).Error
	})
	return prompt, err
}

// DeletePrompt removes a prompt owned by the user's profile.
func (r *ProfileRepository) DeletePrompt(ctx context.Context, userID uint64, promptID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND profile_id IN (?)", promptID,
			r.db.Model(&db.Profile{}).Select("id").Where("user_id = ?", userID)).
		Delete(&db.Prompt{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return svcErr.NotFound("prompt %s", promptID)
	}
	return nil
}

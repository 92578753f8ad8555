package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
)

// UserRepository reads the identity-owned users table.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// WithTx returns a copy of the repository bound to tx.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// ActiveSince returns ids of active users seen at or after since, most
// recently active first. limit <= 0 means no limit.
func (r *UserRepository) ActiveSince(ctx context.Context, since time.Time, limit int) ([]uint64, error) {
	q := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("active = ? AND last_active_at >= ?", true, since.UTC()).
		Order("last_active_at DESC, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var ids []uint64
	err := q.Pluck("id", &ids).Error
	return ids, err
}

// TouchActivity records that the user was seen at t.
func (r *UserRepository) TouchActivity(ctx context.Context, userID uint64, t time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_active_at", t.UTC()).Error
}

// LockPair takes row locks on both users in id order, so concurrent
// transactions on the same pair serialise without deadlocking.
// Both users must exist.
func (r *UserRepository) LockPair(ctx context.Context, a, b uint64) error {
	lo, hi := db.OrderedPair(a, b)
	var users []db.User
	err := forUpdate(r.db.WithContext(ctx)).
		Select("id").
		Where("id IN ?", []uint64{lo, hi}).
		Order("id").
		Find(&users).Error
	if err != nil {
		return err
	}
	if len(users) != 2 {
		return svcErr.NotFound("user %d or %d", a, b)
	}
	return nil
}

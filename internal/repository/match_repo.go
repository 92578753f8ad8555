package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/pupmatch/internal/db"
	"github.com/oggyb/pupmatch/internal/utils/pagination"
)

// MatchRepository persists matches. Every method normalises the pair so
// callers can pass users in any order.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// WithTx returns a copy of the repository bound to tx.
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// CreateIfAbsent inserts the match for {a,b} unless one already exists.
// created is false when the unique constraint absorbed the insert; the
// existing row is returned in that case.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, a, b uint64) (m db.Match, created bool, err error) {
	u1, u2 := db.OrderedPair(a, b)
	m = db.Match{User1ID: u1, User2ID: u2}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&m)
	if res.Error != nil {
		return db.Match{}, false, res.Error
	}
	if res.RowsAffected > 0 {
		return m, true, nil
	}

	existing, found, err := r.Get(ctx, u1, u2)
	if err != nil {
		return db.Match{}, false, err
	}
	if !found {
		return db.Match{}, false, errors.New("match insert ignored but no row found")
	}
	return existing, false, nil
}

// Get returns the match for {a,b}.
func (r *MatchRepository) Get(ctx context.Context, a, b uint64) (m db.Match, found bool, err error) {
	u1, u2 := db.OrderedPair(a, b)
	err = r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Match{}, false, nil
	}
	if err != nil {
		return db.Match{}, false, err
	}
	return m, true, nil
}

// Delete removes the match for {a,b} and returns the deleted row.
func (r *MatchRepository) Delete(ctx context.Context, a, b uint64) (db.Match, bool, error) {
	m, found, err := r.Get(ctx, a, b)
	if err != nil || !found {
		return db.Match{}, false, err
	}
	if err := r.db.WithContext(ctx).Delete(&db.Match{}, "id = ?", m.ID).Error; err != nil {
		return db.Match{}, false, err
	}
	return m, true, nil
}

// ListForUser returns the user's matches, newest first, with cursor pagination.
func (r *MatchRepository) ListForUser(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]db.Match, *string, error) {
	cursor, err := pagination.Decode(pagination.Token(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if cursor.Ref != "" && cursor.UpdatedUnix > 0 {
		ts := time.UnixMilli(cursor.UpdatedUnix).UTC()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.Ref)
	}

	var matches []db.Match
	if err := query.Find(&matches).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(matches) > limit {
		last := matches[limit-1]
		token, err := pagination.Encode(pagination.Cursor{
			Ref:         last.ID,
			UpdatedUnix: last.CreatedAt.UnixMilli(),
		})
		if err != nil {
			return nil, nil, err
		}
		nextToken = &token
		matches = matches[:limit]
	}
	return matches, nextToken, nil
}

// Count returns the number of matches for {a,b}; used by consistency checks.
func (r *MatchRepository) Count(ctx context.Context, a, b uint64) (int64, error) {
	u1, u2 := db.OrderedPair(a, b)
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		Count(&n).Error
	return n, err
}

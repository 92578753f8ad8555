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

// DecisionRepository reads and writes the decisions table: one row per
// ordered (actor, recipient) pair holding the latest like or pass.
type DecisionRepository struct {
	db *gorm.DB
}

func NewDecisionRepository(database *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: database}
}

// WithTx returns a copy of the repository bound to tx.
func (r *DecisionRepository) WithTx(tx *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: tx}
}

// Record stores a plain like or pass from actor to recipient, replacing any
// earlier decision on the pair.
//
//	repo.Record(ctx, 1, 2, true) // user 1 likes user 2
func (r *DecisionRepository) Record(ctx context.Context, actorID, recipientID uint64, liked bool) error {
	return r.Upsert(ctx, db.Decision{ActorID: actorID, RecipientID: recipientID, Liked: liked})
}

// Upsert writes d, overwriting liked/blocked on an existing pair.
func (r *DecisionRepository) Upsert(ctx context.Context, d db.Decision) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "recipient_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"liked", "blocked", "updated_at"}),
		}).
		Create(&d).Error
}

// Get returns the actor's decision on recipient. found is false when no row exists.
func (r *DecisionRepository) Get(ctx context.Context, actorID, recipientID uint64) (d db.Decision, found bool, err error) {
	err = r.db.WithContext(ctx).
		Where("actor_id = ? AND recipient_id = ?", actorID, recipientID).
		Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Decision{}, false, nil
	}
	if err != nil {
		return db.Decision{}, false, err
	}
	return d, true, nil
}

// Delete removes the actor's decision on recipient and reports whether a row existed.
func (r *DecisionRepository) Delete(ctx context.Context, actorID, recipientID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("actor_id = ? AND recipient_id = ?", actorID, recipientID).
		Delete(&db.Decision{})
	return res.RowsAffected > 0, res.Error
}

// HasLiked reports whether actor currently likes recipient.
func (r *DecisionRepository) HasLiked(ctx context.Context, actorID, recipientID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ? AND recipient_id = ? AND liked = ?", actorID, recipientID, true).
		Count(&n).Error
	return n > 0, err
}

// likesOf selects likes received by recipient, skipping actors the recipient
// has passed on (which includes every blocked pair).
func likesOf(recipientID uint64) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		return q.Table("decisions d").
			Where("d.recipient_id = ? AND d.liked = ?", recipientID, true).
			Where(`NOT EXISTS (
				SELECT 1 FROM decisions r
				WHERE r.actor_id = d.recipient_id AND r.recipient_id = d.actor_id AND r.liked = ?
			)`, false)
	}
}

// unanswered keeps likes the recipient has not returned yet.
func unanswered(q *gorm.DB) *gorm.DB {
	return q.Where(`NOT EXISTS (
		SELECT 1 FROM decisions r
		WHERE r.actor_id = d.recipient_id AND r.recipient_id = d.actor_id AND r.liked = ?
	)`, true)
}

// GetLikers pages through everyone who likes recipientID, newest first.
func (r *DecisionRepository) GetLikers(ctx context.Context, recipientID uint64, token *string, limit int) ([]db.Decision, *string, error) {
	return r.pageLikes(r.db.WithContext(ctx).Scopes(likesOf(recipientID)), token, limit)
}

// GetNewLikers is GetLikers without the likes recipientID already returned.
func (r *DecisionRepository) GetNewLikers(ctx context.Context, recipientID uint64, token *string, limit int) ([]db.Decision, *string, error) {
	return r.pageLikes(r.db.WithContext(ctx).Scopes(likesOf(recipientID), unanswered), token, limit)
}

// CountLikers counts the rows GetLikers would return.
func (r *DecisionRepository) CountLikers(ctx context.Context, recipientID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Scopes(likesOf(recipientID)).Count(&n).Error
	return n, err
}

// pageLikes orders by (updated_at, actor_id) descending and resumes after the
// cursor in token. A next token is returned only when another page exists.
func (r *DecisionRepository) pageLikes(q *gorm.DB, token *string, limit int) ([]db.Decision, *string, error) {
	cur, err := pagination.Decode(pagination.Token(token))
	if err != nil {
		return nil, nil, err
	}
	if cur.ID > 0 && cur.UpdatedUnix > 0 {
		at := time.UnixMilli(cur.UpdatedUnix).UTC()
		q = q.Where("d.updated_at < ? OR (d.updated_at = ? AND d.actor_id < ?)", at, at, cur.ID)
	}

	var rows []db.Decision
	if err := q.Order("d.updated_at DESC, d.actor_id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) <= limit {
		return rows, nil, nil
	}

	rows = rows[:limit]
	last := rows[limit-1]
	next, err := pagination.Encode(pagination.Cursor{ID: last.ActorID, UpdatedUnix: last.UpdatedAt.UnixMilli()})
	if err != nil {
		return nil, nil, err
	}
	return rows, &next, nil
}

// DecidedTargets returns every user the actor liked or passed, blocked pairs included.
func (r *DecisionRepository) DecidedTargets(ctx context.Context, actorID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ?", actorID).
		Pluck("recipient_id", &ids).Error
	return ids, err
}

// PassedBy returns every user who passed on userID.
func (r *DecisionRepository) PassedBy(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("recipient_id = ? AND liked = ?", userID, false).
		Pluck("actor_id", &ids).Error
	return ids, err
}

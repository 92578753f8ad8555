// Package match records like/pass decisions and keeps the match table
// consistent with them.
//
// A match row exists exactly when both directions of a pair are liked. Every
// mutation runs in one transaction that locks both user rows in id order,
// writes the decision and creates or removes the match. Side effects
// (notifications, cache invalidation) happen only after commit.
package match

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/metrics"
	"github.com/oggyb/pupmatch/internal/notify"
	"github.com/oggyb/pupmatch/internal/repository"
)

// RecommendationInvalidator drops a user's cached recommendation list.
type RecommendationInvalidator interface {
	Invalidate(ctx context.Context, userID uint64)
}

// LikeCountInvalidator drops a user's cached liked-you counter.
type LikeCountInvalidator interface {
	InvalidateLikeCount(ctx context.Context, userID uint64) error
}

// Outcome describes what a decision changed.
type Outcome struct {
	Decision db.Decision
	// Match is the pair's match after the call; nil when there is none.
	Match *db.Match
	// MatchCreated is true only for the call that inserted the match row.
	MatchCreated bool
	// RemovedMatch is the match deleted by the call, if any.
	RemovedMatch *db.Match
}

// Engine is the like/pass/match write path.
type Engine struct {
	db        *gorm.DB
	decisions *repository.DecisionRepository
	matches   *repository.MatchRepository
	users     *repository.UserRepository

	recs     RecommendationInvalidator
	likes    LikeCountInvalidator
	notifier notify.Notifier

	locks *pairLocks
	log   *slog.Logger
	now   func() time.Time
}

// Options carries the optional collaborators of an Engine. Nil fields are
// skipped.
type Options struct {
	Recommendations RecommendationInvalidator
	LikeCounts      LikeCountInvalidator
	Notifier        notify.Notifier
	Now             func() time.Time
}

func NewEngine(database *gorm.DB, opts Options, log *slog.Logger) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(log)
	}
	return &Engine{
		db:        database,
		decisions: repository.NewDecisionRepository(database),
		matches:   repository.NewMatchRepository(database),
		users:     repository.NewUserRepository(database),
		recs:      opts.Recommendations,
		likes:     opts.LikeCounts,
		notifier:  opts.Notifier,
		locks:     newPairLocks(),
		log:       log.With("component", "match.engine"),
		now:       opts.Now,
	}
}

// txRepos is the set of repositories bound to one transaction.
type txRepos struct {
	decisions *repository.DecisionRepository
	matches   *repository.MatchRepository
}

// inPairTx runs fn in a transaction holding the pair's locks.
func (e *Engine) inPairTx(ctx context.Context, a, b uint64, fn func(r txRepos) error) error {
	if err := validatePair(a, b); err != nil {
		return err
	}
	unlock := e.locks.lock(a, b)
	defer unlock()

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := e.users.WithTx(tx).LockPair(ctx, a, b); err != nil {
			return err
		}
		return fn(txRepos{
			decisions: e.decisions.WithTx(tx),
			matches:   e.matches.WithTx(tx),
		})
	})
	return storeErr(err)
}

func validatePair(a, b uint64) error {
	if a == 0 || b == 0 {
		return svcErr.Validation("user ids must be non-zero")
	}
	if a == b {
		return svcErr.Validation("cannot decide on yourself")
	}
	return nil
}

// storeErr passes taxonomy errors through and marks everything else as a
// persistence outage.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, svcErr.ErrValidation),
		errors.Is(err, svcErr.ErrNotFound),
		errors.Is(err, svcErr.ErrConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return svcErr.Unavailable("store", err)
}

// checkNotBlocked fails when either direction of the pair carries the
// unmatch block.
func checkNotBlocked(ctx context.Context, r txRepos, actorID, targetID uint64) (reverse db.Decision, reverseFound bool, err error) {
	prior, found, err := r.decisions.Get(ctx, actorID, targetID)
	if err != nil {
		return db.Decision{}, false, err
	}
	if found && prior.Blocked {
		return db.Decision{}, false, svcErr.ErrBlocked
	}
	reverse, reverseFound, err = r.decisions.Get(ctx, targetID, actorID)
	if err != nil {
		return db.Decision{}, false, err
	}
	if reverseFound && reverse.Blocked {
		return db.Decision{}, false, svcErr.ErrBlocked
	}
	return reverse, reverseFound, nil
}

// RecordLike sets actor's decision on target to Like. When target already
// likes actor the match is created; repeating the call is a no-op beyond
// the decision timestamp.
func (e *Engine) RecordLike(ctx context.Context, actorID, targetID uint64) (Outcome, error) {
	var out Outcome
	err := e.inPairTx(ctx, actorID, targetID, func(r txRepos) error {
		reverse, reverseFound, err := checkNotBlocked(ctx, r, actorID, targetID)
		if err != nil {
			return err
		}

		d := db.Decision{ActorID: actorID, RecipientID: targetID, Liked: true}
		if err := r.decisions.Upsert(ctx, d); err != nil {
			return err
		}
		out.Decision = d

		if !reverseFound || !reverse.Liked {
			return nil
		}
		m, created, err := r.matches.CreateIfAbsent(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		out.Match = &m
		out.MatchCreated = created
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	metrics.Decisions.WithLabelValues("like").Inc()
	e.log.Debug("like recorded", "actor", actorID, "target", targetID, "match_created", out.MatchCreated)
	if out.MatchCreated {
		e.emit(ctx, notify.MatchCreated, *out.Match)
	}
	e.afterCommit(ctx, actorID, targetID)
	return out, nil
}

// RecordPass sets actor's decision on target to Pass. A pass withdraws a
// prior like, so a backing match is removed.
func (e *Engine) RecordPass(ctx context.Context, actorID, targetID uint64) (Outcome, error) {
	var out Outcome
	err := e.inPairTx(ctx, actorID, targetID, func(r txRepos) error {
		if _, _, err := checkNotBlocked(ctx, r, actorID, targetID); err != nil {
			return err
		}

		d := db.Decision{ActorID: actorID, RecipientID: targetID, Liked: false}
		if err := r.decisions.Upsert(ctx, d); err != nil {
			return err
		}
		out.Decision = d

		removed, found, err := r.matches.Delete(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if found {
			out.RemovedMatch = &removed
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	metrics.Decisions.WithLabelValues("pass").Inc()
	e.log.Debug("pass recorded", "actor", actorID, "target", targetID, "match_removed", out.RemovedMatch != nil)
	if out.RemovedMatch != nil {
		e.emit(ctx, notify.MatchRemoved, *out.RemovedMatch)
	}
	e.afterCommit(ctx, actorID, targetID)
	return out, nil
}

// Unlike removes actor's like on target, and the match it backed. It fails
// with NotFound when actor does not currently like target.
func (e *Engine) Unlike(ctx context.Context, actorID, targetID uint64) (Outcome, error) {
	var out Outcome
	err := e.inPairTx(ctx, actorID, targetID, func(r txRepos) error {
		prior, found, err := r.decisions.Get(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if !found || !prior.Liked {
			return svcErr.NotFound("no like from %d to %d", actorID, targetID)
		}
		if _, err := r.decisions.Delete(ctx, actorID, targetID); err != nil {
			return err
		}

		removed, found, err := r.matches.Delete(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if found {
			out.RemovedMatch = &removed
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	metrics.Decisions.WithLabelValues("unlike").Inc()
	if out.RemovedMatch != nil {
		e.emit(ctx, notify.MatchRemoved, *out.RemovedMatch)
	}
	e.afterCommit(ctx, actorID, targetID)
	return out, nil
}

// Unmatch deletes the pair's match and turns both directions into blocked
// passes. Blocked pairs never reappear in recommendations and reject any
// further like or pass.
func (e *Engine) Unmatch(ctx context.Context, actorID, targetID uint64) (Outcome, error) {
	var out Outcome
	err := e.inPairTx(ctx, actorID, targetID, func(r txRepos) error {
		removed, found, err := r.matches.Delete(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if !found {
			return svcErr.NotFound("no match between %d and %d", actorID, targetID)
		}
		out.RemovedMatch = &removed

		for _, d := range []db.Decision{
			{ActorID: actorID, RecipientID: targetID, Liked: false, Blocked: true},
			{ActorID: targetID, RecipientID: actorID, Liked: false, Blocked: true},
		} {
			if err := r.decisions.Upsert(ctx, d); err != nil {
				return err
			}
		}
		out.Decision = db.Decision{ActorID: actorID, RecipientID: targetID, Blocked: true}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	metrics.Decisions.WithLabelValues("unmatch").Inc()
	e.log.Info("pair unmatched", "actor", actorID, "target", targetID, "match_id", out.RemovedMatch.ID)
	e.emit(ctx, notify.MatchRemoved, *out.RemovedMatch)
	e.afterCommit(ctx, actorID, targetID)
	return out, nil
}

// CheckPair verifies the match invariant for {a,b} against the store.
func (e *Engine) CheckPair(ctx context.Context, a, b uint64) error {
	ab, err := e.decisions.HasLiked(ctx, a, b)
	if err != nil {
		return storeErr(err)
	}
	ba, err := e.decisions.HasLiked(ctx, b, a)
	if err != nil {
		return storeErr(err)
	}
	n, err := e.matches.Count(ctx, a, b)
	if err != nil {
		return storeErr(err)
	}

	switch {
	case n > 1:
		return svcErr.Conflict("pair {%d,%d} has %d matches", a, b, n)
	case n == 1 && !(ab && ba):
		return svcErr.Conflict("pair {%d,%d} matched without both likes (%t,%t)", a, b, ab, ba)
	case n == 0 && ab && ba:
		return svcErr.Conflict("pair {%d,%d} liked both ways without a match", a, b)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, typ notify.EventType, m db.Match) {
	metrics.MatchEvents.WithLabelValues(string(typ)).Inc()
	ev := notify.Event{
		Type:    typ,
		MatchID: m.ID,
		UserIDs: [2]uint64{m.User1ID, m.User2ID},
		At:      e.now().UTC(),
	}
	// the decision is committed; a lost event must not fail the request
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.log.Warn("match event dropped", "type", typ, "match_id", m.ID, "err", err)
	}
}

// afterCommit invalidates every cache a decision on the pair can affect.
func (e *Engine) afterCommit(ctx context.Context, actorID, targetID uint64) {
	if e.recs != nil {
		e.recs.Invalidate(ctx, actorID)
		e.recs.Invalidate(ctx, targetID)
	}
	if e.likes != nil {
		for _, id := range []uint64{actorID, targetID} {
			if err := e.likes.InvalidateLikeCount(ctx, id); err != nil {
				e.log.Warn("like counter invalidation failed", "user_id", id, "err", err)
			}
		}
	}
}

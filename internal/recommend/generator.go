package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// ctxCheckEvery is how many candidates are scored between context checks.
const ctxCheckEvery = 64

// GeneratorConfig tunes a Generator.
type GeneratorConfig struct {
	// Limit is the maximum number of entries returned.
	Limit int
	// PoolSize caps how many candidates are pulled from the pool source.
	PoolSize int
	// Weights overrides DefaultWeights when non-zero.
	Weights Weights
	// Now is the clock used for GeneratedAt; defaults to time.Now.
	Now func() time.Time
}

// Result is the output of one generation run.
type Result struct {
	Entries []Entry
	// Partial is set when the context expired while scoring; Entries then
	// holds the best of the candidates scored so far.
	Partial bool
	// PoolSize is the number of candidates pulled before filtering.
	PoolSize int
}

// Generator produces ranked recommendation lists.
type Generator struct {
	profiles ProfileSource
	filter   *ExclusionFilter
	scorer   Scorer
	cfg      GeneratorConfig
	log      *slog.Logger
}

// NewGenerator wires a Generator from its collaborators.
func NewGenerator(profiles ProfileSource, filter *ExclusionFilter, cfg GeneratorConfig, log *slog.Logger) *Generator {
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 500
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{
		profiles: profiles,
		filter:   filter,
		scorer:   NewScorer(cfg.Weights),
		cfg:      cfg,
		log:      log.With("component", "recommend.generator"),
	}
}

// Limit returns the configured list size.
func (g *Generator) Limit() int { return g.cfg.Limit }

// Generate runs exclusion → pool → scoring → sort → truncate for userID.
// The pool source already skips decided users; the exclusion set is still
// applied to everything it returns.
//
// Ordering is by descending score with ascending candidate id as the
// tie-break, so identical inputs always produce identical output.
// Errors from the profile or decision stores are returned as-is; a context
// expiring during scoring yields a Partial result instead of an error.
func (g *Generator) Generate(ctx context.Context, userID uint64) (Result, error) {
	req, err := g.profiles.Requester(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("load requester %d: %w", userID, err)
	}

	excluded, err := g.filter.ExcludedSet(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	pool, err := g.profiles.Pool(ctx, req, g.cfg.PoolSize)
	if err != nil {
		return Result{}, fmt.Errorf("load pool for %d: %w", userID, err)
	}

	now := g.cfg.Now().UTC()
	res := Result{PoolSize: len(pool)}
	scored := make([]Entry, 0, len(pool))

	for i, c := range pool {
		if i%ctxCheckEvery == 0 && ctx.Err() != nil {
			res.Partial = true
			g.log.Warn("generation interrupted, returning partial result",
				"user_id", userID, "scored", i, "pool", len(pool), "err", ctx.Err())
			break
		}
		if _, skip := excluded[c.UserID]; skip {
			continue
		}
		// a candidate appears at most once per list
		excluded[c.UserID] = struct{}{}

		s := g.scorer.Score(req, c)
		if !s.InBounds {
			continue
		}
		scored = append(scored, Entry{CandidateID: c.UserID, Score: s.Total, GeneratedAt: now})
	}

	Rank(scored)
	if len(scored) > g.cfg.Limit {
		scored = scored[:g.cfg.Limit]
	}
	res.Entries = scored
	return res, nil
}

// Rank sorts entries by descending score, then ascending candidate id.
func Rank(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].CandidateID < entries[j].CandidateID
	})
}

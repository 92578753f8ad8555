// Package feed is the recommendation read path: it serves a user's ranked
// candidates through the two-tier cache and never fails because of the cache.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oggyb/pupmatch/internal/cache"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/logger"
	"github.com/oggyb/pupmatch/internal/metrics"
	"github.com/oggyb/pupmatch/internal/recommend"
)

// ActivityTracker records that a user was seen.
type ActivityTracker interface {
	TouchActivity(ctx context.Context, userID uint64, t time.Time) error
}

// Source values beyond the cache's own.
const (
	SourceLastKnown cache.Source = "last_known"
	SourceEmpty     cache.Source = "empty"
)

// Page is the answer to a recommendations request.
type Page struct {
	Entries []recommend.Entry
	Source  cache.Source
	// Degraded is set when the list came from a fallback after generation
	// failed or was cut short.
	Degraded bool
}

// Service serves recommendation lists.
type Service struct {
	gen      *recommend.Generator
	filter   *recommend.ExclusionFilter
	cache    *cache.RecommendationCache
	activity ActivityTracker
	timeout  time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// Config tunes a Service.
type Config struct {
	// GenerateTimeout bounds one generation; 0 means no bound beyond the
	// request context.
	GenerateTimeout time.Duration
	Now             func() time.Time
}

func NewService(
	gen *recommend.Generator,
	filter *recommend.ExclusionFilter,
	recs *cache.RecommendationCache,
	activity ActivityTracker,
	cfg Config,
	log *slog.Logger,
) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		gen:      gen,
		filter:   filter,
		cache:    recs,
		activity: activity,
		timeout:  cfg.GenerateTimeout,
		log:      log.With("component", "feed"),
		now:      cfg.Now,
	}
}

// Recommendations returns up to limit ranked candidates for userID.
//
// The list is read through the cache; on a miss it is generated under
// GenerateTimeout. A partial result is served but not cached. When
// generation fails the last published list is served, then an empty one.
// Every served list is re-checked against the live decision store.
// Only a missing profile or bad input fails the call.
func (s *Service) Recommendations(ctx context.Context, userID uint64, limit int) (Page, error) {
	if userID == 0 {
		return Page{}, svcErr.Validation("user id must be non-zero")
	}
	if limit <= 0 || limit > s.gen.Limit() {
		limit = s.gen.Limit()
	}

	if s.activity != nil {
		if err := s.activity.TouchActivity(ctx, userID, s.now().UTC()); err != nil {
			s.log.Warn("activity not recorded", "user_id", userID, "err", err)
		}
	}

	entries, src, err := s.cache.GetOrCompute(ctx, userID, func(ctx context.Context) ([]recommend.Entry, bool, error) {
		res, err := s.generate(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return res.Entries, !res.Partial, nil
	})

	page := Page{Entries: entries, Source: src, Degraded: src == cache.SourcePartial}
	if err != nil {
		if errors.Is(err, svcErr.ErrNotFound) || errors.Is(err, svcErr.ErrValidation) {
			return Page{}, err
		}
		page = s.fallback(ctx, userID, err)
	}

	fresh := page.Source == cache.SourceComputed || page.Source == cache.SourcePartial
	if !fresh && len(page.Entries) > 0 {
		filtered, err := s.filter.FilterEntries(ctx, userID, page.Entries)
		if err != nil {
			// without the live exclusion set nothing cached may be shown
			s.log.Warn("cannot re-check cached list, serving empty", "user_id", userID, "err", err)
			metrics.Fallbacks.WithLabelValues("empty").Inc()
			return Page{Entries: []recommend.Entry{}, Source: SourceEmpty, Degraded: true}, nil
		}
		page.Entries = filtered
	}

	if len(page.Entries) > limit {
		page.Entries = page.Entries[:limit]
	}
	return page, nil
}

// generate runs one bounded generation without touching the cache.
func (s *Service) generate(ctx context.Context, userID uint64) (recommend.Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.gen.Generate(ctx, userID)
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.Generations.WithLabelValues("error").Inc()
		s.log.Warn("generation failed", "user_id", userID, "err", err, logger.Since(start))
	case res.Partial:
		metrics.Generations.WithLabelValues("partial").Inc()
	default:
		metrics.Generations.WithLabelValues("complete").Inc()
		s.log.Debug("generated recommendations", "user_id", userID, "count", len(res.Entries), "pool", res.PoolSize, logger.Since(start))
	}
	return res, err
}

func (s *Service) fallback(ctx context.Context, userID uint64, cause error) Page {
	if last, ok := s.cache.LastKnown(ctx, userID); ok {
		metrics.Fallbacks.WithLabelValues("last_known").Inc()
		s.log.Info("serving last known recommendations", "user_id", userID, "cause", cause)
		return Page{Entries: last, Source: SourceLastKnown, Degraded: true}
	}
	metrics.Fallbacks.WithLabelValues("empty").Inc()
	s.log.Warn("no recommendations available", "user_id", userID, "cause", cause)
	return Page{Entries: []recommend.Entry{}, Source: SourceEmpty, Degraded: true}
}

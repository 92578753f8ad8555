// Package scheduler runs the background recommendation refresh.
//
// The refresh talks to the rest of the system only through the shared cache:
// it regenerates lists for recently active users, publishes them to Tier-2 and
// broadcasts an invalidation so every process drops its Tier-1 copy.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/logger"
	"github.com/oggyb/pupmatch/internal/metrics"
	"github.com/oggyb/pupmatch/internal/recommend"
)

// ActiveUsers selects users worth refreshing.
type ActiveUsers interface {
	ActiveSince(ctx context.Context, since time.Time, limit int) ([]uint64, error)
}

// Generator produces a fresh list for a user.
type Generator interface {
	Generate(ctx context.Context, userID uint64) (recommend.Result, error)
}

// Publisher replaces a user's shared list and invalidates local copies.
type Publisher interface {
	Publish(ctx context.Context, userID uint64, entries []recommend.Entry) error
}

// Config tunes the refresh.
type Config struct {
	Interval     time.Duration
	ActiveWindow time.Duration
	// MaxUsers caps one run; 0 means every active user.
	MaxUsers      int
	Concurrency   int
	RatePerSecond float64
	// UserTimeout bounds one user's generation.
	UserTimeout time.Duration
	OnStartup   bool
	Now         func() time.Time
}

// Stats summarises one run.
type Stats struct {
	Users     int
	Refreshed int64
	Partial   int64
	Skipped   int64
	Failed    int64
}

// RefreshService periodically republishes recommendation lists. It is a
// suture.Service.
type RefreshService struct {
	users     ActiveUsers
	gen       Generator
	publisher Publisher
	cfg       Config
	limiter   *rate.Limiter
	log       *slog.Logger
}

func NewRefreshService(users ActiveUsers, gen Generator, publisher Publisher, cfg Config, log *slog.Logger) *RefreshService {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = 24 * time.Hour
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &RefreshService{
		users:     users,
		gen:       gen,
		publisher: publisher,
		cfg:       cfg,
		limiter:   rate.NewLimiter(limit, cfg.Concurrency),
		log:       log.With("component", "scheduler.refresh"),
	}
}

// Serve runs a refresh every Interval until ctx is done. Runs never overlap.
func (s *RefreshService) Serve(ctx context.Context) error {
	s.log.Info("refresh service starting",
		"interval", s.cfg.Interval, "active_window", s.cfg.ActiveWindow, "concurrency", s.cfg.Concurrency)

	if s.cfg.OnStartup {
		s.run(ctx)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("refresh service shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *RefreshService) run(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("refresh run failed", "err", err)
	}
}

// RunOnce refreshes every active user once. A failing user is counted and
// skipped; only failing to list users fails the run.
func (s *RefreshService) RunOnce(ctx context.Context) (Stats, error) {
	start := time.Now()
	since := s.cfg.Now().Add(-s.cfg.ActiveWindow)

	ids, err := s.users.ActiveSince(ctx, since, s.cfg.MaxUsers)
	if err != nil {
		metrics.RefreshRuns.WithLabelValues("error").Inc()
		return Stats{}, err
	}

	var refreshed, partial, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, id := range ids {
		if err := s.limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			switch outcome := s.refreshUser(gctx, id); outcome {
			case "ok":
				refreshed.Add(1)
			case "partial":
				partial.Add(1)
			case "skipped":
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{
		Users:     len(ids),
		Refreshed: refreshed.Load(),
		Partial:   partial.Load(),
		Skipped:   skipped.Load(),
		Failed:    failed.Load(),
	}
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	if err := ctx.Err(); err != nil {
		metrics.RefreshRuns.WithLabelValues("error").Inc()
		return stats, err
	}
	metrics.RefreshRuns.WithLabelValues("ok").Inc()
	s.log.Info("refresh run complete",
		"users", stats.Users, "refreshed", stats.Refreshed, "partial", stats.Partial,
		"skipped", stats.Skipped, "failed", stats.Failed, logger.Since(start))
	return stats, nil
}

// refreshUser regenerates and publishes one list. Partial lists are not
// published: the previous list stays until the next run.
func (s *RefreshService) refreshUser(ctx context.Context, userID uint64) string {
	if s.cfg.UserTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UserTimeout)
		defer cancel()
	}

	res, err := s.gen.Generate(ctx, userID)
	switch {
	case errors.Is(err, svcErr.ErrNotFound):
		metrics.RefreshUsers.WithLabelValues("skipped").Inc()
		return "skipped"
	case err != nil:
		metrics.RefreshUsers.WithLabelValues("error").Inc()
		s.log.Warn("refresh generation failed", "user_id", userID, "err", err)
		return "error"
	case res.Partial:
		metrics.RefreshUsers.WithLabelValues("partial").Inc()
		return "partial"
	}

	if err := s.publisher.Publish(ctx, userID, res.Entries); err != nil {
		metrics.RefreshUsers.WithLabelValues("error").Inc()
		s.log.Warn("refresh publish failed", "user_id", userID, "err", err)
		return "error"
	}
	metrics.RefreshUsers.WithLabelValues("ok").Inc()
	return "ok"
}

func (s *RefreshService) String() string { return "recommendation-refresh" }

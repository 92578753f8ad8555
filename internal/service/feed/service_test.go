package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/pupmatch/internal/cache"
	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/logger"
	"github.com/oggyb/pupmatch/internal/recommend"
	"github.com/oggyb/pupmatch/internal/repository"
	"github.com/oggyb/pupmatch/internal/service/match"
)

//
// Test helpers
//

const (
	userA uint64 = 1
	userB uint64 = 2
	userC uint64 = 3
	userD uint64 = 4
)

// blockingProfiles never answers before the context expires.
type blockingProfiles struct{}

func (blockingProfiles) Requester(ctx context.Context, _ uint64) (recommend.Requester, error) {
	<-ctx.Done()
	return recommend.Requester{}, ctx.Err()
}

func (blockingProfiles) Pool(ctx context.Context, _ recommend.Requester, _ int) ([]recommend.Candidate, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// slowPool answers the requester at once but only hands out the pool once
// the context has expired, so scoring is cut short.
type slowPool struct{}

func (slowPool) Requester(_ context.Context, userID uint64) (recommend.Requester, error) {
	return recommend.Requester{UserID: userID, Preferences: recommend.Preferences{MinAge: 1, MaxAge: 5, MaxDistanceKm: 40}}, nil
}

func (slowPool) Pool(ctx context.Context, _ recommend.Requester, _ int) ([]recommend.Candidate, error) {
	<-ctx.Done()
	return []recommend.Candidate{{UserID: userB, Age: 3, Activity: recommend.ActivityMedium}}, nil
}

type fixture struct {
	db     *gorm.DB
	mr     *miniredis.Miniredis
	cache  *cache.RecommendationCache
	svc    *Service
	engine *match.Engine
}

// seedScenario creates A (age 2, wants 1–5), B (3), C (10) and D (2).
// Nobody has a location.
func seedScenario(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	profiles := repository.NewProfileRepository(gdb)
	ages := map[uint64]int{userA: 2, userB: 3, userC: 10, userD: 2}
	for id := userA; id <= userD; id++ {
		require.NoError(t, gdb.Create(&db.User{
			ID:           id,
			Username:     fmt.Sprintf("user%d", id),
			Email:        fmt.Sprintf("u%d@test.com", id),
			PasswordHash: "x",
			Active:       true,
			LastActiveAt: time.Now().UTC(),
		}).Error)

		p := &db.Profile{
			UserID: id,
			Name:   fmt.Sprintf("pup%d", id),
			Age:    ages[id],
			Bio:    "good dog",
			Photos: []db.Photo{{URL: "https://img.test/a.jpg"}, {URL: "https://img.test/b.jpg"}},
		}
		if id == userA {
			p.Preferences = &db.Preferences{MinAge: 1, MaxAge: 5, MaxDistance: 25, ActivityLevel: "medium", DistanceUnit: "miles"}
		}
		require.NoError(t, profiles.Create(context.Background(), p))
	}
}

func setup(t *testing.T, profiles recommend.ProfileSource) fixture {
	t.Helper()
	gdb, err := db.OpenSQLite(":memory:", gormlogger.Silent)
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	seedScenario(t, gdb)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	rc := cache.NewRedisCacheFromClient(client, cache.BreakerConfig{}, logger.Discard())

	recs, err := cache.NewRecommendationCache(cache.Options{
		LocalTTL:      time.Minute,
		SharedTTL:     15 * time.Minute,
		LastKnownTTL:  time.Hour,
		LocalCapacity: 100,
	}, rc, nil, logger.Discard())
	require.NoError(t, err)

	if profiles == nil {
		profiles = repository.NewPoolRepository(gdb, repository.PoolOptions{})
	}
	decisions := repository.NewDecisionRepository(gdb)
	filter := recommend.NewExclusionFilter(decisions, true)
	gen := recommend.NewGenerator(profiles, filter, recommend.GeneratorConfig{Limit: 10}, logger.Discard())

	svc := NewService(gen, filter, recs, repository.NewUserRepository(gdb),
		Config{GenerateTimeout: 50 * time.Millisecond}, logger.Discard())
	engine := match.NewEngine(gdb, match.Options{Recommendations: recs, LikeCounts: rc}, logger.Discard())

	return fixture{db: gdb, mr: mr, cache: recs, svc: svc, engine: engine}
}

func candidates(p Page) []uint64 {
	out := make([]uint64, 0, len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.CandidateID)
	}
	return out
}

//
// Tests
//

// TestRecommendations_AgeScenario: pool [B(3), C(10), D(2)] for A wanting 1–5.
// B sits on the middle of the range and ranks first; C is out of range.
func TestRecommendations_AgeScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	page, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{userB, userD}, candidates(page))
	assert.Equal(t, cache.SourceComputed, page.Source)
	assert.False(t, page.Degraded)

	page, err = f.svc.Recommendations(ctx, userA, 1)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceLocal, page.Source)
	assert.Equal(t, []uint64{userB}, candidates(page))
}

func TestRecommendations_DecisionInvalidates(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	_, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)

	_, err = f.engine.RecordLike(ctx, userA, userB)
	require.NoError(t, err)

	page, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceComputed, page.Source)
	assert.Equal(t, []uint64{userD}, candidates(page))
}

// TestRecommendations_UnmatchNeverResurfaces: after an unmatch the pair stays
// excluded for both users.
func TestRecommendations_UnmatchNeverResurfaces(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	_, err := f.engine.RecordLike(ctx, userA, userB)
	require.NoError(t, err)
	_, err = f.engine.RecordLike(ctx, userB, userA)
	require.NoError(t, err)
	_, err = f.engine.Unmatch(ctx, userA, userB)
	require.NoError(t, err)

	page, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)
	assert.NotContains(t, candidates(page), userB)

	page, err = f.svc.Recommendations(ctx, userB, 0)
	require.NoError(t, err)
	assert.NotContains(t, candidates(page), userA)
}

func TestRecommendations_CachedListIsRechecked(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	_, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)

	// a decision that skipped invalidation
	require.NoError(t, repository.NewDecisionRepository(f.db).Record(ctx, userA, userB, false))

	page, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)
	assert.Equal(t, cache.SourceLocal, page.Source)
	assert.Equal(t, []uint64{userD}, candidates(page))
}

func TestRecommendations_TimeoutFallsBackToLastKnown(t *testing.T) {
	ctx := context.Background()
	f := setup(t, blockingProfiles{})

	last := []recommend.Entry{
		{CandidateID: userD, Score: 0.9, GeneratedAt: time.Now().UTC()},
		{CandidateID: userB, Score: 0.5, GeneratedAt: time.Now().UTC()},
	}
	require.NoError(t, f.cache.Publish(ctx, userA, last))
	f.cache.Invalidate(ctx, userA)

	// B has since been decided on
	require.NoError(t, repository.NewDecisionRepository(f.db).Record(ctx, userA, userB, true))

	page, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)
	assert.True(t, page.Degraded)
	assert.Equal(t, SourceLastKnown, page.Source)
	assert.Equal(t, []uint64{userD}, candidates(page))
}

func TestRecommendations_TimeoutWithoutHistoryIsEmpty(t *testing.T) {
	f := setup(t, blockingProfiles{})

	page, err := f.svc.Recommendations(context.Background(), userA, 0)
	require.NoError(t, err)
	assert.True(t, page.Degraded)
	assert.Equal(t, SourceEmpty, page.Source)
	assert.Empty(t, page.Entries)

	_, _, ok := f.cache.Get(context.Background(), userA)
	assert.False(t, ok, "a failed generation is never cached")
}

func TestRecommendations_PartialIsDegradedAndUncached(t *testing.T) {
	ctx := context.Background()
	f := setup(t, slowPool{})

	page, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)
	assert.Equal(t, cache.SourcePartial, page.Source)
	assert.True(t, page.Degraded)

	_, _, ok := f.cache.Get(ctx, userA)
	assert.False(t, ok)
}

func TestRecommendations_RedisOutageStillServes(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	f.mr.Close()

	page, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{userB, userD}, candidates(page))

	// decisions still go through and invalidate the local tier
	_, err = f.engine.RecordPass(ctx, userA, userD)
	require.NoError(t, err)
	page, err = f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{userB}, candidates(page))
}

func TestRecommendations_Errors(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)

	_, err := f.svc.Recommendations(ctx, 0, 0)
	assert.ErrorIs(t, err, svcErr.ErrValidation)

	_, err = f.svc.Recommendations(ctx, 99, 0)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestRecommendations_TouchesActivity(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	require.NoError(t, f.db.Model(&db.User{}).Where("id = ?", userA).
		UpdateColumn("last_active_at", time.Now().UTC().Add(-72*time.Hour)).Error)

	_, err := f.svc.Recommendations(ctx, userA, 0)
	require.NoError(t, err)

	ids, err := repository.NewUserRepository(f.db).ActiveSince(ctx, time.Now().Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Contains(t, ids, userA)
}

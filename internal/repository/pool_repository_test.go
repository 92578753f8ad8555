package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
	applog "github.com/oggyb/pupmatch/internal/logger"
	"github.com/oggyb/pupmatch/internal/recommend"
	"github.com/oggyb/pupmatch/internal/repository"
)

func locatedProfile(t *testing.T, gdb *gorm.DB, userID uint64, age int, lat, lon float64, activity string) {
	t.Helper()
	seedUsers(t, gdb, userID)
	p := newProfile(userID, age, 2)
	p.Latitude, p.Longitude = &lat, &lon
	p.Preferences = &db.Preferences{MinAge: 0, MaxAge: 20, MaxDistance: 10, ActivityLevel: activity, DistanceUnit: "kilometers"}
	require.NoError(t, repository.NewProfileRepository(gdb).Create(context.Background(), p))
}

func candidateIDs(cs []recommend.Candidate) []uint64 {
	out := make([]uint64, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.UserID)
	}
	return out
}

func TestRequester_DefaultsAndUnits(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	seedUsers(t, gdb, 1)
	require.NoError(t, repository.NewProfileRepository(gdb).Create(ctx, newProfile(1, 3, 2)))

	pool := repository.NewPoolRepository(gdb, repository.PoolOptions{})
	req, err := pool.Requester(ctx, 1)
	require.NoError(t, err)

	assert.Nil(t, req.Location)
	assert.Equal(t, 20, req.Preferences.MaxAge)
	assert.Equal(t, recommend.ActivityMedium, req.Preferences.Activity)
	assert.InDelta(t, 25*1.609344, req.Preferences.MaxDistanceKm, 1e-9)

	_, err = pool.Requester(ctx, 2)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestPool_DistanceAgeAndActivity(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)

	locatedProfile(t, gdb, 1, 3, 51.50, -0.12, "medium") // requester
	locatedProfile(t, gdb, 2, 4, 51.52, -0.12, "high")   // ~2km
	locatedProfile(t, gdb, 3, 4, 51.60, -0.12, "low")    // ~11km, outside 10km
	locatedProfile(t, gdb, 4, 19, 51.50, -0.11, "low")   // near but outside age range
	locatedProfile(t, gdb, 5, 2, 51.49, -0.13, "low")    // near

	// inactive users never enter the pool
	locatedProfile(t, gdb, 6, 3, 51.50, -0.12, "low")
	require.NoError(t, gdb.Model(&db.User{}).Where("id = ?", 6).Update("active", false).Error)

	repo := repository.NewPoolRepository(gdb, repository.PoolOptions{})
	req := recommend.Requester{
		UserID:      1,
		Location:    &recommend.Location{Latitude: 51.50, Longitude: -0.12},
		Preferences: recommend.Preferences{MinAge: 1, MaxAge: 5, MaxDistanceKm: 10, Activity: recommend.ActivityMedium},
	}

	got, err := repo.Pool(ctx, req, 100)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 5}, candidateIDs(got))
	assert.Equal(t, recommend.ActivityHigh, got[0].Activity)
	require.NotNil(t, got[0].Location)

	// the radius cap wins over a larger preference
	capped := repository.NewPoolRepository(gdb, repository.PoolOptions{MaxRadiusKm: 1})
	got, err = capped.Pool(ctx, req, 100)
	require.NoError(t, err)
	assert.Empty(t, got)

	// limit is honoured
	got, err = repo.Pool(ctx, req, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func nearbyRequester(userID uint64) recommend.Requester {
	return recommend.Requester{
		UserID:      userID,
		Location:    &recommend.Location{Latitude: 51.50, Longitude: -0.12},
		Preferences: recommend.Preferences{MinAge: 1, MaxAge: 5, MaxDistanceKm: 10, Activity: recommend.ActivityMedium},
	}
}

func TestPool_DecidedCandidatesDoNotUseUpLimit(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	for id := uint64(1); id <= 5; id++ {
		locatedProfile(t, gdb, id, 3, 51.50, -0.12, "medium")
	}
	decisions := repository.NewDecisionRepository(gdb)
	require.NoError(t, decisions.Record(ctx, 1, 2, false))
	require.NoError(t, decisions.Record(ctx, 1, 3, true))
	require.NoError(t, decisions.Record(ctx, 4, 1, false))

	got, err := repository.NewPoolRepository(gdb, repository.PoolOptions{}).Pool(ctx, nearbyRequester(1), 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, candidateIDs(got))

	got, err = repository.NewPoolRepository(gdb, repository.PoolOptions{ExcludePassedBy: true}).Pool(ctx, nearbyRequester(1), 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, candidateIDs(got))
}

func TestGenerate_SmallPoolStillFindsUndecided(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	for id := uint64(1); id <= 5; id++ {
		locatedProfile(t, gdb, id, 3, 51.50, -0.12, "medium")
	}
	decisions := repository.NewDecisionRepository(gdb)
	require.NoError(t, decisions.Record(ctx, 1, 2, false))
	require.NoError(t, decisions.Record(ctx, 1, 3, false))

	gen := recommend.NewGenerator(
		repository.NewPoolRepository(gdb, repository.PoolOptions{ExcludePassedBy: true}),
		recommend.NewExclusionFilter(decisions, true),
		recommend.GeneratorConfig{Limit: 10, PoolSize: 2},
		applog.Discard(),
	)
	res, err := gen.Generate(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Partial)

	ids := make([]uint64, 0, len(res.Entries))
	for _, e := range res.Entries {
		ids = append(ids, e.CandidateID)
	}
	assert.Equal(t, []uint64{4, 5}, ids)
}

func TestPool_ReadsPastBoxCorners(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)

	locatedProfile(t, gdb, 1, 3, 51.50, -0.12, "medium")
	// inside the bounding box but ~12.7km away, and best on age
	locatedProfile(t, gdb, 2, 3, 51.58, 0.01, "medium")
	locatedProfile(t, gdb, 3, 3, 51.42, -0.25, "medium")
	locatedProfile(t, gdb, 4, 4, 51.51, -0.12, "medium")
	locatedProfile(t, gdb, 5, 4, 51.49, -0.12, "medium")

	got, err := repository.NewPoolRepository(gdb, repository.PoolOptions{}).Pool(ctx, nearbyRequester(1), 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, candidateIDs(got))
}

func TestPool_UnlocatedRequester(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	seedUsers(t, gdb, 1, 2)
	profiles := repository.NewProfileRepository(gdb)
	require.NoError(t, profiles.Create(ctx, newProfile(1, 3, 2)))
	require.NoError(t, profiles.Create(ctx, newProfile(2, 3, 2)))

	repo := repository.NewPoolRepository(gdb, repository.PoolOptions{})
	req, err := repo.Requester(ctx, 1)
	require.NoError(t, err)

	got, err := repo.Pool(ctx, req, 10)
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, candidateIDs(got))
	assert.Nil(t, got[0].Location)
	assert.Equal(t, recommend.ActivityMedium, got[0].Activity)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	seedUsers(t, gdb, 1, 2, 3)
	repo := repository.NewUserRepository(gdb)

	old := time.Now().UTC().Add(-72 * time.Hour)
	require.NoError(t, gdb.Model(&db.User{}).Where("id = ?", 3).Update("last_active_at", old).Error)

	ids, err := repo.ActiveSince(ctx, time.Now().UTC().Add(-24*time.Hour), 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 2}, ids)

	require.NoError(t, repo.TouchActivity(ctx, 3, time.Now().UTC()))
	ids, err = repo.ActiveSince(ctx, time.Now().UTC().Add(-24*time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{3}, ids)

	require.NoError(t, repo.LockPair(ctx, 2, 1))
	assert.ErrorIs(t, repo.LockPair(ctx, 1, 99), svcErr.ErrNotFound)
}

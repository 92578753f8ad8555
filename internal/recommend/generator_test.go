package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//
// Fakes
//

type fakeProfiles struct {
	requester Requester
	pool      []Candidate
	err       error
	// onPool runs before returning the pool; tests use it to cancel contexts.
	onPool func()
}

func (f *fakeProfiles) Requester(_ context.Context, userID uint64) (Requester, error) {
	if f.err != nil {
		return Requester{}, f.err
	}
	r := f.requester
	r.UserID = userID
	return r, nil
}

func (f *fakeProfiles) Pool(_ context.Context, _ Requester, limit int) ([]Candidate, error) {
	if f.onPool != nil {
		f.onPool()
	}
	if len(f.pool) > limit {
		return f.pool[:limit], nil
	}
	return f.pool, nil
}

type fakeDecisions struct {
	decided  map[uint64][]uint64
	passedBy map[uint64][]uint64
	err      error
}

func (f *fakeDecisions) DecidedTargets(_ context.Context, actorID uint64) ([]uint64, error) {
	return f.decided[actorID], f.err
}

func (f *fakeDecisions) PassedBy(_ context.Context, userID uint64) ([]uint64, error) {
	return f.passedBy[userID], f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestGenerator(p *fakeProfiles, d *fakeDecisions, limit int) *Generator {
	return NewGenerator(p, NewExclusionFilter(d, true), GeneratorConfig{
		Limit: limit,
		Now:   func() time.Time { return fixedNow },
	}, discard())
}

func ids(entries []Entry) []uint64 {
	out := make([]uint64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.CandidateID)
	}
	return out
}

//
// Tests
//

// TestGenerate_AgeScenario pins the end-to-end age scenario: requester aged 2
// with range [1,5] over B(3), C(10), D(2). With equal activity and no
// locations, B sits on the midpoint and outranks D; C is outside the range.
func TestGenerate_AgeScenario(t *testing.T) {
	const A, B, C, D = 1, 2, 3, 4
	p := &fakeProfiles{
		requester: Requester{Preferences: prefs(1, 5, 40, ActivityMedium)},
		pool: []Candidate{
			{UserID: B, Age: 3, Activity: ActivityMedium},
			{UserID: C, Age: 10, Activity: ActivityMedium},
			{UserID: D, Age: 2, Activity: ActivityMedium},
		},
	}
	gen := newTestGenerator(p, &fakeDecisions{}, 10)

	res, err := gen.Generate(context.Background(), A)
	require.NoError(t, err)

	assert.Equal(t, []uint64{B, D}, ids(res.Entries))
	assert.False(t, res.Partial)
	assert.Equal(t, 3, res.PoolSize)
	for _, e := range res.Entries {
		assert.Equal(t, fixedNow, e.GeneratedAt)
	}
}

func TestGenerate_ExcludesSelfAndDecided(t *testing.T) {
	p := &fakeProfiles{
		requester: Requester{Preferences: prefs(0, 20, 40, ActivityLow)},
		pool: []Candidate{
			{UserID: 1, Age: 5, Activity: ActivityLow}, // self
			{UserID: 2, Age: 5, Activity: ActivityLow}, // liked
			{UserID: 3, Age: 5, Activity: ActivityLow}, // passed
			{UserID: 4, Age: 5, Activity: ActivityLow}, // passed on requester
			{UserID: 5, Age: 5, Activity: ActivityLow},
		},
	}
	d := &fakeDecisions{
		decided:  map[uint64][]uint64{1: {2, 3}},
		passedBy: map[uint64][]uint64{1: {4}},
	}

	res, err := newTestGenerator(p, d, 10).Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, ids(res.Entries))

	// with the passed-by policy off, 4 is allowed back in
	gen := NewGenerator(p, NewExclusionFilter(d, false), GeneratorConfig{Limit: 10}, discard())
	res, err = gen.Generate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 5}, ids(res.Entries))
}

func TestGenerate_DeterministicTieBreakAndTruncate(t *testing.T) {
	var pool []Candidate
	for id := uint64(30); id >= 10; id-- {
		pool = append(pool, Candidate{UserID: id, Age: 4, Activity: ActivityHigh})
	}
	p := &fakeProfiles{requester: Requester{Preferences: prefs(2, 6, 10, ActivityHigh)}, pool: pool}
	gen := newTestGenerator(p, &fakeDecisions{}, 5)

	first, err := gen.Generate(context.Background(), 1)
	require.NoError(t, err)
	second, err := gen.Generate(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []uint64{10, 11, 12, 13, 14}, ids(first.Entries))
	assert.Equal(t, first, second)
}

// TestGenerate_NeverReturnsDecidedCandidates checks the exclusion property
// over random pools and random prior decisions.
func TestGenerate_NeverReturnsDecidedCandidates(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	levels := []ActivityLevel{ActivityLow, ActivityMedium, ActivityHigh}

	for round := 0; round < 200; round++ {
		const requester = 1
		n := r.Intn(60)
		var pool []Candidate
		for i := 0; i < n; i++ {
			pool = append(pool, Candidate{
				UserID:   uint64(r.Intn(80) + 1),
				Age:      r.Intn(21),
				Activity: levels[r.Intn(3)],
			})
		}
		decided := map[uint64]struct{}{}
		var decidedList []uint64
		for i := 0; i < r.Intn(40); i++ {
			id := uint64(r.Intn(80) + 1)
			decided[id] = struct{}{}
			decidedList = append(decidedList, id)
		}

		p := &fakeProfiles{requester: Requester{Preferences: prefs(0, 20, 10, levels[r.Intn(3)])}, pool: pool}
		d := &fakeDecisions{decided: map[uint64][]uint64{requester: decidedList}}

		res, err := newTestGenerator(p, d, 1+r.Intn(30)).Generate(context.Background(), requester)
		require.NoError(t, err)

		seen := map[uint64]bool{}
		for i, e := range res.Entries {
			assert.False(t, seen[e.CandidateID], "duplicate candidate %d", e.CandidateID)
			seen[e.CandidateID] = true

			_, isDecided := decided[e.CandidateID]
			assert.False(t, isDecided, "round %d returned decided candidate %d", round, e.CandidateID)
			assert.NotEqual(t, uint64(requester), e.CandidateID)
			if i > 0 {
				prev := res.Entries[i-1]
				assert.True(t, prev.Score > e.Score || (prev.Score == e.Score && prev.CandidateID <= e.CandidateID))
			}
		}
	}
}

func TestGenerate_PartialOnContextExpiry(t *testing.T) {
	var pool []Candidate
	for id := uint64(2); id < 500; id++ {
		pool = append(pool, Candidate{UserID: id, Age: 5, Activity: ActivityLow})
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &fakeProfiles{
		requester: Requester{Preferences: prefs(0, 20, 10, ActivityLow)},
		pool:      pool,
		onPool:    cancel,
	}
	d := &fakeDecisions{}
	// the decision store ignores ctx so generation reaches the scoring loop
	res, err := newTestGenerator(p, d, 10).Generate(ctx, 1)

	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Empty(t, res.Entries)
}

func TestGenerate_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("store down")

	_, err := newTestGenerator(&fakeProfiles{err: boom}, &fakeDecisions{}, 5).Generate(context.Background(), 1)
	assert.ErrorIs(t, err, boom)

	_, err = newTestGenerator(&fakeProfiles{}, &fakeDecisions{err: boom}, 5).Generate(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestExclusionFilter_FilterPreservesOrder(t *testing.T) {
	f := NewExclusionFilter(&fakeDecisions{decided: map[uint64][]uint64{7: {3}}}, false)

	got, err := f.Filter(context.Background(), 7, []uint64{9, 3, 7, 1, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint64{9, 1, 4}, got)

	entries, err := f.FilterEntries(context.Background(), 7, []Entry{{CandidateID: 3}, {CandidateID: 4}})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, ids(entries))
}

package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func prefs(minAge, maxAge int, maxKm float64, act ActivityLevel) Preferences {
	return Preferences{MinAge: minAge, MaxAge: maxAge, MaxDistanceKm: maxKm, Activity: act}
}

func TestScore_AgeComponent(t *testing.T) {
	s := NewScorer(DefaultWeights)
	req := Requester{UserID: 1, Preferences: prefs(1, 5, 40, ActivityMedium)}

	mid := s.Score(req, Candidate{UserID: 2, Age: 3, Activity: ActivityMedium})
	edge := s.Score(req, Candidate{UserID: 3, Age: 1, Activity: ActivityMedium})
	out := s.Score(req, Candidate{UserID: 4, Age: 10, Activity: ActivityMedium})

	assert.InDelta(t, 1.0, mid.Age, 1e-9)
	assert.InDelta(t, 1.0/3, edge.Age, 1e-9)
	assert.Greater(t, mid.Total, edge.Total)

	assert.False(t, out.InBounds)
	assert.Equal(t, 0.0, out.Total)
}

func TestScore_DistanceComponent(t *testing.T) {
	s := NewScorer(DefaultWeights)
	home := &Location{Latitude: 40.0, Longitude: -74.0}
	req := Requester{UserID: 1, Location: home, Preferences: prefs(0, 20, 50, ActivityLow)}

	near := s.Score(req, Candidate{UserID: 2, Age: 10, Location: &Location{Latitude: 40.01, Longitude: -74.0}, Activity: ActivityLow})
	far := s.Score(req, Candidate{UserID: 3, Age: 10, Location: &Location{Latitude: 41.0, Longitude: -74.0}, Activity: ActivityLow})
	unknown := s.Score(req, Candidate{UserID: 4, Age: 10, Activity: ActivityLow})

	assert.True(t, near.InBounds)
	assert.Greater(t, near.Distance, 0.97)
	assert.False(t, far.InBounds, "111km is beyond a 50km radius")
	assert.Equal(t, 0.0, far.Total)
	assert.Equal(t, unknownDistanceScore, unknown.Distance)
	assert.True(t, unknown.InBounds)
}

func TestScore_ActivityComponent(t *testing.T) {
	tests := []struct {
		want, have ActivityLevel
		score      float64
	}{
		{ActivityMedium, ActivityMedium, 1},
		{ActivityMedium, ActivityHigh, 0.5},
		{ActivityLow, ActivityMedium, 0.5},
		{ActivityLow, ActivityHigh, 0},
		{ActivityLow, ActivityLevel("sleepy"), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.score, activityScore(tt.want, tt.have), "%s vs %s", tt.want, tt.have)
	}
}

func TestScore_BoundedAndPure(t *testing.T) {
	s := NewScorer(DefaultWeights)
	req := Requester{UserID: 1, Location: &Location{Latitude: 0, Longitude: 0}, Preferences: prefs(0, 20, 100, ActivityHigh)}
	c := Candidate{UserID: 2, Age: 7, Location: &Location{Latitude: 0.2, Longitude: 0.1}, Activity: ActivityMedium}

	first := s.Score(req, c)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(req, c))
	}
	assert.GreaterOrEqual(t, first.Total, 0.0)
	assert.LessOrEqual(t, first.Total, 1.0)
}

func TestNewScorer_ZeroWeightsFallBack(t *testing.T) {
	assert.Equal(t, DefaultWeights, NewScorer(Weights{}).weights)
}

func TestScore_InvertedAgeRange(t *testing.T) {
	s := NewScorer(DefaultWeights)
	req := Requester{UserID: 1, Preferences: prefs(8, 3, 10, ActivityLow)}
	got := s.Score(req, Candidate{UserID: 2, Age: 5, Activity: ActivityLow})
	assert.False(t, got.InBounds)
}

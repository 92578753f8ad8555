package recommend

import (
	"math"

	"github.com/oggyb/pupmatch/internal/geo"
)

// Weights controls how much each factor contributes to the total score.
// They are normalised by their sum, so only ratios matter.
type Weights struct {
	Age      float64
	Distance float64
	Activity float64
}

// DefaultWeights favours age and distance equally over activity.
var DefaultWeights = Weights{Age: 0.4, Distance: 0.4, Activity: 0.2}

// unknownDistanceScore is used when either side has no location.
const unknownDistanceScore = 0.5

// Score is the breakdown of a compatibility score. Total is in [0,1].
// InBounds is false when the candidate is outside the requester's age or
// distance range; Total is then 0.
type Score struct {
	Total    float64
	Age      float64
	Distance float64
	Activity float64
	InBounds bool
}

// Scorer computes compatibility scores. It is a pure value type with no I/O.
type Scorer struct {
	weights Weights
}

// NewScorer returns a Scorer, falling back to DefaultWeights when w sums to zero.
func NewScorer(w Weights) Scorer {
	if w.Age+w.Distance+w.Activity <= 0 {
		w = DefaultWeights
	}
	return Scorer{weights: w}
}

// Score rates candidate c for requester r.
//
// Components:
//   - age: 1 at the midpoint of [MinAge,MaxAge], falling linearly to 1/(half+1)
//     at the edges; 0 outside the range.
//   - distance: 1 − d/MaxDistanceKm inside the radius, 0 beyond it,
//     0.5 when either location is unknown.
//   - activity: 1 for the same level, 0.5 for adjacent, 0 for opposite or unknown.
func (s Scorer) Score(r Requester, c Candidate) Score {
	p := r.Preferences
	out := Score{InBounds: true}

	out.Age = ageScore(c.Age, p.MinAge, p.MaxAge)
	if c.Age < p.MinAge || c.Age > p.MaxAge {
		out.InBounds = false
	}

	if r.Location != nil && c.Location != nil && p.MaxDistanceKm > 0 {
		d := geo.DistanceKm(r.Location.Latitude, r.Location.Longitude, c.Location.Latitude, c.Location.Longitude)
		if d > p.MaxDistanceKm {
			out.InBounds = false
		} else {
			out.Distance = 1 - d/p.MaxDistanceKm
		}
	} else {
		out.Distance = unknownDistanceScore
	}

	out.Activity = activityScore(p.Activity, c.Activity)

	if !out.InBounds {
		return out
	}

	w := s.weights
	sum := w.Age + w.Distance + w.Activity
	total := (w.Age*out.Age + w.Distance*out.Distance + w.Activity*out.Activity) / sum
	out.Total = clamp01(total)
	return out
}

func ageScore(age, minAge, maxAge int) float64 {
	if maxAge < minAge || age < minAge || age > maxAge {
		return 0
	}
	mid := float64(minAge+maxAge) / 2
	half := float64(maxAge-minAge) / 2
	return 1 - math.Abs(float64(age)-mid)/(half+1)
}

func activityScore(want, have ActivityLevel) float64 {
	w, ok1 := want.rank()
	h, ok2 := have.rank()
	if !ok1 || !ok2 {
		return 0
	}
	switch diff := w - h; {
	case diff == 0:
		return 1
	case diff == 1 || diff == -1:
		return 0.5
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	}
	return v
}

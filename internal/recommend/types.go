// Package recommend builds ordered recommendation lists: it scores candidates
// against a requester's preferences, drops candidates that must never be shown,
// and ranks what remains.
package recommend

import (
	"context"
	"time"
)

// ActivityLevel is the energy level a profile prefers or exhibits.
type ActivityLevel string

const (
	ActivityLow    ActivityLevel = "low"
	ActivityMedium ActivityLevel = "medium"
	ActivityHigh   ActivityLevel = "high"
)

// rank orders activity levels so adjacency can be computed.
func (a ActivityLevel) rank() (int, bool) {
	switch a {
	case ActivityLow:
		return 0, true
	case ActivityMedium:
		return 1, true
	case ActivityHigh:
		return 2, true
	}
	return 0, false
}

// Valid reports whether a is a known activity level.
func (a ActivityLevel) Valid() bool {
	_, ok := a.rank()
	return ok
}

// Preferences are the requester-side matching constraints, already
// normalised to kilometers.
type Preferences struct {
	MinAge        int
	MaxAge        int
	MaxDistanceKm float64
	Activity      ActivityLevel
}

// Location is an optional WGS84 point.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Requester is the user recommendations are generated for.
type Requester struct {
	UserID      uint64
	Location    *Location
	Preferences Preferences
}

// Candidate is a profile considered for a requester.
type Candidate struct {
	UserID   uint64
	Age      int
	Location *Location
	Activity ActivityLevel
}

// Entry is one ranked recommendation. Entries are recomputed, never updated
// in place, and only live in the cache.
type Entry struct {
	CandidateID uint64    `json:"candidate_id"`
	Score       float64   `json:"score"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ProfileSource supplies the requester's profile and a distance-bounded
// candidate pool. Spatial indexing lives behind this interface.
type ProfileSource interface {
	Requester(ctx context.Context, userID uint64) (Requester, error)
	Pool(ctx context.Context, req Requester, limit int) ([]Candidate, error)
}

// DecisionSource is the authoritative decision store used for exclusion.
type DecisionSource interface {
	// DecidedTargets returns every user the actor has liked or passed.
	DecidedTargets(ctx context.Context, actorID uint64) ([]uint64, error)
	// PassedBy returns every user who passed on userID.
	PassedBy(ctx context.Context, userID uint64) ([]uint64, error)
}

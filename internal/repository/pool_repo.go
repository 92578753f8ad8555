package repository

import (
	"context"
	"errors"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/geo"
	"github.com/oggyb/pupmatch/internal/recommend"
)

// DefaultPreferences apply to profiles that never saved a preference set.
var DefaultPreferences = db.Preferences{
	MinAge:        0,
	MaxAge:        20,
	MaxDistance:   25,
	ActivityLevel: string(recommend.ActivityMedium),
	DistanceUnit:  string(geo.Miles),
}

// PoolRepository is the candidate pool source for the recommendation
// generator. Candidates are pre-filtered in SQL by age range, a lat/lon
// bounding box and the requester's decisions, then refined with the
// haversine distance.
type PoolRepository struct {
	db   *gorm.DB
	opts PoolOptions
}

// PoolOptions tunes a PoolRepository.
type PoolOptions struct {
	// MaxRadiusKm caps every pool query; 0 means no cap.
	MaxRadiusKm float64
	// ExcludePassedBy also leaves out users who passed on the requester.
	ExcludePassedBy bool
}

func NewPoolRepository(database *gorm.DB, opts PoolOptions) *PoolRepository {
	return &PoolRepository{db: database, opts: opts}
}

var _ recommend.ProfileSource = (*PoolRepository)(nil)

// Requester loads userID's profile as a recommendation requester.
func (r *PoolRepository) Requester(ctx context.Context, userID uint64) (recommend.Requester, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).
		Preload("Preferences").
		Where("user_id = ?", userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return recommend.Requester{}, svcErr.NotFound("profile for user %d", userID)
	}
	if err != nil {
		return recommend.Requester{}, err
	}

	prefs := DefaultPreferences
	if p.Preferences != nil {
		prefs = *p.Preferences
	}

	req := recommend.Requester{
		UserID: userID,
		Preferences: recommend.Preferences{
			MinAge:        prefs.MinAge,
			MaxAge:        prefs.MaxAge,
			MaxDistanceKm: geo.ToKilometers(prefs.MaxDistance, geo.Unit(prefs.DistanceUnit)),
			Activity:      recommend.ActivityLevel(prefs.ActivityLevel),
		},
	}
	if p.Latitude != nil && p.Longitude != nil {
		req.Location = &recommend.Location{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}
	return req, nil
}

type poolRow struct {
	UserID        uint64
	Age           int
	Latitude      *float64
	Longitude     *float64
	ActivityLevel *string
}

// Pool returns up to limit active candidates for req that req has not
// decided on yet. Candidates closest to the middle of the age range come
// first, then by user id. When the requester has a location only located
// candidates inside the search radius are returned.
//
// The decision checks here only keep decided users from using up the limit;
// the exclusion filter remains the authority.
func (r *PoolRepository) Pool(ctx context.Context, req recommend.Requester, limit int) ([]recommend.Candidate, error) {
	if limit <= 0 {
		return []recommend.Candidate{}, nil
	}

	q := r.db.WithContext(ctx).
		Table("profiles p").
		Select("p.user_id, p.age, p.latitude, p.longitude, pr.activity_level").
		Joins("JOIN users u ON u.id = p.user_id").
		Joins("LEFT JOIN preferences pr ON pr.profile_id = p.id").
		Where("p.user_id <> ? AND u.active = ?", req.UserID, true).
		Where("p.age BETWEEN ? AND ?", req.Preferences.MinAge, req.Preferences.MaxAge).
		Where("NOT EXISTS (SELECT 1 FROM decisions d WHERE d.actor_id = ? AND d.recipient_id = p.user_id)", req.UserID)
	if r.opts.ExcludePassedBy {
		q = q.Where("NOT EXISTS (SELECT 1 FROM decisions d WHERE d.actor_id = p.user_id AND d.recipient_id = ? AND d.liked = ?)", req.UserID, false)
	}

	radius := r.radius(req)
	if req.Location != nil {
		box := geo.BoundingBox(req.Location.Latitude, req.Location.Longitude, radius)
		q = q.Where("p.latitude BETWEEN ? AND ? AND p.longitude BETWEEN ? AND ?",
			box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	}
	q = q.Order(clause.OrderBy{Expression: clause.Expr{
		SQL:  "ABS(2 * p.age - ?), p.user_id",
		Vars: []any{req.Preferences.MinAge + req.Preferences.MaxAge},
	}})

	out := make([]recommend.Candidate, 0, limit)
	// box corners fall outside the radius, so keep reading until limit
	// candidates survive or the rows run out
	for offset := 0; len(out) < limit; offset += limit {
		var rows []poolRow
		if err := q.Session(&gorm.Session{}).Offset(offset).Limit(limit).Scan(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			if c, ok := r.candidate(req, radius, row); ok && len(out) < limit {
				out = append(out, c)
			}
		}
		if len(rows) < limit {
			break
		}
	}
	return out, nil
}

func (r *PoolRepository) candidate(req recommend.Requester, radius float64, row poolRow) (recommend.Candidate, bool) {
	c := recommend.Candidate{
		UserID:   row.UserID,
		Age:      row.Age,
		Activity: recommend.ActivityMedium,
	}
	if row.ActivityLevel != nil {
		c.Activity = recommend.ActivityLevel(*row.ActivityLevel)
	}
	if row.Latitude != nil && row.Longitude != nil {
		c.Location = &recommend.Location{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	if req.Location == nil {
		return c, true
	}
	if c.Location == nil {
		return c, false
	}
	d := geo.DistanceKm(req.Location.Latitude, req.Location.Longitude, c.Location.Latitude, c.Location.Longitude)
	return c, d <= radius
}

func (r *PoolRepository) radius(req recommend.Requester) float64 {
	radius := req.Preferences.MaxDistanceKm
	if r.opts.MaxRadiusKm > 0 {
		radius = math.Min(radius, r.opts.MaxRadiusKm)
	}
	return radius
}

// Package profile manages the data recommendations are computed from:
// profiles, photos, prompts, matching preferences and favourite locations.
package profile

import (
	"context"
	"strconv"

	"github.com/oggyb/pupmatch/internal/app"
	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/geo"
	"github.com/oggyb/pupmatch/internal/recommend"
	"github.com/oggyb/pupmatch/internal/repository"
	"github.com/oggyb/pupmatch/internal/rpc"
)

// Default preference values for profiles created without any.
const (
	DefaultMinAge        = 0
	DefaultMaxAge        = 20
	DefaultMaxDistance   = 25
	DefaultActivityLevel = recommend.ActivityMedium
	DefaultDistanceUnit  = geo.Miles
)

// Service implements the Profile gRPC API. Every call acts on the caller's
// own profile; only GetProfile can read someone else's.
type Service struct {
	appCtx    *app.AppContext
	profiles  *repository.ProfileRepository
	locations *repository.LocationRepository
}

func NewProfileService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		profiles:  repository.NewProfileRepository(appCtx.DB),
		locations: repository.NewLocationRepository(appCtx.DB),
	}
}

// CreateProfile creates the caller's profile with its initial 2–6 photos.
// A second profile for the same user is rejected with AlreadyExists.
func (s *Service) CreateProfile(ctx context.Context, req *CreateProfileRequest) (*Profile, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, svcErr.Map(err)
	}

	p := &db.Profile{
		UserID:    userID,
		Name:      req.Name,
		Age:       req.Age,
		Bio:       req.Bio,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}
	for _, url := range req.PhotoURLs {
		p.Photos = append(p.Photos, db.Photo{URL: url})
	}
	for _, pr := range req.Prompts {
		p.Prompts = append(p.Prompts, db.Prompt{Question: pr.Question, Answer: pr.Answer})
	}
	prefs := defaultPreferences()
	if req.Preferences != nil {
		prefs = toPreferences(*req.Preferences)
	}
	p.Preferences = &prefs

	if err := s.profiles.Create(ctx, p); err != nil {
		return nil, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("profile created", "user_id", userID, "photos", len(p.Photos))
	return s.load(ctx, userID)
}

// GetProfile returns a profile with photos and prompts in display order.
func (s *Service) GetProfile(ctx context.Context, req *GetProfileRequest) (*Profile, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if req.UserID != "" {
		if userID, err = rpc.ParseID("user_id", req.UserID); err != nil {
			return nil, err
		}
	}
	return s.load(ctx, userID)
}

// UpdateProfile applies a partial update. Moving the profile drops the
// caller's cached recommendations since every distance changes.
func (s *Service) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*Profile, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, svcErr.Map(err)
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Age != nil {
		fields["age"] = *req.Age
	}
	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}
	if req.Latitude != nil {
		fields["latitude"] = *req.Latitude
		fields["longitude"] = *req.Longitude
	}
	if err := s.profiles.Update(ctx, userID, fields); err != nil {
		return nil, svcErr.Map(err)
	}

	if req.Prompts != nil {
		prompts := make([]db.Prompt, 0, len(*req.Prompts))
		for _, pr := range *req.Prompts {
			prompts = append(prompts, db.Prompt{Question: pr.Question, Answer: pr.Answer})
		}
		if err := s.profiles.ReplacePrompts(ctx, userID, prompts); err != nil {
			return nil, svcErr.Map(err)
		}
	}

	if req.Latitude != nil {
		s.appCtx.Recommendations.Invalidate(ctx, userID)
	}
	return s.load(ctx, userID)
}

// DeleteProfile removes the caller's profile and everything it owns.
func (s *Service) DeleteProfile(ctx context.Context, _ *DeleteProfileRequest) (*DeleteProfileResponse, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.profiles.Delete(ctx, userID); err != nil {
		return nil, svcErr.Map(err)
	}
	s.appCtx.Recommendations.Invalidate(ctx, userID)
	s.appCtx.Logger.Info("profile deleted", "user_id", userID)
	return &DeleteProfileResponse{}, nil
}

// SetPreferences replaces the caller's matching preferences and drops the
// cached recommendation list built from the old ones.
func (s *Service) SetPreferences(ctx context.Context, req *PreferencesInput) (*Preferences, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}

	prefs := toPreferences(*req)
	if err := s.profiles.UpsertPreferences(ctx, userID, prefs); err != nil {
		return nil, svcErr.Map(err)
	}
	s.appCtx.Recommendations.Invalidate(ctx, userID)
	out := fromPreferences(prefs)
	return &out, nil
}

func (s *Service) AddPhoto(ctx context.Context, req *AddPhotoRequest) (*Photo, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	ph, err := s.profiles.AddPhoto(ctx, userID, req.URL)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &Photo{ID: ph.ID, URL: ph.URL, Position: ph.Position}, nil
}

// DeletePhoto removes a photo; the last two photos cannot be removed.
func (s *Service) DeletePhoto(ctx context.Context, req *DeletePhotoRequest) (*PhotosResponse, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.profiles.DeletePhoto(ctx, userID, req.PhotoID); err != nil {
		return nil, svcErr.Map(err)
	}
	photos, err := s.profiles.Photos(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &PhotosResponse{Photos: fromPhotos(photos)}, nil
}

// ReorderPhotos sets the display order; photo_ids must list every photo once.
func (s *Service) ReorderPhotos(ctx context.Context, req *ReorderPhotosRequest) (*PhotosResponse, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	photos, err := s.profiles.ReorderPhotos(ctx, userID, req.PhotoIDs)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &PhotosResponse{Photos: fromPhotos(photos)}, nil
}

func (s *Service) AddPrompt(ctx context.Context, req *AddPromptRequest) (*Prompt, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	pr, err := s.profiles.AddPrompt(ctx, userID, req.Question, req.Answer)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &Prompt{ID: pr.ID, Question: pr.Question, Answer: pr.Answer, Position: pr.Position}, nil
}

func (s *Service) DeletePrompt(ctx context.Context, req *DeletePromptRequest) (*Empty, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.profiles.DeletePrompt(ctx, userID, req.PromptID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &Empty{}, nil
}

func (s *Service) AddFavoriteLocation(ctx context.Context, req *AddFavoriteLocationRequest) (*FavoriteLocation, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	loc := &db.FavoriteLocation{
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if err := s.locations.Add(ctx, loc); err != nil {
		return nil, svcErr.Map(err)
	}
	out := fromLocation(*loc)
	return &out, nil
}

func (s *Service) ListFavoriteLocations(ctx context.Context, _ *ListFavoriteLocationsRequest) (*FavoriteLocationsResponse, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	locs, err := s.locations.List(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp := &FavoriteLocationsResponse{Locations: make([]FavoriteLocation, 0, len(locs))}
	for _, l := range locs {
		resp.Locations = append(resp.Locations, fromLocation(l))
	}
	return resp, nil
}

func (s *Service) DeleteFavoriteLocation(ctx context.Context, req *DeleteFavoriteLocationRequest) (*Empty, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.locations.Delete(ctx, userID, req.LocationID); err != nil {
		return nil, svcErr.Map(err)
	}
	return &Empty{}, nil
}

func (s *Service) load(ctx context.Context, userID uint64) (*Profile, error) {
	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	out := &Profile{
		UserID:    strconv.FormatUint(p.UserID, 10),
		Name:      p.Name,
		Age:       p.Age,
		Bio:       p.Bio,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Photos:    fromPhotos(p.Photos),
		Prompts:   make([]Prompt, 0, len(p.Prompts)),
	}
	for _, pr := range p.Prompts {
		out.Prompts = append(out.Prompts, Prompt{ID: pr.ID, Question: pr.Question, Answer: pr.Answer, Position: pr.Position})
	}
	if p.Preferences != nil {
		prefs := fromPreferences(*p.Preferences)
		out.Preferences = &prefs
	}
	return out, nil
}

func defaultPreferences() db.Preferences {
	return db.Preferences{
		MinAge:        DefaultMinAge,
		MaxAge:        DefaultMaxAge,
		MaxDistance:   DefaultMaxDistance,
		ActivityLevel: string(DefaultActivityLevel),
		DistanceUnit:  string(DefaultDistanceUnit),
	}
}

func toPreferences(in PreferencesInput) db.Preferences {
	prefs := db.Preferences{
		MinAge:        in.MinAge,
		MaxAge:        in.MaxAge,
		MaxDistance:   in.MaxDistance,
		ActivityLevel: in.ActivityLevel,
		DistanceUnit:  in.DistanceUnit,
	}
	if prefs.ActivityLevel == "" {
		prefs.ActivityLevel = string(DefaultActivityLevel)
	}
	if prefs.DistanceUnit == "" {
		prefs.DistanceUnit = string(DefaultDistanceUnit)
	}
	return prefs
}

func fromPreferences(p db.Preferences) Preferences {
	return Preferences{
		MinAge:        p.MinAge,
		MaxAge:        p.MaxAge,
		MaxDistance:   p.MaxDistance,
		ActivityLevel: p.ActivityLevel,
		DistanceUnit:  p.DistanceUnit,
	}
}

func fromPhotos(photos []db.Photo) []Photo {
	out := make([]Photo, 0, len(photos))
	for _, ph := range photos {
		out = append(out, Photo{ID: ph.ID, URL: ph.URL, Position: ph.Position})
	}
	return out
}

func fromLocation(l db.FavoriteLocation) FavoriteLocation {
	return FavoriteLocation{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		Latitude:    l.Latitude,
		Longitude:   l.Longitude,
	}
}

package profile

// Messages of the Profile API. Validation rules live on the request structs
// and are checked by validateRequest before any store access.

type PromptInput struct {
	Question string `json:"question" validate:"required,max=500"`
	Answer   string `json:"answer" validate:"required,max=1000"`
}

type PreferencesInput struct {
	MinAge        int     `json:"min_age" validate:"min=0,max=20"`
	MaxAge        int     `json:"max_age" validate:"min=0,max=20,gtefield=MinAge"`
	MaxDistance   float64 `json:"max_distance" validate:"gt=0"`
	ActivityLevel string  `json:"activity_level" validate:"omitempty,activity"`
	DistanceUnit  string  `json:"distance_unit" validate:"omitempty,distanceunit"`
}

type CreateProfileRequest struct {
	Name        string            `json:"name" validate:"required,max=100"`
	Age         int               `json:"age" validate:"min=0,max=20"`
	Bio         string            `json:"bio" validate:"required,max=2000"`
	Latitude    *float64          `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64          `json:"longitude,omitempty" validate:"omitempty,longitude"`
	PhotoURLs   []string          `json:"photo_urls" validate:"min=2,max=6,dive,required,url"`
	Prompts     []PromptInput     `json:"prompts,omitempty" validate:"dive"`
	Preferences *PreferencesInput `json:"preferences,omitempty"`
}

type GetProfileRequest struct {
	// UserID selects another user's profile; empty means the caller's.
	UserID string `json:"user_id,omitempty"`
}

// UpdateProfileRequest is a partial update: nil fields are left unchanged.
// Prompts, when set, replace the whole list.
type UpdateProfileRequest struct {
	Name      *string        `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Age       *int           `json:"age,omitempty" validate:"omitempty,min=0,max=20"`
	Bio       *string        `json:"bio,omitempty" validate:"omitempty,min=1,max=2000"`
	Latitude  *float64       `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64       `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Prompts   *[]PromptInput `json:"prompts,omitempty" validate:"omitempty,dive"`
}

type DeleteProfileRequest struct{}

type DeleteProfileResponse struct{}

type Photo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

type Prompt struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Position int    `json:"position"`
}

type Preferences struct {
	MinAge        int     `json:"min_age"`
	MaxAge        int     `json:"max_age"`
	MaxDistance   float64 `json:"max_distance"`
	ActivityLevel string  `json:"activity_level"`
	DistanceUnit  string  `json:"distance_unit"`
}

type Profile struct {
	UserID      string       `json:"user_id"`
	Name        string       `json:"name"`
	Age         int          `json:"age"`
	Bio         string       `json:"bio"`
	Latitude    *float64     `json:"latitude,omitempty"`
	Longitude   *float64     `json:"longitude,omitempty"`
	Photos      []Photo      `json:"photos"`
	Prompts     []Prompt     `json:"prompts"`
	Preferences *Preferences `json:"preferences,omitempty"`
}

type AddPhotoRequest struct {
	URL string `json:"url" validate:"required,url,max=512"`
}

type DeletePhotoRequest struct {
	PhotoID string `json:"photo_id" validate:"required,uuid"`
}

type ReorderPhotosRequest struct {
	PhotoIDs []string `json:"photo_ids" validate:"min=2,max=6,dive,uuid"`
}

type PhotosResponse struct {
	Photos []Photo `json:"photos"`
}

type AddPromptRequest struct {
	PromptInput
}

type DeletePromptRequest struct {
	PromptID string `json:"prompt_id" validate:"required,uuid"`
}

type Empty struct{}

type FavoriteLocation struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type AddFavoriteLocationRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description,omitempty" validate:"max=500"`
	Latitude    float64 `json:"latitude" validate:"latitude"`
	Longitude   float64 `json:"longitude" validate:"longitude"`
}

type ListFavoriteLocationsRequest struct{}

type FavoriteLocationsResponse struct {
	Locations []FavoriteLocation `json:"locations"`
}

type DeleteFavoriteLocationRequest struct {
	LocationID string `json:"location_id" validate:"required,uuid"`
}

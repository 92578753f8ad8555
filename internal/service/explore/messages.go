package explore

// Request and response messages of the Explore API. User ids travel as
// decimal strings; timestamps as unix milliseconds.

type GetRecommendationsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type Recommendation struct {
	UserID          string  `json:"user_id"`
	Score           float64 `json:"score"`
	GeneratedAtUnix uint64  `json:"generated_at_unix"`
}

type GetRecommendationsResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
	// Source is local, shared, computed, last_known or empty.
	Source   string `json:"source"`
	Degraded bool   `json:"degraded,omitempty"`
}

type PutDecisionRequest struct {
	RecipientUserID string `json:"recipient_user_id"`
	LikedRecipient  bool   `json:"liked_recipient"`
}

type PutDecisionResponse struct {
	MutualLikes bool   `json:"mutual_likes"`
	MatchID     string `json:"match_id,omitempty"`
}

type UnlikeRequest struct {
	RecipientUserID string `json:"recipient_user_id"`
}

type UnlikeResponse struct {
	RemovedMatchID string `json:"removed_match_id,omitempty"`
}

type UnmatchRequest struct {
	UserID string `json:"user_id"`
}

type UnmatchResponse struct {
	MatchID string `json:"match_id"`
}

type ListLikedYouRequest struct {
	PaginationToken *string `json:"pagination_token,omitempty"`
}

type Liker struct {
	ActorID       string `json:"actor_id"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

type ListLikedYouResponse struct {
	Likers              []Liker `json:"likers"`
	NextPaginationToken *string `json:"next_pagination_token,omitempty"`
}

type CountLikedYouRequest struct{}

type CountLikedYouResponse struct {
	Count uint64 `json:"count"`
}

type ListMatchesRequest struct {
	PaginationToken *string `json:"pagination_token,omitempty"`
}

type MatchSummary struct {
	MatchID       string `json:"match_id"`
	UserID        string `json:"user_id"`
	CreatedAtUnix uint64 `json:"created_at_unix"`
}

type ListMatchesResponse struct {
	Matches             []MatchSummary `json:"matches"`
	NextPaginationToken *string        `json:"next_pagination_token,omitempty"`
}

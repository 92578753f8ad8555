package explore

import (
	"context"
	"strconv"

	"github.com/oggyb/pupmatch/internal/app"
	"github.com/oggyb/pupmatch/internal/db"
	svcErr "github.com/oggyb/pupmatch/internal/errors"
	"github.com/oggyb/pupmatch/internal/repository"
	"github.com/oggyb/pupmatch/internal/rpc"
)

// pageSize is the number of likers or matches returned per page.
const pageSize = 5

// Service implements the Explore gRPC API.
// It contains the business logic on top of the engine, repository and cache
// layers. The caller is always the user named by the x-user-id header.
type Service struct {
	appCtx       *app.AppContext
	decisionRepo *repository.DecisionRepository
	matchRepo    *repository.MatchRepository
}

// NewExploreService creates a new Explore service with dependencies from AppContext.
func NewExploreService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:       appCtx,
		decisionRepo: repository.NewDecisionRepository(appCtx.DB),
		matchRepo:    repository.NewMatchRepository(appCtx.DB),
	}
}

// GetRecommendations returns the caller's ranked candidates.
//
// The list comes from the two-tier cache or a fresh generation. When
// generation fails the response is marked degraded and carries the last
// known list or nothing; it never fails because of the cache.
func (s *Service) GetRecommendations(ctx context.Context, req *GetRecommendationsRequest) (*GetRecommendationsResponse, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, svcErr.InvalidArgument("limit must not be negative")
	}

	page, err := s.appCtx.Feed.Recommendations(ctx, userID, req.Limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &GetRecommendationsResponse{
		Recommendations: make([]Recommendation, 0, len(page.Entries)),
		Source:          string(page.Source),
		Degraded:        page.Degraded,
	}
	for _, e := range page.Entries {
		resp.Recommendations = append(resp.Recommendations, Recommendation{
			UserID:          strconv.FormatUint(e.CandidateID, 10),
			Score:           e.Score,
			GeneratedAtUnix: uint64(e.GeneratedAt.UnixMilli()),
		})
	}
	return resp, nil
}

// PutDecision records a like or pass and reports whether it produced a
// mutual like.
//
// Behavior:
//   - Validates the recipient id (must differ from the caller).
//   - Likes and passes go through the match engine, which creates or removes
//     the match atomically with the decision.
//   - Deciding on a blocked (unmatched) pair fails with FailedPrecondition.
//
// Example:
//
//	svc.PutDecision(ctx, &PutDecisionRequest{RecipientUserID: "2", LikedRecipient: true})
func (s *Service) PutDecision(ctx context.Context, req *PutDecisionRequest) (*PutDecisionResponse, error) {
	actorID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	recipientID, err := rpc.ParseID("recipient_user_id", req.RecipientUserID)
	if err != nil {
		return nil, err
	}
	if actorID == recipientID {
		return nil, svcErr.InvalidArgument("cannot decide on yourself")
	}

	s.appCtx.Logger.Debug("PutDecision called", "actor", actorID, "recipient", recipientID, "liked", req.LikedRecipient)

	if !req.LikedRecipient {
		if _, err := s.appCtx.Engine.RecordPass(ctx, actorID, recipientID); err != nil {
			return nil, svcErr.Map(err)
		}
		return &PutDecisionResponse{}, nil
	}

	out, err := s.appCtx.Engine.RecordLike(ctx, actorID, recipientID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp := &PutDecisionResponse{}
	if out.Match != nil {
		resp.MutualLikes = true
		resp.MatchID = out.Match.ID
	}
	return resp, nil
}

// Unlike withdraws the caller's like on the recipient, dissolving a match
// it backed.
func (s *Service) Unlike(ctx context.Context, req *UnlikeRequest) (*UnlikeResponse, error) {
	actorID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	recipientID, err := rpc.ParseID("recipient_user_id", req.RecipientUserID)
	if err != nil {
		return nil, err
	}

	out, err := s.appCtx.Engine.Unlike(ctx, actorID, recipientID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	resp := &UnlikeResponse{}
	if out.RemovedMatch != nil {
		resp.RemovedMatchID = out.RemovedMatch.ID
	}
	return resp, nil
}

// Unmatch dissolves the caller's match with user_id. The pair is blocked
// afterwards and never recommended to either side again.
func (s *Service) Unmatch(ctx context.Context, req *UnmatchRequest) (*UnmatchResponse, error) {
	actorID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	otherID, err := rpc.ParseID("user_id", req.UserID)
	if err != nil {
		return nil, err
	}

	out, err := s.appCtx.Engine.Unmatch(ctx, actorID, otherID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &UnmatchResponse{MatchID: out.RemovedMatch.ID}, nil
}

// ListLikedYou returns all users who liked the caller.
//
// Behavior:
//   - Fetches likes for the caller via repository.GetLikers.
//   - Excludes users that the caller explicitly passed.
//   - Supports cursor-based pagination with paginationToken.
//   - Returns actor_id + timestamp pairs.
func (s *Service) ListLikedYou(ctx context.Context, req *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	recipientID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}
	s.appCtx.Logger.Debug("ListLikedYou called", "recipient", recipientID, "token", req.PaginationToken != nil)

	decisions, nextToken, err := s.decisionRepo.GetLikers(ctx, recipientID, req.PaginationToken, pageSize)
	if err != nil {
		s.appCtx.Logger.Error("GetLikers failed", "err", err)
		return nil, svcErr.Map(err)
	}

	resp := likersResponse(decisions, nextToken)
	s.appCtx.Logger.Debug("ListLikedYou result", "liker_count", len(resp.Likers), "has_next", nextToken != nil)
	return resp, nil
}

// ListNewLikedYou returns users who liked the caller but have not been
// liked back.
func (s *Service) ListNewLikedYou(ctx context.Context, req *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	recipientID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}

	decisions, nextToken, err := s.decisionRepo.GetNewLikers(ctx, recipientID, req.PaginationToken, pageSize)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return likersResponse(decisions, nextToken), nil
}

// CountLikedYou returns how many users liked the caller.
// Cache-first strategy:
//  1. Attempts to read the Redis counter (likes:count:userID).
//  2. On a miss or a Redis failure, counts in the DB.
//  3. Writes the DB count back with a 1h TTL.
//
// Decisions drop the counter, so a cached value is never ahead of the DB.
func (s *Service) CountLikedYou(ctx context.Context, _ *CountLikedYouRequest) (*CountLikedYouResponse, error) {
	recipientID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}

	n, found, err := s.appCtx.RedisCache.GetLikeCount(ctx, recipientID)
	if err != nil {
		s.appCtx.Logger.Warn("like count cache unavailable", "user_id", recipientID, "err", err)
	}
	if found {
		return &CountLikedYouResponse{Count: uint64(n)}, nil
	}

	count, err := s.decisionRepo.CountLikers(ctx, recipientID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	_ = s.appCtx.RedisCache.UpdateLikeCount(ctx, recipientID, count)

	return &CountLikedYouResponse{Count: uint64(count)}, nil
}

// ListMatches returns the caller's matches, newest first.
func (s *Service) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	userID, err := rpc.UserID(ctx)
	if err != nil {
		return nil, err
	}

	matches, nextToken, err := s.matchRepo.ListForUser(ctx, userID, req.PaginationToken, pageSize)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &ListMatchesResponse{Matches: make([]MatchSummary, 0, len(matches)), NextPaginationToken: nextToken}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, MatchSummary{
			MatchID:       m.ID,
			UserID:        strconv.FormatUint(m.Other(userID), 10),
			CreatedAtUnix: uint64(m.CreatedAt.UnixMilli()),
		})
	}
	return resp, nil
}

func likersResponse(decisions []db.Decision, nextToken *string) *ListLikedYouResponse {
	resp := &ListLikedYouResponse{Likers: make([]Liker, 0, len(decisions)), NextPaginationToken: nextToken}
	for _, d := range decisions {
		resp.Likers = append(resp.Likers, Liker{
			ActorID:       strconv.FormatUint(d.ActorID, 10),
			UnixTimestamp: uint64(d.UpdatedAt.UnixMilli()),
		})
	}
	return resp
}

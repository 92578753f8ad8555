package explore

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/pupmatch/internal/app"
	"github.com/oggyb/pupmatch/internal/rpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pupmatch.explore.v1.ExploreService"

// ExploreServer is the server API for the Explore service.
type ExploreServer interface {
	GetRecommendations(context.Context, *GetRecommendationsRequest) (*GetRecommendationsResponse, error)
	PutDecision(context.Context, *PutDecisionRequest) (*PutDecisionResponse, error)
	Unlike(context.Context, *UnlikeRequest) (*UnlikeResponse, error)
	Unmatch(context.Context, *UnmatchRequest) (*UnmatchResponse, error)
	ListLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error)
	ListNewLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error)
	CountLikedYou(context.Context, *CountLikedYouRequest) (*CountLikedYouResponse, error)
	ListMatches(context.Context, *ListMatchesRequest) (*ListMatchesResponse, error)
}

// ServiceDesc describes the Explore service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExploreServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(ServiceName, "GetRecommendations", ExploreServer.GetRecommendations),
		rpc.Method(ServiceName, "PutDecision", ExploreServer.PutDecision),
		rpc.Method(ServiceName, "Unlike", ExploreServer.Unlike),
		rpc.Method(ServiceName, "Unmatch", ExploreServer.Unmatch),
		rpc.Method(ServiceName, "ListLikedYou", ExploreServer.ListLikedYou),
		rpc.Method(ServiceName, "ListNewLikedYou", ExploreServer.ListNewLikedYou),
		rpc.Method(ServiceName, "CountLikedYou", ExploreServer.CountLikedYou),
		rpc.Method(ServiceName, "ListMatches", ExploreServer.ListMatches),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "explore",
}

// Registrar ties the Explore service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Explore service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Explore service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, NewExploreService(r.appCtx))
}

// Client calls the Explore service. The caller identity must be set on ctx
// with rpc.OutgoingUser.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetRecommendations(ctx context.Context, req *GetRecommendationsRequest) (*GetRecommendationsResponse, error) {
	resp := new(GetRecommendationsResponse)
	return resp, rpc.Invoke(ctx, c.cc, ServiceName, "GetRecommendations", req, resp)
}

func (c *Client) PutDecision(ctx context.Context, req *PutDecisionRequest) (*PutDecisionResponse, error) {
	resp := new(PutDecisionResponse)
	return resp, rpc.Invoke(ctx, c.cc, ServiceName, "PutDecision", req, resp)
}

func (c *Client) Unmatch(ctx context.Context, req *UnmatchRequest) (*UnmatchResponse, error) {
	resp := new(UnmatchResponse)
	return resp, rpc.Invoke(ctx, c.cc, ServiceName, "Unmatch", req, resp)
}

func (c *Client) CountLikedYou(ctx context.Context) (*CountLikedYouResponse, error) {
	resp := new(CountLikedYouResponse)
	return resp, rpc.Invoke(ctx, c.cc, ServiceName, "CountLikedYou", &CountLikedYouRequest{}, resp)
}

func (c *Client) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	resp := new(ListMatchesResponse)
	return resp, rpc.Invoke(ctx, c.cc, ServiceName, "ListMatches", req, resp)
}

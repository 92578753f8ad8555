package profile

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/pupmatch/internal/app"
	"github.com/oggyb/pupmatch/internal/rpc"
)

const ServiceName = "pupmatch.profile.v1.ProfileService"

// ProfileServer is the server API for the Profile service.
type ProfileServer interface {
	CreateProfile(context.Context, *CreateProfileRequest) (*Profile, error)
	GetProfile(context.Context, *GetProfileRequest) (*Profile, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*Profile, error)
	DeleteProfile(context.Context, *DeleteProfileRequest) (*DeleteProfileResponse, error)
	SetPreferences(context.Context, *PreferencesInput) (*Preferences, error)
	AddPhoto(context.Context, *AddPhotoRequest) (*Photo, error)
	DeletePhoto(context.Context, *DeletePhotoRequest) (*PhotosResponse, error)
	ReorderPhotos(context.Context, *ReorderPhotosRequest) (*PhotosResponse, error)
	AddPrompt(context.Context, *AddPromptRequest) (*Prompt, error)
	DeletePrompt(context.Context, *DeletePromptRequest) (*Empty, error)
	AddFavoriteLocation(context.Context, *AddFavoriteLocationRequest) (*FavoriteLocation, error)
	ListFavoriteLocations(context.Context, *ListFavoriteLocationsRequest) (*FavoriteLocationsResponse, error)
	DeleteFavoriteLocation(context.Context, *DeleteFavoriteLocationRequest) (*Empty, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProfileServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Method(ServiceName, "CreateProfile", ProfileServer.CreateProfile),
		rpc.Method(ServiceName, "GetProfile", ProfileServer.GetProfile),
		rpc.Method(ServiceName, "UpdateProfile", ProfileServer.UpdateProfile),
		rpc.Method(ServiceName, "DeleteProfile", ProfileServer.DeleteProfile),
		rpc.Method(ServiceName, "SetPreferences", ProfileServer.SetPreferences),
		rpc.Method(ServiceName, "AddPhoto", ProfileServer.AddPhoto),
		rpc.Method(ServiceName, "DeletePhoto", ProfileServer.DeletePhoto),
		rpc.Method(ServiceName, "ReorderPhotos", ProfileServer.ReorderPhotos),
		rpc.Method(ServiceName, "AddPrompt", ProfileServer.AddPrompt),
		rpc.Method(ServiceName, "DeletePrompt", ProfileServer.DeletePrompt),
		rpc.Method(ServiceName, "AddFavoriteLocation", ProfileServer.AddFavoriteLocation),
		rpc.Method(ServiceName, "ListFavoriteLocations", ProfileServer.ListFavoriteLocations),
		rpc.Method(ServiceName, "DeleteFavoriteLocation", ProfileServer.DeleteFavoriteLocation),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "profile",
}

// Registrar ties the Profile service into the gRPC server.
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, NewProfileService(r.appCtx))
}

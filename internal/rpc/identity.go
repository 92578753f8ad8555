package rpc

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UserIDHeader carries the caller's user id, set by the identity
// collaborator in front of this service after verifying credentials.
const UserIDHeader = "x-user-id"

type userIDKey struct{}

// WithUserID returns ctx carrying the caller's user id.
func WithUserID(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID returns the caller's user id or an Unauthenticated status.
func UserID(ctx context.Context) (uint64, error) {
	if id, ok := ctx.Value(userIDKey{}).(uint64); ok && id != 0 {
		return id, nil
	}
	return 0, status.Error(codes.Unauthenticated, "missing caller identity")
}

// IdentityInterceptor copies x-user-id from the incoming metadata into the
// context. Calls without the header pass through; handlers that need a
// caller reject them through UserID.
func IdentityInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}
		vals := md.Get(UserIDHeader)
		if len(vals) == 0 {
			return handler(ctx, req)
		}
		id, err := strconv.ParseUint(vals[0], 10, 64)
		if err != nil || id == 0 {
			return nil, status.Error(codes.Unauthenticated, "x-user-id must be a positive integer")
		}
		return handler(WithUserID(ctx, id), req)
	}
}

// OutgoingUser attaches id as the caller identity on a client context.
func OutgoingUser(ctx context.Context, id uint64) context.Context {
	return metadata.AppendToOutgoingContext(ctx, UserIDHeader, strconv.FormatUint(id, 10))
}

// ParseID parses a decimal user id from a request field.
func ParseID(field, v string) (uint64, error) {
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a valid uint64", field)
	}
	return id, nil
}

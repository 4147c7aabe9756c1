package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	pb "github.com/dmitrijs2005/gophauth/internal/proto"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const principalKey ctxKey = "principal"

// protectedMethods need a valid access token in the access_token metadata.
var protectedMethods = map[string]struct{}{
	pb.FullMethod("Me"):            {},
	pb.FullMethod("UpdateProfile"): {},
}

func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

func accessTokenFrom(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
		return values[0]
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if _, ok := protectedMethods[info.FullMethod]; !ok {
		return handler(ctx, req)
	}

	accessToken := accessTokenFrom(ctx)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	p, err := s.users.Principal(ctx, accessToken)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrAccountNotFound):
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, common.ErrAccountDisabled):
		return nil, status.Error(codes.PermissionDenied, "account disabled")
	default:
		return nil, status.Error(codes.Internal, "internal error")
	}

	return handler(context.WithValue(ctx, principalKey, p), req)
}

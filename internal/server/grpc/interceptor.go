package grpc

import (
	"context"

	"github.com/dmitrijs2005/credengine/internal/common"
	"github.com/dmitrijs2005/credengine/internal/server/auth"
	"github.com/dmitrijs2005/credengine/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const callerKey ctxKey = "caller"

// publicMethods authenticate through the request itself and accept calls
// without an access token.
var publicMethods = map[string]bool{
	FullMethod(MethodPing):            true,
	FullMethod(MethodVerify):          true,
	FullMethod(MethodChangePassword):  true,
	FullMethod(MethodGetGlobalPolicy): true,
}

// CallerFromContext returns the caller attached by the interceptor, or
// models.Anonymous.
func CallerFromContext(ctx context.Context) models.Caller {
	if c, ok := ctx.Value(callerKey).(models.Caller); ok {
		return c
	}
	return models.Anonymous
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}

	if len(accessToken) == 0 {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	caller, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		s.logger.Warn(ctx, "rejected access token", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	ctx = context.WithValue(ctx, callerKey, caller)

	return handler(ctx, req)
}

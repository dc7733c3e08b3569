package grpc

import (
	"context"

	"github.com/muneebhashone/gqlauth/internal/server/authctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// identityInterceptor logs each call and, when the "authorization" metadata
// carries a valid token, the caller's id. Calls are never rejected here.
func (s *GRPCServer) identityInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	ec := &authctx.ExecutionContext{Mode: authctx.ModeAnonymous}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get("authorization"); len(values) > 0 && s.tokens != nil {
			if u := s.tokens.Verify(authctx.StripBearer(values[0])); u != nil {
				ec.User = u
				ec.Mode = authctx.ModeBearer
			}
		}
	}

	if ec.User != nil {
		s.logger.Debug(ctx, "grpc call", "method", info.FullMethod, "user_id", ec.User.ID)
	} else {
		s.logger.Debug(ctx, "grpc call", "method", info.FullMethod)
	}

	return handler(authctx.With(ctx, ec), req)
}

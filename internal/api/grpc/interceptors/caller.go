package interceptors

import (
	"context"

	grpcmeta "github.com/jamiebones/crowd-funding-begi-begi/internal/api/grpc/metadata"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/requestctx"
	"google.golang.org/grpc"
)

// VerifyFunc resolves a bearer token to a caller address.
type VerifyFunc func(token string) (string, error)

// CallerInterceptor authenticates the caller of every method not listed
// in public and stores the address in context. With a nil verify the
// caller is taken from the x-escrow-caller header, for local runs only.
func CallerInterceptor(verify VerifyFunc, public map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		caller, err := resolveCaller(ctx, verify)
		if err != nil && !public[info.FullMethod] {
			return nil, err
		}
		if caller != "" {
			ctx = requestctx.WithCaller(ctx, caller)
		}
		return handler(ctx, req)
	}
}

func resolveCaller(ctx context.Context, verify VerifyFunc) (string, error) {
	if verify == nil {
		caller := grpcmeta.CallerHintFromContext(ctx)
		if caller == "" {
			return "", apperrors.New(apperrors.CodeUnauthenticated, "caller header is required")
		}
		return caller, nil
	}
	token := grpcmeta.BearerTokenFromContext(ctx)
	if token == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}
	return verify(token)
}

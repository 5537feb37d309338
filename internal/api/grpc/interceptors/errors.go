// Package interceptors holds the unary interceptors shared by the escrow
// gRPC server.
package interceptors

import (
	"context"
	"log"

	grpcmeta "github.com/jamiebones/crowd-funding-begi-begi/internal/api/grpc/metadata"
	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorInterceptor converts domain errors returned by inner handlers into
// localized gRPC statuses. Internal failures are logged with the request ID
// and hidden from the client.
func ErrorInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		converted := apperrors.HandleError(err, grpcmeta.LocaleFromContext(ctx))
		if status.Code(converted) == codes.Internal {
			log.Printf("%s request %s: %v", info.FullMethod, grpcmeta.RequestIDFromContext(ctx), err)
		}
		return nil, converted
	}
}

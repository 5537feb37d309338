// Package metadata reads and writes the escrow gRPC request metadata.
package metadata

import (
	"context"
	"strings"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/id"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDHeader is the gRPC metadata key for request correlation IDs.
const RequestIDHeader = "x-escrow-request-id"

// LocaleHeader is the gRPC metadata key for the preferred error locale.
const LocaleHeader = "x-escrow-locale"

// AcceptLanguageHeader is honored when LocaleHeader is absent.
const AcceptLanguageHeader = "accept-language"

// AuthorizationHeader carries the caller bearer token.
const AuthorizationHeader = "authorization"

// CallerHeader names the caller directly when caller tokens are disabled.
const CallerHeader = "x-escrow-caller"

// contextKey stores metadata values in context.
type contextKey string

// requestIDContextKey stores the request ID in context.
const requestIDContextKey contextKey = "escrow-request-id"

// RequestIDFromContext returns the request ID stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey).(string)
	return value
}

// WithRequestID stores the request ID in context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// LocaleFromContext returns the caller's preferred locale from incoming
// metadata.
func LocaleFromContext(ctx context.Context) string {
	if locale := metadataValueFromIncomingContext(ctx, LocaleHeader); locale != "" {
		return locale
	}
	return metadataValueFromIncomingContext(ctx, AcceptLanguageHeader)
}

// BearerTokenFromContext returns the bearer token from incoming metadata.
func BearerTokenFromContext(ctx context.Context) string {
	value := metadataValueFromIncomingContext(ctx, AuthorizationHeader)
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// CallerHintFromContext returns the unauthenticated caller header.
func CallerHintFromContext(ctx context.Context) string {
	return strings.TrimSpace(metadataValueFromIncomingContext(ctx, CallerHeader))
}

// IsPrintableASCII reports whether a string contains only printable ASCII characters.
func IsPrintableASCII(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return false
		}
	}
	return true
}

// FirstMetadataValue returns the first printable ASCII metadata value for a key.
func FirstMetadataValue(md metadata.MD, key string) string {
	if len(md) == 0 {
		return ""
	}
	for mdKey, values := range md {
		if !strings.EqualFold(mdKey, key) {
			continue
		}
		for _, value := range values {
			if IsPrintableASCII(value) {
				return value
			}
		}
	}
	return ""
}

// UnaryServerInterceptor ensures every unary call carries a request ID and
// echoes it in the response headers.
func UnaryServerInterceptor(idGenerator func() (string, error)) grpc.UnaryServerInterceptor {
	if idGenerator == nil {
		idGenerator = id.NewID
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := metadataValueFromIncomingContext(ctx, RequestIDHeader)
		if requestID == "" {
			generatedID, err := idGenerator()
			if err != nil {
				return nil, status.Errorf(codes.Internal, "ensure request metadata: %v", err)
			}
			requestID = generatedID
		}
		ctx = WithRequestID(ctx, requestID)
		if err := grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)); err != nil {
			return nil, status.Errorf(codes.Internal, "set response metadata: %v", err)
		}
		return handler(ctx, req)
	}
}

func metadataValueFromIncomingContext(ctx context.Context, header string) string {
	if ctx == nil {
		return ""
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return FirstMetadataValue(md, header)
}

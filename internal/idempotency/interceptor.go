package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/requestctx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// KeyHeader is the gRPC metadata key carrying the client's idempotency key.
const KeyHeader = "idempotency-key"

// InterceptorConfig configures UnaryServerInterceptor.
type InterceptorConfig struct {
	Store Store
	TTL   time.Duration
	Clock func() time.Time
	// Methods lists the full method names that honor idempotency keys.
	Methods map[string]bool
	// NewResponse allocates the response message a stored record decodes into.
	NewResponse func(method string) proto.Message
}

// UnaryServerInterceptor executes keyed calls at most once per caller,
// method and key. Calls without a key pass through; failed calls release
// their key.
func UnaryServerInterceptor(cfg InterceptorConfig) grpc.UnaryServerInterceptor {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if cfg.Store == nil || !cfg.Methods[info.FullMethod] {
			return handler(ctx, req)
		}
		clientKey := keyFromIncomingContext(ctx)
		message, ok := req.(proto.Message)
		if clientKey == "" || !ok {
			return handler(ctx, req)
		}

		fingerprint, err := Fingerprint(message)
		if err != nil {
			return nil, err
		}
		key := scopedKey(info.FullMethod, requestctx.CallerFromContext(ctx), clientKey)
		existing, claimed, err := cfg.Store.Claim(ctx, key, Record{Fingerprint: fingerprint, StoredAt: cfg.Clock().UTC()}, cfg.TTL)
		if err != nil {
			return nil, err
		}
		if !claimed {
			return replay(info.FullMethod, existing, fingerprint, cfg.NewResponse)
		}

		resp, err := handler(ctx, req)
		if err != nil {
			if releaseErr := cfg.Store.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
				log.Printf("release idempotency key %s: %v", key, releaseErr)
			}
			return nil, err
		}
		if out, ok := resp.(proto.Message); ok {
			encoded, encodeErr := protojson.Marshal(out)
			if encodeErr == nil {
				encodeErr = cfg.Store.Complete(context.WithoutCancel(ctx), key, Record{
					Fingerprint: fingerprint,
					Response:    encoded,
					Completed:   true,
					StoredAt:    cfg.Clock().UTC(),
				}, cfg.TTL)
			}
			if encodeErr != nil {
				log.Printf("store idempotent response %s: %v", key, encodeErr)
			}
		}
		return resp, nil
	}
}

func replay(method string, record Record, fingerprint string, newResponse func(string) proto.Message) (any, error) {
	if record.Fingerprint != fingerprint {
		return nil, ErrFingerprintMismatch
	}
	if !record.Completed || newResponse == nil {
		return nil, ErrInProgress
	}
	resp := newResponse(method)
	if err := protojson.Unmarshal(record.Response, resp); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	return resp, nil
}

// Fingerprint hashes the deterministic wire form of a request.
func Fingerprint(message proto.Message) (string, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("fingerprint request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func scopedKey(method, caller, clientKey string) string {
	return method + "|" + caller + "|" + clientKey
}

func keyFromIncomingContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, value := range md.Get(KeyHeader) {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

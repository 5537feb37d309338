package escrow

import (
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/api/grpc/interceptors"
	grpcmeta "github.com/jamiebones/crowd-funding-begi-begi/internal/api/grpc/metadata"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/idempotency"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ChainConfig selects the interceptors wrapped around the service.
type ChainConfig struct {
	IDGenerator func() (string, error)
	// Observe runs outermost, seeing final status codes.
	Observe        grpc.UnaryServerInterceptor
	Verify         interceptors.VerifyFunc
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	Clock          func() time.Time
}

// Interceptors returns the unary chain in execution order: request
// metadata, observation, error mapping, caller resolution, idempotency.
func Interceptors(cfg ChainConfig) []grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{grpcmeta.UnaryServerInterceptor(cfg.IDGenerator)}
	if cfg.Observe != nil {
		chain = append(chain, cfg.Observe)
	}
	chain = append(chain,
		interceptors.ErrorInterceptor(),
		interceptors.CallerInterceptor(cfg.Verify, PublicMethods),
	)
	if cfg.Idempotency != nil {
		chain = append(chain, idempotency.UnaryServerInterceptor(idempotency.InterceptorConfig{
			Store:   cfg.Idempotency,
			TTL:     cfg.IdempotencyTTL,
			Clock:   cfg.Clock,
			Methods: MutatingMethods,
			NewResponse: func(string) proto.Message {
				return &structpb.Struct{}
			},
		}))
	}
	return chain
}

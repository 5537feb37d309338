package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"

	escrowgrpc "github.com/jamiebones/crowd-funding-begi-begi/internal/api/grpc/escrow"
	escrowhttp "github.com/jamiebones/crowd-funding-begi-begi/internal/api/http"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/auth/callertoken"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/policy"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/settle"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/storage/sqlite"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/idempotency"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/metrics"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/timeouts"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/publish/kafka"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Server hosts the escrow gRPC and HTTP listeners.
type Server struct {
	grpcListener net.Listener
	httpListener net.Listener
	grpcServer   *grpc.Server
	httpServer   *http.Server
	health       *health.Server

	factory   *factory.Factory
	store     *sqlite.Store
	publisher *kafka.Publisher
	redis     *redis.Client
}

// backend is the journal and ledger pair the factory runs on. committer
// writes both in one step.
type backend struct {
	committer settle.Committer
	reader    event.Reader
	ledger    ledger.Ledger
	funder    ledger.Funder
	ready     func(context.Context) error
	store     *sqlite.Store
}

func openBackend(ctx context.Context, path string) (backend, error) {
	if path == "" {
		log.Printf("no database path configured; escrow state is kept in memory")
		journal := event.NewLog()
		mem := ledger.NewMemory()
		return backend{committer: settle.NewMemory(mem, journal), reader: journal, ledger: mem, funder: mem}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return backend{}, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return backend{}, fmt.Errorf("open sqlite store: %w", err)
	}
	return backend{committer: store, reader: store, ledger: store, funder: store, ready: store.Ping, store: store}, nil
}

// New opens storage, restores the factory from the journal and binds both
// listeners.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	p, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	verify, err := callerVerifier()
	if err != nil {
		return nil, err
	}

	s := &Server{}
	ok := false
	defer func() {
		if !ok {
			s.closeResources()
		}
	}()

	b, err := openBackend(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s.store = b.store

	m := metrics.New()
	observers := []event.Sink{m}
	if len(cfg.KafkaBrokers) > 0 {
		s.publisher, err = kafka.NewPublisher(kafka.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			OnError: func(count int, err error) {
				m.SinkFailed(count)
				log.Printf("publish %d events: %v", count, err)
			},
		})
		if err != nil {
			return nil, err
		}
		observers = append(observers, event.SinkFunc(func(ctx context.Context, events ...event.Event) error {
			if err := s.publisher.Record(ctx, events...); err != nil {
				m.SinkFailed(len(events))
				return err
			}
			return nil
		}))
	}

	f, err := factory.New(factory.Config{
		Owner:   ledger.Address(cfg.FactoryOwner),
		Address: ledger.Address(cfg.FactoryAddress),
		Store:   b.committer,
		Policy:  p,
		Sink:    event.NewRecorder(log.Printf, observers...),
	})
	if err != nil {
		return nil, err
	}
	history, err := b.reader.List(ctx, "", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	if err := f.Restore(history); err != nil {
		return nil, fmt.Errorf("restore factory: %w", err)
	}
	s.factory = f
	log.Printf("restored %d campaigns from %d events", len(f.Campaigns()), len(history))

	store, err := s.idempotencyStore(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(escrowgrpc.Interceptors(escrowgrpc.ChainConfig{
			Observe:        m.UnaryServerInterceptor(),
			Verify:         verify,
			Idempotency:    store,
			IdempotencyTTL: cfg.IdempotencyTTL,
		})...),
	)
	escrowgrpc.RegisterEscrowServer(s.grpcServer, escrowgrpc.NewService(f, b.ledger, b.funder))
	s.health = health.NewServer()
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(escrowgrpc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s.httpServer = &http.Server{
		Handler: escrowhttp.NewRouter(escrowhttp.Config{
			Factory: f,
			Events:  b.reader,
			Metrics: m.Handler(),
			Ready:   b.ready,
		}),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	if s.grpcListener, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}
	if s.httpListener, err = net.Listen("tcp", cfg.HTTPAddr); err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	ok = true
	return s, nil
}

// callerVerifier returns a token verifier when a public key is configured.
// Without one callers identify themselves with the caller header.
func callerVerifier() (func(string) (string, error), error) {
	cfg, configured, err := callertoken.LoadVerifierConfigFromEnv(nil)
	if err != nil {
		return nil, fmt.Errorf("load caller token config: %w", err)
	}
	if !configured {
		log.Printf("%s is not set; trusting the caller header", callertoken.EnvPublicKey)
		return nil, nil
	}
	return func(token string) (string, error) {
		claims, err := callertoken.Verify(token, cfg)
		if err != nil {
			return "", err
		}
		return claims.Caller, nil
	}, nil
}

func (s *Server) idempotencyStore(redisURL string) (idempotency.Store, error) {
	if redisURL == "" {
		return idempotency.NewMemory(nil), nil
	}
	client, err := idempotency.Connect(redisURL)
	if err != nil {
		return nil, err
	}
	s.redis = client
	return idempotency.NewRedis(client), nil
}

// GRPCAddr returns the bound gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// HTTPAddr returns the bound HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Factory exposes the restored factory.
func (s *Server) Factory() *factory.Factory {
	return s.factory
}

// Run creates and serves an escrow server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs both listeners until one fails or the context ends, then
// drains in-flight requests and releases storage.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeResources()

	log.Printf("escrow gRPC listening at %v", s.grpcListener.Addr())
	log.Printf("escrow HTTP listening at %v", s.httpListener.Addr())
	grpcErr := make(chan error, 1)
	httpErr := make(chan error, 1)
	go func() {
		grpcErr <- s.grpcServer.Serve(s.grpcListener)
	}()
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-grpcErr:
		grpcErr <- err
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr = fmt.Errorf("serve gRPC: %w", err)
		}
	case err := <-httpErr:
		httpErr <- err
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve http: %w", err)
		}
	}

	s.health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("shutdown http server: %w", err)
	}
	s.grpcServer.GracefulStop()
	<-grpcErr
	<-httpErr
	return serveErr
}

func (s *Server) closeResources() {
	if s.grpcListener != nil {
		_ = s.grpcListener.Close()
	}
	if s.httpListener != nil {
		_ = s.httpListener.Close()
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Printf("close kafka publisher: %v", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("close redis: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close sqlite store: %v", err)
		}
	}
}

// Package escrow parses escrow command flags and starts the service.
package escrow

import (
	"context"
	"flag"
	"time"

	server "github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/app"
	entrypoint "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/cmd"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/config"
)

// Config holds escrow command configuration.
type Config struct {
	GRPCAddr       string        `env:"ESCROW_GRPC_ADDR" envDefault:":8090"`
	HTTPAddr       string        `env:"ESCROW_HTTP_ADDR" envDefault:":8091"`
	DBPath         string        `env:"ESCROW_DB_PATH" envDefault:"data/escrow.db"`
	PolicyFile     string        `env:"ESCROW_POLICY_FILE"`
	FactoryOwner   string        `env:"ESCROW_FACTORY_OWNER"`
	FactoryAddress string        `env:"ESCROW_FACTORY_ADDRESS" envDefault:"factory:platform"`
	KafkaBrokers   string        `env:"ESCROW_KAFKA_BROKERS"`
	KafkaTopic     string        `env:"ESCROW_KAFKA_TOPIC" envDefault:"escrow-events"`
	RedisURL       string        `env:"ESCROW_REDIS_URL"`
	IdempotencyTTL time.Duration `env:"ESCROW_IDEMPOTENCY_TTL" envDefault:"24h"`

	// HealthCheck probes a running server instead of starting one.
	HealthCheck bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The gRPC listen address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (empty keeps state in memory)")
	fs.StringVar(&cfg.PolicyFile, "policy", cfg.PolicyFile, "YAML release policy file")
	fs.StringVar(&cfg.FactoryOwner, "owner", cfg.FactoryOwner, "Address allowed to sweep platform fees")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "Probe the gRPC health service and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ServerConfig maps command configuration onto the service bootstrap.
func (c Config) ServerConfig() server.Config {
	return server.Config{
		GRPCAddr:       c.GRPCAddr,
		HTTPAddr:       c.HTTPAddr,
		DBPath:         c.DBPath,
		PolicyFile:     c.PolicyFile,
		FactoryOwner:   c.FactoryOwner,
		FactoryAddress: c.FactoryAddress,
		KafkaBrokers:   config.SplitList(c.KafkaBrokers),
		KafkaTopic:     c.KafkaTopic,
		RedisURL:       c.RedisURL,
		IdempotencyTTL: c.IdempotencyTTL,
	}
}

// Run starts the escrow service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEscrow, func(ctx context.Context) error {
		return server.Run(ctx, cfg.ServerConfig())
	})
}

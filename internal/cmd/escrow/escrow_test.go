package escrow

import (
	"flag"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ESCROW_GRPC_ADDR", "ESCROW_HTTP_ADDR", "ESCROW_DB_PATH", "ESCROW_POLICY_FILE",
		"ESCROW_FACTORY_OWNER", "ESCROW_FACTORY_ADDRESS", "ESCROW_KAFKA_BROKERS",
		"ESCROW_KAFKA_TOPIC", "ESCROW_REDIS_URL", "ESCROW_IDEMPOTENCY_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestParseConfigDefaults(t *testing.T) {
	clearEnv(t)
	fs := flag.NewFlagSet("escrow", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != ":8090" || cfg.HTTPAddr != ":8091" {
		t.Fatalf("unexpected addrs %q %q", cfg.GRPCAddr, cfg.HTTPAddr)
	}
	if cfg.DBPath != "data/escrow.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.FactoryAddress != "factory:platform" || cfg.KafkaTopic != "escrow-events" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("expected 24h idempotency ttl, got %s", cfg.IdempotencyTTL)
	}
	if cfg.HealthCheck {
		t.Fatal("expected healthcheck off by default")
	}
}

func TestParseConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ESCROW_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ESCROW_IDEMPOTENCY_TTL", "90m")
	t.Setenv("ESCROW_FACTORY_OWNER", "env-owner")

	fs := flag.NewFlagSet("escrow", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-grpc-addr", "127.0.0.1:9000", "-owner", "flag-owner", "-db", "", "-healthcheck"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.GRPCAddr != "127.0.0.1:9000" || cfg.FactoryOwner != "flag-owner" || cfg.DBPath != "" || !cfg.HealthCheck {
		t.Fatalf("flags did not override env: %+v", cfg)
	}

	server := cfg.ServerConfig()
	if len(server.KafkaBrokers) != 2 || server.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %v", server.KafkaBrokers)
	}
	if server.IdempotencyTTL != 90*time.Minute {
		t.Fatalf("unexpected ttl %s", server.IdempotencyTTL)
	}
}

func TestParseConfigRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("ESCROW_IDEMPOTENCY_TTL", "soon")
	if _, err := ParseConfig(flag.NewFlagSet("escrow", flag.ContinueOnError), nil); err == nil {
		t.Fatal("expected env parse error")
	}
}

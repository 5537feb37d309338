package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/factory"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/idempotency"
)

// Config selects the adapters the service runs with.
type Config struct {
	GRPCAddr string
	HTTPAddr string
	// DBPath is the SQLite database. Empty keeps the journal and ledger in
	// memory, which loses all state on exit.
	DBPath     string
	PolicyFile string

	FactoryOwner   string
	FactoryAddress string

	KafkaBrokers []string
	KafkaTopic   string

	// RedisURL backs idempotency keys. Empty uses an in-process store.
	RedisURL       string
	IdempotencyTTL time.Duration
}

func (c Config) validate() error {
	if strings.TrimSpace(c.GRPCAddr) == "" {
		return fmt.Errorf("gRPC address is required")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("HTTP address is required")
	}
	if strings.TrimSpace(c.FactoryOwner) == "" {
		return fmt.Errorf("factory owner is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.FactoryAddress == "" {
		c.FactoryAddress = string(factory.DefaultAddress)
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = idempotency.DefaultTTL
	}
	return c
}

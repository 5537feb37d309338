// Package cmd holds the startup plumbing shared by escrow command binaries.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/config"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/otel"
)

const defaultTelemetryFlush = 5 * time.Second

// Service names reported as the OpenTelemetry service.name.
const (
	ServiceEscrow      = "escrow"
	ServiceCallerToken = "caller-token"
)

// LogPrefix is the standard log prefix for service, e.g. "[ESCROW] ".
func LogPrefix(service string) string {
	return "[" + strings.ToUpper(strings.TrimSpace(service)) + "] "
}

// ParseConfig loads ESCROW_* environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags over env-derived defaults.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// Runner runs a service loop between tracing setup and flush.
type Runner struct {
	Service string
	// FlushTimeout bounds span export on exit. Zero means five seconds.
	FlushTimeout time.Duration
	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Run sets up tracing, calls run and flushes spans once run returns.
func (r Runner) Run(ctx context.Context, run func(context.Context) error) error {
	service := strings.TrimSpace(r.Service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logf := r.Logf
	if logf == nil {
		logf = log.Printf
	}
	flush := r.FlushTimeout
	if flush <= 0 {
		flush = defaultTelemetryFlush
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), flush)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logf("%s telemetry flush: %v", service, err)
		}
	}()
	return run(ctx)
}

// RunWithTelemetry runs service with default Runner settings.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	return Runner{Service: service}.Run(ctx, run)
}

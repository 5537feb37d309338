package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	escrowgrpc "github.com/jamiebones/crowd-funding-begi-begi/internal/api/grpc/escrow"
	escrowcmd "github.com/jamiebones/crowd-funding-begi-begi/internal/cmd/escrow"
	entrypoint "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/cmd"
	platformgrpc "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/grpc"
)

func main() {
	cfg, err := escrowcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceEscrow))

	if cfg.HealthCheck {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := platformgrpc.Probe(ctx, cfg.GRPCAddr, escrowgrpc.ServiceName, nil); err != nil {
			log.Fatalf("health check: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := escrowcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

// Package timeouts defines shared timeout constants used across the escrow
// service boundaries.
package timeouts

import "time"

// GRPCRequest caps a single health probe or client call.
const GRPCRequest = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Publish caps a single broker write for an event batch.
const Publish = 5 * time.Second

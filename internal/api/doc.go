// Package api contains the escrow transports.
//
// # gRPC
//
// grpc/escrow serves escrow.v1.EscrowService, the full read and write
// surface. Requests pass through grpc/metadata (request ids, locale),
// grpc/interceptors (error mapping, caller resolution) and the idempotency
// interceptor before reaching the campaign factory.
//
// # HTTP
//
// The http subpackage is a read-only view for dashboards and probes:
// health, Prometheus metrics, the registry, funding details and the
// per-campaign event journal.
package api

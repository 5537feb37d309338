// Package app assembles the escrow service: storage, the campaign factory
// restored from the journal, the gRPC API and the HTTP read API.
package app

// Package idempotency lets clients retry mutating calls safely. A call
// carrying an idempotency key is executed once; retries with the same key
// and request replay the stored response.
package idempotency

import (
	"context"
	"time"

	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
)

// DefaultTTL bounds how long a completed response is replayable.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInProgress reports a retry that raced the original call.
	ErrInProgress = apperrors.New(apperrors.CodeIdempotencyConflict, "request with this idempotency key is in progress")
	// ErrFingerprintMismatch reports a key reused for a different request.
	ErrFingerprintMismatch = apperrors.New(apperrors.CodeIdempotencyConflict, "idempotency key was used for a different request")
)

// Record is the stored outcome of a keyed call. Response is empty while
// the call is in flight.
type Record struct {
	Fingerprint string    `json:"fingerprint"`
	Response    []byte    `json:"response,omitempty"`
	Completed   bool      `json:"completed"`
	StoredAt    time.Time `json:"stored_at"`
}

// Store persists records by key.
type Store interface {
	// Claim stores a pending record unless key exists. It returns the
	// existing record and false when the key is already taken.
	Claim(ctx context.Context, key string, pending Record, ttl time.Duration) (Record, bool, error)
	// Complete replaces the pending record with the final response.
	Complete(ctx context.Context, key string, record Record, ttl time.Duration) error
	// Release forgets key so a failed call can be retried.
	Release(ctx context.Context, key string) error
}

// Package ledger defines the value-transfer port the escrow engine consumes.
//
// Amounts are non-negative integers in the smallest monetary unit. Every
// arithmetic step is overflow checked so accounting never wraps silently.
// Adapters must apply a batch of transfers atomically: either every
// transfer lands or none does.
package ledger

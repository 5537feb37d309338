// Package auth holds caller authentication for the escrow API.
//
// Callers present an EdDSA-signed JWT whose subject is their ledger
// address (see callertoken). When no verification key is configured the
// API trusts the x-escrow-caller header, which is only suitable for local
// runs and tests.
package auth

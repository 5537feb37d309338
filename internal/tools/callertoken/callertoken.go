// Package callertoken backs the caller-token utility: it generates the
// ed25519 key pair the escrow API verifies tokens with, and mints tokens
// for local testing.
package callertoken

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/auth/callertoken"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/platform/id"
)

// GenerateKeys writes shell exports for a fresh key pair.
func GenerateKeys(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	publicKey, privateKey, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate caller token key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", callertoken.EnvPrivateKey, base64.RawStdEncoding.EncodeToString(privateKey)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export %s=%s\n", callertoken.EnvPublicKey, base64.RawStdEncoding.EncodeToString(publicKey)); err != nil {
		return err
	}
	return nil
}

// IssueToken signs a token for caller with the key from the environment.
func IssueToken(out io.Writer, caller string, now func() time.Time) error {
	if out == nil {
		return errors.New("output is required")
	}
	cfg, err := callertoken.LoadSignerConfigFromEnv(now)
	if err != nil {
		return err
	}
	jwtID, err := id.NewID()
	if err != nil {
		return fmt.Errorf("generate token id: %w", err)
	}
	token, err := callertoken.Issue(cfg, caller, jwtID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

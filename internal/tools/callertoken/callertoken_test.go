package callertoken

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/auth/callertoken"
)

func TestGenerateKeysRequiresOutput(t *testing.T) {
	if err := GenerateKeys(nil, bytes.NewReader([]byte{1})); err == nil {
		t.Fatal("expected error when output is nil")
	}
}

func generate(t *testing.T) (private, public string) {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := GenerateKeys(buf, bytes.NewReader(bytes.Repeat([]byte{1}, 64))); err != nil {
		t.Fatalf("generate: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	private = strings.TrimPrefix(lines[0], "export "+callertoken.EnvPrivateKey+"=")
	public = strings.TrimPrefix(lines[1], "export "+callertoken.EnvPublicKey+"=")
	if private == lines[0] || public == lines[1] {
		t.Fatalf("unexpected output format: %q", buf.String())
	}
	return private, public
}

func TestGenerateKeysWritesKeys(t *testing.T) {
	private, public := generate(t)
	privateBytes, err := base64.RawStdEncoding.DecodeString(private)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	publicBytes, err := base64.RawStdEncoding.DecodeString(public)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(privateBytes) != 64 || len(publicBytes) != 32 {
		t.Fatalf("unexpected key lengths %d/%d", len(privateBytes), len(publicBytes))
	}
}

func TestIssueTokenVerifies(t *testing.T) {
	private, public := generate(t)
	t.Setenv(callertoken.EnvIssuer, "escrow-tools")
	t.Setenv(callertoken.EnvAudience, "escrow")
	t.Setenv(callertoken.EnvPrivateKey, private)
	t.Setenv(callertoken.EnvPublicKey, public)
	t.Setenv(callertoken.EnvTTL, "")

	now := func() time.Time { return time.Now() }
	buf := &bytes.Buffer{}
	if err := IssueToken(buf, "alice", now); err != nil {
		t.Fatalf("issue: %v", err)
	}
	cfg, ok, err := callertoken.LoadVerifierConfigFromEnv(now)
	if err != nil || !ok {
		t.Fatalf("load verifier: ok=%v err=%v", ok, err)
	}
	claims, err := callertoken.Verify(strings.TrimSpace(buf.String()), cfg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Caller != "alice" || claims.JWTID == "" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestIssueTokenRequiresSigner(t *testing.T) {
	t.Setenv(callertoken.EnvPrivateKey, "")
	if err := IssueToken(&bytes.Buffer{}, "alice", nil); err == nil {
		t.Fatal("expected missing signer config error")
	}
}

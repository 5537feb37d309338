// Package callertoken issues and verifies the EdDSA-signed JWTs that carry a
// caller's ledger address to the escrow API.
package callertoken

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
)

const (
	EnvIssuer     = "ESCROW_CALLER_TOKEN_ISSUER"
	EnvAudience   = "ESCROW_CALLER_TOKEN_AUDIENCE"
	EnvPublicKey  = "ESCROW_CALLER_TOKEN_PUBLIC_KEY"
	EnvPrivateKey = "ESCROW_CALLER_TOKEN_PRIVATE_KEY"
	EnvTTL        = "ESCROW_CALLER_TOKEN_TTL"
)

// verifierEnv holds raw env values before post-parse validation.
type verifierEnv struct {
	Issuer    string `env:"ESCROW_CALLER_TOKEN_ISSUER"`
	Audience  string `env:"ESCROW_CALLER_TOKEN_AUDIENCE"`
	PublicKey string `env:"ESCROW_CALLER_TOKEN_PUBLIC_KEY"`
}

type signerEnv struct {
	Issuer     string        `env:"ESCROW_CALLER_TOKEN_ISSUER"`
	Audience   string        `env:"ESCROW_CALLER_TOKEN_AUDIENCE"`
	PrivateKey string        `env:"ESCROW_CALLER_TOKEN_PRIVATE_KEY"`
	TTL        time.Duration `env:"ESCROW_CALLER_TOKEN_TTL" envDefault:"1h"`
}

// VerifierConfig defines how caller tokens are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// SignerConfig defines how caller tokens are minted.
type SignerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// Claims are the validated claims of a caller token.
type Claims struct {
	Caller    string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	JWTID     string
}

// LoadVerifierConfigFromEnv reads verification settings. ok is false when
// no public key is configured, which leaves the API unauthenticated.
func LoadVerifierConfigFromEnv(now func() time.Time) (cfg VerifierConfig, ok bool, err error) {
	var raw verifierEnv
	if err := env.Parse(&raw); err != nil {
		return VerifierConfig{}, false, fmt.Errorf("parse caller token env: %w", err)
	}
	publicKey := strings.TrimSpace(raw.PublicKey)
	if publicKey == "" {
		return VerifierConfig{}, false, nil
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	if issuer == "" {
		return VerifierConfig{}, false, fmt.Errorf("%s is required", EnvIssuer)
	}
	if audience == "" {
		return VerifierConfig{}, false, fmt.Errorf("%s is required", EnvAudience)
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return VerifierConfig{}, false, fmt.Errorf("decode caller token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return VerifierConfig{}, false, fmt.Errorf("caller token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, true, nil
}

// LoadSignerConfigFromEnv reads signing settings.
func LoadSignerConfigFromEnv(now func() time.Time) (SignerConfig, error) {
	var raw signerEnv
	if err := env.Parse(&raw); err != nil {
		return SignerConfig{}, fmt.Errorf("parse caller token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if issuer == "" {
		return SignerConfig{}, fmt.Errorf("%s is required", EnvIssuer)
	}
	if audience == "" {
		return SignerConfig{}, fmt.Errorf("%s is required", EnvAudience)
	}
	if privateKey == "" {
		return SignerConfig{}, fmt.Errorf("%s is required", EnvPrivateKey)
	}
	keyBytes, err := decodeBase64(privateKey)
	if err != nil {
		return SignerConfig{}, fmt.Errorf("decode caller token private key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return SignerConfig{}, fmt.Errorf("caller token private key must be %d bytes", ed25519.PrivateKeySize)
	}
	if raw.TTL <= 0 {
		return SignerConfig{}, fmt.Errorf("caller token ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return SignerConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PrivateKey(keyBytes),
		TTL:      raw.TTL,
		Now:      now,
	}, nil
}

// Issue mints a token for caller.
func Issue(cfg SignerConfig, caller, jwtID string) (string, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return "", errors.New("caller is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PrivateKeySize {
		return "", errors.New("caller token signer is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	now := cfg.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   caller,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        jwtID,
	})
	signed, err := token.SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign caller token: %w", err)
	}
	return signed, nil
}

// Verify checks a caller token and returns its claims.
func Verify(token string, cfg VerifierConfig) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("caller token verifier is not configured")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeUnauthenticated,
			"caller token issuer mismatch", map[string]string{"Field": "issuer"})
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeUnauthenticated,
			"caller token audience mismatch", map[string]string{"Field": "audience"})
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token sub is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token exp is required")
	}
	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "caller token not active yet")
	}

	claims := Claims{
		Caller:    parsed.Subject,
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeUnauthenticated, "caller token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeUnauthenticated, "caller token alg is invalid")
	}
	return apperrors.New(apperrors.CodeUnauthenticated, "caller token is invalid")
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}

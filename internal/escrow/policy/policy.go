// Package policy holds the release parameters every campaign shares.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment overrides for policy fields.
const EnvPrefix = "ESCROW_POLICY_"

// Policy configures milestone release and refund math.
type Policy struct {
	// FirstTrancheDelay gates the first withdrawal by time alone.
	FirstTrancheDelay time.Duration `yaml:"first_tranche_delay" env:"FIRST_TRANCHE_DELAY"`
	// TrancheDelay gates every later withdrawal together with the vote.
	TrancheDelay time.Duration `yaml:"tranche_delay" env:"TRANCHE_DELAY"`
	// TrancheBps is the share of the remaining balance released per milestone.
	TrancheBps uint32 `yaml:"tranche_bps" env:"TRANCHE_BPS"`
	// FeeBps is the platform's share of each released tranche.
	FeeBps uint32 `yaml:"fee_bps" env:"FEE_BPS"`
	// RefundBps is the share of a donation returned on early exit.
	RefundBps uint32 `yaml:"refund_bps" env:"REFUND_BPS"`
}

// Default returns the release policy used when nothing overrides it.
func Default() Policy {
	return Policy{
		FirstTrancheDelay: 15 * 24 * time.Hour,
		TrancheDelay:      15 * 24 * time.Hour,
		TrancheBps:        3333,
		FeeBps:            100,
		RefundBps:         8000,
	}
}

// Validate checks the policy parameters are usable.
func (p Policy) Validate() error {
	var errs []error
	if p.FirstTrancheDelay < 0 {
		errs = append(errs, fmt.Errorf("first tranche delay must not be negative"))
	}
	if p.TrancheDelay < 0 {
		errs = append(errs, fmt.Errorf("tranche delay must not be negative"))
	}
	if p.TrancheBps == 0 || p.TrancheBps > ledger.BasisPoints {
		errs = append(errs, fmt.Errorf("tranche bps must be in 1..%d", ledger.BasisPoints))
	}
	if p.FeeBps > ledger.BasisPoints {
		errs = append(errs, fmt.Errorf("fee bps must be at most %d", ledger.BasisPoints))
	}
	if p.RefundBps > ledger.BasisPoints {
		errs = append(errs, fmt.Errorf("refund bps must be at most %d", ledger.BasisPoints))
	}
	return errors.Join(errs...)
}

// Load starts from Default, overlays the YAML file at path when set, then
// applies ESCROW_POLICY_* environment overrides.
func Load(path string) (Policy, error) {
	p := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Policy{}, fmt.Errorf("read policy file: %w", err)
		}
		if p, err = Parse(data, p); err != nil {
			return Policy{}, err
		}
	}
	if err := env.ParseWithOptions(&p, env.Options{Prefix: EnvPrefix}); err != nil {
		return Policy{}, fmt.Errorf("parse policy env: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid policy: %w", err)
	}
	return p, nil
}

// Parse decodes YAML over base; fields absent from data keep base values.
func Parse(data []byte, base Policy) (Policy, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("decode policy yaml: %w", err)
	}
	return base, nil
}

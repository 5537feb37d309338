package ledger

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// maxAmountDigits is the length of the largest 256-bit decimal.
const maxAmountDigits = 78

// Amount is a value in the smallest monetary unit (wei for ether
// campaigns). It covers the unsigned 256-bit range, the zero value is
// zero and amounts compare with ==.
type Amount struct {
	v uint256.Int
}

// NewAmount returns v as an Amount.
func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// ParseAmount parses a base-10 integer with no sign or separators.
func ParseAmount(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("amount is empty")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Amount{}, fmt.Errorf("amount %q is not a decimal integer", s)
		}
	}
	if len(s) > maxAmountDigits {
		return Amount{}, ErrAmountOverflow
	}
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, ErrAmountOverflow
	}
	return a, nil
}

// MustParseAmount is ParseAmount for constants; it panics on bad input.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Add returns a+b or ErrAmountOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var sum Amount
	if _, overflow := sum.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrAmountOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrInsufficientFunds when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.v.Lt(&b.v) {
		return Amount{}, ErrInsufficientFunds
	}
	var diff Amount
	diff.v.Sub(&a.v, &b.v)
	return diff, nil
}

// MulBps returns floor(a * bps / 10000). bps is clamped to 10000 so the
// result never exceeds a.
func (a Amount) MulBps(bps uint32) Amount {
	if bps > BasisPoints {
		bps = BasisPoints
	}
	var out Amount
	out.v.MulDivOverflow(&a.v, uint256.NewInt(uint64(bps)), uint256.NewInt(BasisPoints))
	return out
}

// Float64 approximates a for metrics.
func (a Amount) Float64() float64 {
	f, _ := new(big.Float).SetInt(a.v.ToBig()).Float64()
	return f
}

// String returns the base-10 form.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalText encodes a as a decimal string, so JSON carries it quoted.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText accepts the form MarshalText produces.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

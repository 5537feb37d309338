package ledger

import (
	"context"
	"strings"

	apperrors "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/errors"
)

// BasisPoints is the denominator for fractional policy parameters.
const BasisPoints = 10_000

var (
	// ErrInsufficientFunds indicates a debit larger than the account balance.
	ErrInsufficientFunds = apperrors.New(apperrors.CodeInsufficientFunds, "insufficient funds")
	// ErrAmountOverflow indicates an addition that would exceed the amount range.
	ErrAmountOverflow = apperrors.New(apperrors.CodeAmountOverflow, "amount overflow")
	// ErrInvalidAddress indicates a blank account address.
	ErrInvalidAddress = apperrors.New(apperrors.CodeInvalidAddress, "address is required")
)

// Address identifies a ledger account.
type Address string

// Valid reports whether the address is non-blank.
func (a Address) Valid() bool {
	return strings.TrimSpace(string(a)) != ""
}

// Transfer moves Amount from one account to another.
type Transfer struct {
	From   Address
	To     Address
	Amount Amount
}

// Ledger is the atomic value-transfer primitive.
type Ledger interface {
	// Apply performs every transfer or none of them.
	Apply(ctx context.Context, transfers ...Transfer) error
	// BalanceOf returns the current balance of addr.
	BalanceOf(ctx context.Context, addr Address) (Amount, error)
}

// Funder credits value that originates outside the ledger, such as a
// deposit from a payment rail.
type Funder interface {
	Credit(ctx context.Context, addr Address, amount Amount) error
}

// Validate rejects transfers with blank endpoints.
func (t Transfer) Validate() error {
	if !t.From.Valid() || !t.To.Valid() {
		return ErrInvalidAddress
	}
	return nil
}

// Net folds transfers into per-account deltas applied against balances.
// Zero-amount and self transfers are skipped. The returned map is safe to
// mutate.
func Net(balances func(Address) Amount, transfers []Transfer) (map[Address]Amount, error) {
	next := make(map[Address]Amount)
	current := func(addr Address) Amount {
		if value, ok := next[addr]; ok {
			return value
		}
		return balances(addr)
	}
	for _, transfer := range transfers {
		if err := transfer.Validate(); err != nil {
			return nil, err
		}
		if transfer.Amount.IsZero() || transfer.From == transfer.To {
			continue
		}
		debited, err := current(transfer.From).Sub(transfer.Amount)
		if err != nil {
			return nil, apperrors.WithMetadata(apperrors.CodeInsufficientFunds,
				"insufficient funds", map[string]string{"Account": string(transfer.From)})
		}
		next[transfer.From] = debited
		credited, err := current(transfer.To).Add(transfer.Amount)
		if err != nil {
			return nil, err
		}
		next[transfer.To] = credited
	}
	return next, nil
}

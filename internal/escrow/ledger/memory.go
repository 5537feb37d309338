package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process ledger. It backs tests and single-node runs
// without a database.
type Memory struct {
	mu       sync.Mutex
	balances map[Address]Amount
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[Address]Amount)}
}

// Apply implements Ledger.
func (m *Memory) Apply(ctx context.Context, transfers ...Transfer) error {
	return m.ApplyThen(ctx, transfers, nil)
}

// ApplyThen validates transfers, runs then while holding the ledger lock
// and writes the new balances only if then succeeds. It lets a caller pair
// the transfers with another write that must land with them.
func (m *Memory) ApplyThen(ctx context.Context, transfers []Transfer, then func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Net(func(addr Address) Amount { return m.balances[addr] }, transfers)
	if err != nil {
		return err
	}
	if then != nil {
		if err := then(); err != nil {
			return err
		}
	}
	for addr, balance := range next {
		m.balances[addr] = balance
	}
	return nil
}

// BalanceOf implements Ledger.
func (m *Memory) BalanceOf(ctx context.Context, addr Address) (Amount, error) {
	if err := ctx.Err(); err != nil {
		return Amount{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[addr], nil
}

// Credit implements Funder.
func (m *Memory) Credit(ctx context.Context, addr Address, amount Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !addr.Valid() {
		return ErrInvalidAddress
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.balances[addr].Add(amount)
	if err != nil {
		return err
	}
	m.balances[addr] = next
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
)

// Apply implements ledger.Ledger. Every transfer commits or none does.
func (s *Store) Apply(ctx context.Context, transfers ...ledger.Transfer) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if len(transfers) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.applyTx(ctx, tx, transfers)
	})
}

// applyTx nets transfers against the stored balances and writes the
// results inside tx.
func (s *Store) applyTx(ctx context.Context, tx *sql.Tx, transfers []ledger.Transfer) error {
	balances := make(map[ledger.Address]ledger.Amount)
	for _, transfer := range transfers {
		for _, addr := range []ledger.Address{transfer.From, transfer.To} {
			if _, loaded := balances[addr]; loaded {
				continue
			}
			balance, err := balanceOf(ctx, tx, addr)
			if err != nil {
				return err
			}
			balances[addr] = balance
		}
	}

	next, err := ledger.Net(func(addr ledger.Address) ledger.Amount { return balances[addr] }, transfers)
	if err != nil {
		return err
	}
	for addr, balance := range next {
		if err := s.putBalance(ctx, tx, addr, balance); err != nil {
			return err
		}
	}
	return nil
}

// Credit implements ledger.Funder.
func (s *Store) Credit(ctx context.Context, addr ledger.Address, amount ledger.Amount) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if !addr.Valid() {
		return ledger.ErrInvalidAddress
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := balanceOf(ctx, tx, addr)
		if err != nil {
			return err
		}
		next, err := current.Add(amount)
		if err != nil {
			return err
		}
		return s.putBalance(ctx, tx, addr, next)
	})
}

// BalanceOf implements ledger.Ledger.
func (s *Store) BalanceOf(ctx context.Context, addr ledger.Address) (ledger.Amount, error) {
	if err := s.ready(ctx); err != nil {
		return ledger.Amount{}, err
	}
	return balanceOf(ctx, s.sqlDB, addr)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func balanceOf(ctx context.Context, q queryRower, addr ledger.Address) (ledger.Amount, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT balance FROM ledger_balances WHERE address = ?`, string(addr)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Amount{}, nil
	}
	if err != nil {
		return ledger.Amount{}, fmt.Errorf("load balance %s: %w", addr, err)
	}
	value, err := ledger.ParseAmount(raw)
	if err != nil {
		return ledger.Amount{}, fmt.Errorf("parse balance %s: %w", addr, err)
	}
	return value, nil
}

func (s *Store) putBalance(ctx context.Context, tx *sql.Tx, addr ledger.Address, balance ledger.Amount) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_balances (address, balance, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`,
		string(addr),
		balance.String(),
		toMillis(s.clock()),
	)
	if err != nil {
		return fmt.Errorf("store balance %s: %w", addr, err)
	}
	return nil
}

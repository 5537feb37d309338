package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/settle"
)

// Commit implements settle.Committer. Balances and journal rows are
// written in one transaction.
func (s *Store) Commit(ctx context.Context, batch settle.Batch) ([]event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var stamped []event.Event
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.applyTx(ctx, tx, batch.Transfers); err != nil {
			return err
		}
		if len(batch.Events) == 0 {
			return nil
		}
		var err error
		stamped, err = appendTx(ctx, tx, batch.Events)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stamped, nil
}

// inTx runs fn in a write transaction and commits when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Package settle commits an operation's ledger transfers together with the
// journal events that describe them. Either every transfer lands and every
// event is appended, or nothing changes.
package settle

import (
	"context"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/ledger"
)

// Batch is one operation's ledger effects and the events recording them.
type Batch struct {
	Transfers []ledger.Transfer
	Events    []event.Event
}

// Committer lands a batch atomically and returns the stamped events.
type Committer interface {
	Commit(ctx context.Context, batch Batch) ([]event.Event, error)
}

// Memory commits against an in-process ledger and journal.
type Memory struct {
	ledger  *ledger.Memory
	journal event.Journal
}

// NewMemory pairs l and journal. The journal append runs under the ledger
// lock and balances change only if it succeeds.
func NewMemory(l *ledger.Memory, journal event.Journal) *Memory {
	return &Memory{ledger: l, journal: journal}
}

// Commit implements Committer.
func (m *Memory) Commit(ctx context.Context, batch Batch) ([]event.Event, error) {
	var stamped []event.Event
	err := m.ledger.ApplyThen(ctx, batch.Transfers, func() error {
		if len(batch.Events) == 0 {
			return nil
		}
		appended, err := m.journal.Append(ctx, batch.Events...)
		if err != nil {
			return err
		}
		stamped = appended
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stamped, nil
}

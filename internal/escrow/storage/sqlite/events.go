package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jamiebones/crowd-funding-begi-begi/internal/escrow/event"
)

// Append implements event.Journal. The batch is stamped and stored in one
// transaction, continuing the global hash chain.
func (s *Store) Append(ctx context.Context, events ...event.Event) ([]event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	var stamped []event.Event
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		stamped, err = appendTx(ctx, tx, events)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stamped, nil
}

// appendTx stamps events after the last stored one and inserts them
// inside tx.
func appendTx(ctx context.Context, tx *sql.Tx, events []event.Event) ([]event.Event, error) {
	seq, prevHash, err := lastEvent(ctx, tx)
	if err != nil {
		return nil, err
	}
	stamped := make([]event.Event, 0, len(events))
	for _, evt := range events {
		next, err := event.Stamp(evt, seq+1, prevHash)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (seq, instance_id, event_type, timestamp, actor, payload_json, prev_hash, hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(next.Seq),
			next.InstanceID,
			string(next.Type),
			toMillis(next.Timestamp),
			next.Actor,
			next.PayloadJSON,
			next.PrevHash,
			next.Hash,
		); err != nil {
			return nil, fmt.Errorf("append event %d: %w", next.Seq, err)
		}
		stamped = append(stamped, next)
		seq, prevHash = next.Seq, next.Hash
	}
	return stamped, nil
}

func lastEvent(ctx context.Context, tx *sql.Tx) (uint64, string, error) {
	var (
		seq  int64
		hash string
	)
	err := tx.QueryRowContext(ctx, `SELECT seq, hash FROM events ORDER BY seq DESC LIMIT 1`).Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("load last event: %w", err)
	}
	return uint64(seq), hash, nil
}

// List implements event.Reader.
func (s *Store) List(ctx context.Context, instanceID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `SELECT seq, instance_id, event_type, timestamp, actor, payload_json, prev_hash, hash
		FROM events WHERE seq > ?`
	args := []any{int64(afterSeq)}
	if instanceID != "" {
		query += ` AND instance_id = ?`
		args = append(args, instanceID)
	}
	query += ` ORDER BY seq`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		var (
			evt       event.Event
			seq       int64
			eventType string
			timestamp int64
		)
		if err := rows.Scan(&seq, &evt.InstanceID, &eventType, &timestamp, &evt.Actor, &evt.PayloadJSON, &evt.PrevHash, &evt.Hash); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Type = event.Type(eventType)
		evt.Timestamp = fromMillis(timestamp)
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// VerifyIntegrity walks the whole journal in pages and checks the hash
// chain.
func (s *Store) VerifyIntegrity(ctx context.Context) error {
	const pageSize = 500
	var (
		afterSeq uint64
		prevHash string
	)
	for {
		page, err := s.List(ctx, "", afterSeq, pageSize)
		if err != nil {
			return err
		}
		if err := event.Verify(page, afterSeq, prevHash); err != nil {
			return fmt.Errorf("verify journal: %w", err)
		}
		if len(page) < pageSize {
			return nil
		}
		last := page[len(page)-1]
		afterSeq, prevHash = last.Seq, last.Hash
	}
}

package event

import (
	"context"
	"sync"
)

// Log is an in-memory append-only journal with a SHA-256 hash chain.
type Log struct {
	mu     sync.RWMutex
	events []Event
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append implements Journal.
func (l *Log) Append(ctx context.Context, events ...Event) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	seq, prevHash := uint64(len(l.events)), ""
	if seq > 0 {
		prevHash = l.events[seq-1].Hash
	}
	stamped := make([]Event, 0, len(events))
	for _, evt := range events {
		next, err := Stamp(evt, seq+1, prevHash)
		if err != nil {
			return nil, err
		}
		stamped = append(stamped, next)
		seq, prevHash = next.Seq, next.Hash
	}
	l.events = append(l.events, stamped...)
	return cloneEvents(stamped), nil
}

// List implements Reader.
func (l *Log) List(ctx context.Context, instanceID string, afterSeq uint64, limit int) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	if afterSeq >= uint64(len(l.events)) {
		return out, nil
	}
	for _, evt := range l.events[afterSeq:] {
		if instanceID != "" && evt.InstanceID != instanceID {
			continue
		}
		out = append(out, evt)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return cloneEvents(out), nil
}

// Events returns a copy of the whole journal.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneEvents(l.events)
}

// Verify checks the hash chain of the whole journal.
func (l *Log) Verify() error {
	return Verify(l.Events(), 0, "")
}

func cloneEvents(events []Event) []Event {
	out := make([]Event, len(events))
	for i, evt := range events {
		evt.PayloadJSON = append([]byte(nil), evt.PayloadJSON...)
		out[i] = evt
	}
	return out
}

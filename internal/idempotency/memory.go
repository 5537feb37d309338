package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

// Memory is an in-process Store for single-node runs and tests.
type Memory struct {
	mu      sync.Mutex
	clock   func() time.Time
	entries map[string]memoryEntry
}

// NewMemory returns an empty store. clock defaults to time.Now.
func NewMemory(clock func() time.Time) *Memory {
	if clock == nil {
		clock = time.Now
	}
	return &Memory{clock: clock, entries: make(map[string]memoryEntry)}
}

// Claim implements Store.
func (m *Memory) Claim(ctx context.Context, key string, pending Record, ttl time.Duration) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if entry, ok := m.entries[key]; ok && now.Before(entry.expiresAt) {
		return entry.record, false, nil
	}
	m.entries[key] = memoryEntry{record: pending, expiresAt: now.Add(ttl)}
	return pending, true, nil
}

// Complete implements Store.
func (m *Memory) Complete(ctx context.Context, key string, record Record, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{record: record, expiresAt: m.clock().Add(ttl)}
	return nil
}

// Release implements Store.
func (m *Memory) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

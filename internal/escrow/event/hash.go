package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// chainEnvelope fixes the field order hashed for each event.
type chainEnvelope struct {
	Seq        uint64          `json:"seq"`
	InstanceID string          `json:"instance_id"`
	Type       Type            `json:"type"`
	Timestamp  int64           `json:"timestamp_ms"`
	Actor      string          `json:"actor"`
	Payload    json.RawMessage `json:"payload"`
	PrevHash   string          `json:"prev_hash"`
}

// ChainHash computes the SHA-256 hash that links evt to prevHash.
func ChainHash(evt Event, prevHash string) (string, error) {
	payload := json.RawMessage(evt.PayloadJSON)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	data, err := json.Marshal(chainEnvelope{
		Seq:        evt.Seq,
		InstanceID: evt.InstanceID,
		Type:       evt.Type,
		Timestamp:  evt.Timestamp.UTC().UnixMilli(),
		Actor:      evt.Actor,
		Payload:    payload,
		PrevHash:   prevHash,
	})
	if err != nil {
		return "", fmt.Errorf("encode chain envelope: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Stamp assigns seq, the previous hash and the chain hash. Timestamps are
// normalized to UTC milliseconds so every journal hashes the same bytes.
func Stamp(evt Event, seq uint64, prevHash string) (Event, error) {
	if !evt.Type.Known() {
		return Event{}, fmt.Errorf("unknown event type %q", evt.Type)
	}
	if evt.InstanceID == "" {
		return Event{}, fmt.Errorf("event %s has no instance id", evt.Type)
	}
	evt.Seq = seq
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
	evt.PrevHash = prevHash
	hash, err := ChainHash(evt, prevHash)
	if err != nil {
		return Event{}, err
	}
	evt.Hash = hash
	return evt, nil
}

// Verify checks that events form a contiguous, unbroken hash chain
// starting after afterSeq with predecessor hash prevHash.
func Verify(events []Event, afterSeq uint64, prevHash string) error {
	for _, evt := range events {
		if evt.Seq != afterSeq+1 {
			return fmt.Errorf("event seq %d follows %d", evt.Seq, afterSeq)
		}
		if evt.PrevHash != prevHash {
			return fmt.Errorf("event %d prev hash mismatch", evt.Seq)
		}
		want, err := ChainHash(evt, prevHash)
		if err != nil {
			return err
		}
		if evt.Hash != want {
			return fmt.Errorf("event %d hash mismatch", evt.Seq)
		}
		afterSeq = evt.Seq
		prevHash = evt.Hash
	}
	return nil
}

// Package store implements the generic persistent record engine shared by the
// marketplace and book-swap applications: a process-wide identifier
// allocator, typed collections keyed by that identifier, and exclusive units
// of work that are made durable through a Backend before they become visible.
package store

import (
	"context"
	"encoding/json"
	"sort"
)

// Backend persists encoded records under (bucket, id) keys plus one counter per
// namespace. Implementations live under internal/infra/persistence.
type Backend interface {
	// Load returns every persisted record and counter. It is called once when an
	// engine opens.
	Load(ctx context.Context) (Snapshot, error)
	// Commit persists a unit of work. It either persists every write and the
	// counter or returns an error.
	Commit(ctx context.Context, batch Batch) error
	Close() error
}

// Write is a single record upsert.
type Write struct {
	Bucket  string          `json:"bucket"`
	ID      uint64          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Batch groups the writes of one unit of work with the allocator value that
// must be persisted alongside them.
type Batch struct {
	Namespace string  `json:"namespace"`
	Counter   uint64  `json:"counter"`
	Writes    []Write `json:"writes"`
}

// Snapshot captures persisted state keyed by bucket and record id.
type Snapshot struct {
	Counters map[string]uint64                     `json:"counters"`
	Records  map[string]map[uint64]json.RawMessage `json:"records"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		Counters: make(map[string]uint64),
		Records:  make(map[string]map[uint64]json.RawMessage),
	}
}

// Apply folds a batch into the snapshot. Counters never move backwards.
func (s *Snapshot) Apply(batch Batch) {
	if s.Counters == nil {
		s.Counters = make(map[string]uint64)
	}
	if s.Records == nil {
		s.Records = make(map[string]map[uint64]json.RawMessage)
	}
	if batch.Counter > s.Counters[batch.Namespace] {
		s.Counters[batch.Namespace] = batch.Counter
	}
	for _, w := range batch.Writes {
		rows, ok := s.Records[w.Bucket]
		if !ok {
			rows = make(map[uint64]json.RawMessage)
			s.Records[w.Bucket] = rows
		}
		rows[w.ID] = cloneRaw(w.Payload)
	}
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := NewSnapshot()
	for ns, v := range s.Counters {
		out.Counters[ns] = v
	}
	for bucket, rows := range s.Records {
		cp := make(map[uint64]json.RawMessage, len(rows))
		for id, payload := range rows {
			cp[id] = cloneRaw(payload)
		}
		out.Records[bucket] = cp
	}
	return out
}

// Buckets returns the bucket names in the snapshot in sorted order.
func (s Snapshot) Buckets() []string {
	out := make([]string, 0, len(s.Records))
	for bucket := range s.Records {
		out = append(out, bucket)
	}
	sort.Strings(out)
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	return cp
}

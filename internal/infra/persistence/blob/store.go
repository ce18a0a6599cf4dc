// Package blob provides a store.Backend on top of an object store (local
// filesystem, S3 or memory). Every committed batch is written as a single
// journal object, so a commit is visible in full or not at all. Journals are
// periodically folded into one snapshot object per namespace.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"recordstore/internal/blob/core"
	"recordstore/internal/store"
)

const (
	journalPrefix  = "journal/"
	snapshotPrefix = "snapshots/"
	objectSuffix   = ".json"
	contentType    = "application/json"

	// DefaultCompactEvery is the number of journal objects per namespace that
	// triggers compaction.
	DefaultCompactEvery = 128
)

// Store implements store.Backend over a core.Store.
type Store struct {
	mu           sync.Mutex
	objects      core.Store
	compactEvery uint64
	loaded       bool
	state        store.Snapshot
	seq          map[string]uint64
	folded       map[string]uint64
	compactErr   error
}

var _ store.Backend = (*Store)(nil)

// Option customises a Store.
type Option func(*Store)

// WithCompactEvery sets the compaction threshold; zero disables automatic compaction.
func WithCompactEvery(n uint64) Option {
	return func(s *Store) { s.compactEvery = n }
}

// New wraps objects as a record backend.
func New(objects core.Store, opts ...Option) *Store {
	s := &Store{objects: objects, compactEvery: DefaultCompactEvery}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

// Objects returns the underlying object store.
func (s *Store) Objects() core.Store { return s.objects }

type snapshotObject struct {
	Seq     uint64                                `json:"seq"`
	Counter uint64                                `json:"counter"`
	Records map[string]map[uint64]json.RawMessage `json:"records"`
}

func (s *Store) reset() {
	s.state = store.NewSnapshot()
	s.seq = make(map[string]uint64)
	s.folded = make(map[string]uint64)
	s.loaded = false
}

// Load applies every snapshot object and then every journal object written
// after it.
func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return store.Snapshot{}, err
	}
	return s.state.Clone(), nil
}

func (s *Store) loadLocked(ctx context.Context) error {
	s.reset()
	snapshots, err := s.objects.List(ctx, snapshotPrefix)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	for _, info := range snapshots {
		ns, ok := parseSnapshotKey(info.Key)
		if !ok {
			continue
		}
		var snap snapshotObject
		if err := s.readJSON(ctx, info.Key, &snap); err != nil {
			return err
		}
		s.state.Apply(store.Batch{Namespace: ns, Counter: snap.Counter})
		for bucket, rows := range snap.Records {
			if !inNamespace(bucket, ns) {
				return fmt.Errorf("snapshot %s: bucket %s outside namespace", info.Key, bucket)
			}
			for id, payload := range rows {
				s.state.Apply(store.Batch{Namespace: ns, Writes: []store.Write{{Bucket: bucket, ID: id, Payload: payload}}})
			}
		}
		s.folded[ns] = snap.Seq
		s.seq[ns] = snap.Seq
	}

	journal, err := s.objects.List(ctx, journalPrefix)
	if err != nil {
		return fmt.Errorf("list journal: %w", err)
	}
	for _, info := range journal {
		ns, seq, ok := parseJournalKey(info.Key)
		if !ok || seq <= s.folded[ns] {
			continue
		}
		var batch store.Batch
		if err := s.readJSON(ctx, info.Key, &batch); err != nil {
			return err
		}
		if batch.Namespace != ns {
			return fmt.Errorf("journal %s: namespace %q does not match key", info.Key, batch.Namespace)
		}
		s.state.Apply(batch)
		if seq > s.seq[ns] {
			s.seq[ns] = seq
		}
	}
	s.loaded = true
	return nil
}

// Commit writes the batch as the next journal object of its namespace.
func (s *Store) Commit(ctx context.Context, batch store.Batch) error {
	if batch.Namespace == "" || strings.ContainsAny(batch.Namespace, "/.") {
		return fmt.Errorf("invalid namespace %q", batch.Namespace)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return err
		}
	}
	next := s.seq[batch.Namespace] + 1
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	key := journalKey(batch.Namespace, next)
	if _, err := s.objects.Put(ctx, key, bytes.NewReader(payload), core.PutOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.seq[batch.Namespace] = next
	s.state.Apply(batch)

	// The batch is durable at this point; a compaction failure is retried on
	// a later commit and never reported as a commit failure.
	if s.compactEvery > 0 && next-s.folded[batch.Namespace] >= s.compactEvery {
		s.compactErr = s.compactLocked(ctx, batch.Namespace)
	}
	return nil
}

// Compact folds every namespace's journal into its snapshot object.
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return err
		}
	}
	for ns := range s.seq {
		if err := s.compactLocked(ctx, ns); err != nil {
			return err
		}
	}
	return nil
}

// LastCompactionError reports the outcome of the most recent automatic compaction.
func (s *Store) LastCompactionError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactErr
}

func (s *Store) compactLocked(ctx context.Context, ns string) error {
	seq := s.seq[ns]
	if seq == s.folded[ns] {
		return nil
	}
	snap := snapshotObject{Seq: seq, Counter: s.state.Counters[ns], Records: make(map[string]map[uint64]json.RawMessage)}
	for bucket, rows := range s.state.Records {
		if inNamespace(bucket, ns) {
			snap.Records[bucket] = rows
		}
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", ns, err)
	}
	if _, err := s.objects.Put(ctx, snapshotKey(ns), bytes.NewReader(payload), core.PutOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("write snapshot %s: %w", ns, err)
	}
	s.folded[ns] = seq

	journal, err := s.objects.List(ctx, journalPrefix+ns+"/")
	if err != nil {
		return fmt.Errorf("list journal %s: %w", ns, err)
	}
	for _, info := range journal {
		if _, n, ok := parseJournalKey(info.Key); ok && n <= seq {
			if _, err := s.objects.Delete(ctx, info.Key); err != nil {
				return fmt.Errorf("delete %s: %w", info.Key, err)
			}
		}
	}
	return nil
}

// Close is a no-op; object stores hold no connection state.
func (s *Store) Close() error { return nil }

func (s *Store) readJSON(ctx context.Context, key string, v any) error {
	_, rc, err := s.objects.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	body, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func journalKey(ns string, seq uint64) string {
	return fmt.Sprintf("%s%s/%020d%s", journalPrefix, ns, seq, objectSuffix)
}

func snapshotKey(ns string) string { return snapshotPrefix + ns + objectSuffix }

func parseJournalKey(key string) (string, uint64, bool) {
	rest, ok := strings.CutPrefix(key, journalPrefix)
	if !ok {
		return "", 0, false
	}
	rest, ok = strings.CutSuffix(rest, objectSuffix)
	if !ok {
		return "", 0, false
	}
	ns, digits, ok := strings.Cut(rest, "/")
	if !ok || ns == "" {
		return "", 0, false
	}
	seq, err := strconv.ParseUint(digits, 10, 64)
	if err != nil || seq == 0 {
		return "", 0, false
	}
	return ns, seq, true
}

func parseSnapshotKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, snapshotPrefix)
	if !ok {
		return "", false
	}
	ns, ok := strings.CutSuffix(rest, objectSuffix)
	if !ok || ns == "" || strings.Contains(ns, "/") {
		return "", false
	}
	return ns, true
}

func inNamespace(bucket, ns string) bool { return strings.HasPrefix(bucket, ns+".") }

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"recordstore/pkg/domain"
)

// ErrNotOpen is returned when a unit of work runs before Open succeeded.
var ErrNotOpen = errors.New("store: engine not opened")

// Engine owns one application's allocator and collections. Mutating units of
// work are serialised with an exclusive lock; reads share a read lock.
type Engine struct {
	mu        sync.RWMutex
	namespace string
	backend   Backend
	tables    map[string]table
	byEntity  map[domain.EntityType]table
	alloc     Allocator
	rules     *domain.RulesEngine
	nowFn     domain.Clock
	opened    bool
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the creation timestamp source.
func WithClock(clock domain.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.nowFn = clock
		}
	}
}

// WithRules installs a rules engine evaluated before every commit.
func WithRules(rules *domain.RulesEngine) Option {
	return func(e *Engine) { e.rules = rules }
}

// New constructs an engine for namespace persisting through backend. Register
// collections with NewCollection, then call Open.
func New(namespace string, backend Backend, opts ...Option) *Engine {
	e := &Engine{
		namespace: namespace,
		backend:   backend,
		tables:    make(map[string]table),
		byEntity:  make(map[domain.EntityType]table),
		nowFn:     domain.SystemClock,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Namespace returns the application namespace that prefixes every bucket.
func (e *Engine) Namespace() string { return e.namespace }

func (e *Engine) bucketName(name string) string { return e.namespace + "." + name }

func (e *Engine) register(t table) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opened {
		panic(fmt.Sprintf("store: collection %s registered after open", t.bucket()))
	}
	if _, dup := e.tables[t.bucket()]; dup {
		panic(fmt.Sprintf("store: collection %s registered twice", t.bucket()))
	}
	e.tables[t.bucket()] = t
	e.byEntity[t.entity()] = t
}

// Open hydrates the collections and the allocator from the backend. The
// allocator resumes at the larger of the persisted counter and the highest
// persisted id, so identifiers are never reissued.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opened {
		return nil
	}
	snapshot, err := e.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", e.namespace, err)
	}
	prefix := e.namespace + "."
	for _, bucket := range snapshot.Buckets() {
		if !strings.HasPrefix(bucket, prefix) {
			continue
		}
		t, ok := e.tables[bucket]
		if !ok {
			return fmt.Errorf("load %s: unknown bucket %s", e.namespace, bucket)
		}
		for id, payload := range snapshot.Records[bucket] {
			if err := t.hydrate(id, payload); err != nil {
				return fmt.Errorf("load %s: %w", e.namespace, err)
			}
		}
		e.alloc.Observe(t.maxID())
	}
	e.alloc.Observe(snapshot.Counters[e.namespace])
	e.opened = true
	return nil
}

// LastID returns the most recently committed identifier.
func (e *Engine) LastID() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alloc.Last()
}

// Close releases the backend.
func (e *Engine) Close() error {
	return e.backend.Close()
}

// Update runs fn as one exclusive unit of work. Pending writes become visible
// to other scopes only after rules pass and the backend commit succeeds; any
// error leaves committed state and the allocator untouched.
func (e *Engine) Update(ctx context.Context, fn func(tx *Tx) error) (domain.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return domain.Result{}, ErrNotOpen
	}

	tx := &Tx{
		engine:  e,
		alloc:   e.alloc,
		pending: make(map[string]map[uint64]any),
		now:     e.nowFn(),
	}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if e.rules != nil {
		res, err := e.rules.Evaluate(ctx, txView{tx: tx}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.order) == 0 && tx.alloc.Last() == e.alloc.Last() {
		return result, nil
	}
	batch := Batch{Namespace: e.namespace, Counter: tx.alloc.Last()}
	for _, key := range tx.order {
		payload, err := e.tables[key.bucket].encode(tx.pending[key.bucket][key.id])
		if err != nil {
			return domain.Result{}, err
		}
		batch.Writes = append(batch.Writes, Write{Bucket: key.bucket, ID: key.id, Payload: payload})
	}
	if err := e.backend.Commit(ctx, batch); err != nil {
		return domain.Result{}, fmt.Errorf("commit %s: %w", e.namespace, err)
	}
	for _, key := range tx.order {
		e.tables[key.bucket].apply(key.id, tx.pending[key.bucket][key.id])
	}
	e.alloc = tx.alloc
	return result, nil
}

// View runs fn against committed state under a shared lock.
func (e *Engine) View(_ context.Context, fn func(v *View) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.opened {
		return ErrNotOpen
	}
	return fn(&View{engine: e})
}

// Export returns a snapshot of committed state for this namespace.
func (e *Engine) Export() (Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := NewSnapshot()
	snapshot.Counters[e.namespace] = e.alloc.Last()
	for bucket, t := range e.tables {
		rows := make(map[uint64]json.RawMessage)
		if err := t.export(rows); err != nil {
			return Snapshot{}, fmt.Errorf("export %s: %w", bucket, err)
		}
		snapshot.Records[bucket] = rows
	}
	return snapshot, nil
}

// Tx is an exclusive unit of work. It buffers writes and allocator advances
// until the engine commits them.
type Tx struct {
	engine  *Engine
	alloc   Allocator
	pending map[string]map[uint64]any
	order   []writeKey
	changes []domain.Change
	now     time.Time
}

type writeKey struct {
	bucket string
	id     uint64
}

// NextID allocates the next identifier within the unit of work.
func (tx *Tx) NextID() (uint64, error) {
	return tx.alloc.Next()
}

// Now returns the timestamp stamped on records created in this unit of work.
func (tx *Tx) Now() time.Time { return tx.now }

// Changes returns the changes recorded so far.
func (tx *Tx) Changes() []domain.Change {
	return append([]domain.Change(nil), tx.changes...)
}

func (tx *Tx) stage(bucket string, id uint64, v any) {
	rows, ok := tx.pending[bucket]
	if !ok {
		rows = make(map[uint64]any)
		tx.pending[bucket] = rows
	}
	if _, seen := rows[id]; !seen {
		tx.order = append(tx.order, writeKey{bucket: bucket, id: id})
	}
	rows[id] = v
}

func (tx *Tx) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *Tx) overlay(bucket string) map[uint64]any { return tx.pending[bucket] }
func (tx *Tx) owner() *Engine                       { return tx.engine }

// View is a read-only scope over committed state.
type View struct {
	engine *Engine
}

func (v *View) overlay(string) map[uint64]any { return nil }
func (v *View) owner() *Engine                { return v.engine }

// txView adapts a unit of work to domain.RuleView.
type txView struct{ tx *Tx }

func (v txView) Exists(entity domain.EntityType, id uint64) bool {
	t, ok := v.tx.engine.byEntity[entity]
	if !ok {
		return false
	}
	if rows := v.tx.pending[t.bucket()]; rows != nil {
		if _, ok := rows[id]; ok {
			return true
		}
	}
	return t.committed(id)
}

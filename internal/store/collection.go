package store

import (
	"encoding/json"
	"fmt"
	"iter"
	"slices"

	"recordstore/pkg/domain"
)

// table is the type-erased view of a Collection used by the engine for
// hydration, encoding and commit.
type table interface {
	bucket() string
	entity() domain.EntityType
	hydrate(id uint64, payload json.RawMessage) error
	encode(v any) (json.RawMessage, error)
	apply(id uint64, v any)
	committed(id uint64) bool
	maxID() uint64
	export(into map[uint64]json.RawMessage) error
}

// Reader is a scope that can read collections: a *Tx sees its own pending
// writes on top of committed state, a *View sees committed state only.
type Reader interface {
	overlay(bucket string) map[uint64]any
	owner() *Engine
}

// Collection is a persistent, id-ordered mapping from identifier to a record
// of one entity kind. Records are cloned on the way in and out so callers
// never alias stored state.
type Collection[T domain.Record] struct {
	engine *Engine
	kind   domain.EntityType
	name   string
	clone  func(T) T
	rows   map[uint64]T
	ids    []uint64
}

// NewCollection registers a collection for entity under name on the engine.
// It must be called before the engine is opened. clone deep-copies a record;
// nil means records hold no reference types.
func NewCollection[T domain.Record](e *Engine, entity domain.EntityType, name string, clone func(T) T) *Collection[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	c := &Collection[T]{
		engine: e,
		kind:   entity,
		name:   e.bucketName(name),
		clone:  clone,
		rows:   make(map[uint64]T),
	}
	e.register(c)
	return c
}

// Bucket returns the namespaced persistence bucket.
func (c *Collection[T]) Bucket() string { return c.name }

// Entity returns the entity kind stored in the collection.
func (c *Collection[T]) Entity() domain.EntityType { return c.kind }

// Get looks up id. Absence is a normal outcome.
func (c *Collection[T]) Get(r Reader, id uint64) (T, bool) {
	c.mustOwn(r)
	if pending := r.overlay(c.name); pending != nil {
		if v, ok := pending[id]; ok {
			return c.clone(v.(T)), true
		}
	}
	v, ok := c.rows[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.clone(v), true
}

// Contains reports whether id exists without materialising the record.
func (c *Collection[T]) Contains(r Reader, id uint64) bool {
	c.mustOwn(r)
	if pending := r.overlay(c.name); pending != nil {
		if _, ok := pending[id]; ok {
			return true
		}
	}
	_, ok := c.rows[id]
	return ok
}

// All traverses the collection in ascending id order. The sequence is lazy and
// may be ranged over any number of times within the scope that produced it.
func (c *Collection[T]) All(r Reader) iter.Seq2[uint64, T] {
	c.mustOwn(r)
	pending := r.overlay(c.name)
	return func(yield func(uint64, T) bool) {
		var extra []uint64
		for id := range pending {
			if _, ok := c.rows[id]; !ok {
				extra = append(extra, id)
			}
		}
		slices.Sort(extra)
		next := func(id uint64) (T, bool) {
			if v, ok := pending[id]; ok {
				return c.clone(v.(T)), true
			}
			v, ok := c.rows[id]
			return c.clone(v), ok
		}
		i, j := 0, 0
		for i < len(c.ids) || j < len(extra) {
			var id uint64
			if j >= len(extra) || (i < len(c.ids) && c.ids[i] < extra[j]) {
				id = c.ids[i]
				i++
			} else {
				id = extra[j]
				j++
			}
			v, ok := next(id)
			if !ok {
				continue
			}
			if !yield(id, v) {
				return
			}
		}
	}
}

// Filter collects the records matching keep in ascending id order.
func (c *Collection[T]) Filter(r Reader, keep func(T) bool) []T {
	var out []T
	for _, v := range c.All(r) {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Insert stores v under its id within the unit of work, overwriting any
// existing record. It is used for both first insert and in-place update.
func (c *Collection[T]) Insert(tx *Tx, v T) error {
	c.mustOwn(tx)
	id := v.RecordID()
	if id == 0 {
		return fmt.Errorf("%s: insert requires an allocated id", c.kind)
	}
	before, existed := c.Get(tx, id)
	tx.stage(c.name, id, c.clone(v))
	change := domain.Change{Entity: c.kind, Action: domain.ActionCreate, After: c.clone(v)}
	if existed {
		change.Action = domain.ActionUpdate
		change.Before = before
	}
	tx.recordChange(change)
	return nil
}

// Update applies mutator to the record at id in one read-modify-write. The id
// and embedded creation metadata are whatever mutator leaves; callers must not
// change the id.
func (c *Collection[T]) Update(tx *Tx, id uint64, mutator func(*T) error) (T, error) {
	current, ok := c.Get(tx, id)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %d not found", c.kind, id)
	}
	if err := mutator(&current); err != nil {
		var zero T
		return zero, err
	}
	if current.RecordID() != id {
		var zero T
		return zero, fmt.Errorf("%s %d: mutator changed record id to %d", c.kind, id, current.RecordID())
	}
	if err := c.Insert(tx, current); err != nil {
		var zero T
		return zero, err
	}
	return c.clone(current), nil
}

func (c *Collection[T]) mustOwn(r Reader) {
	if r.owner() != c.engine {
		panic(fmt.Sprintf("store: collection %s used with a scope from another engine", c.name))
	}
}

func (c *Collection[T]) bucket() string            { return c.name }
func (c *Collection[T]) entity() domain.EntityType { return c.kind }

func (c *Collection[T]) hydrate(id uint64, payload json.RawMessage) error {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("decode %s %d: %w", c.name, id, err)
	}
	if v.RecordID() != id {
		return fmt.Errorf("decode %s %d: payload carries id %d", c.name, id, v.RecordID())
	}
	c.apply(id, v)
	return nil
}

func (c *Collection[T]) encode(v any) (json.RawMessage, error) {
	rec, ok := v.(T)
	if !ok {
		return nil, fmt.Errorf("encode %s: unexpected %T", c.name, v)
	}
	return json.Marshal(rec)
}

func (c *Collection[T]) apply(id uint64, v any) {
	rec := c.clone(v.(T))
	if _, exists := c.rows[id]; !exists {
		if n := len(c.ids); n == 0 || c.ids[n-1] < id {
			c.ids = append(c.ids, id)
		} else {
			pos, _ := slices.BinarySearch(c.ids, id)
			c.ids = slices.Insert(c.ids, pos, id)
		}
	}
	c.rows[id] = rec
}

func (c *Collection[T]) committed(id uint64) bool {
	_, ok := c.rows[id]
	return ok
}

func (c *Collection[T]) maxID() uint64 {
	if len(c.ids) == 0 {
		return 0
	}
	return c.ids[len(c.ids)-1]
}

func (c *Collection[T]) export(into map[uint64]json.RawMessage) error {
	for _, id := range c.ids {
		payload, err := json.Marshal(c.rows[id])
		if err != nil {
			return err
		}
		into[id] = payload
	}
	return nil
}

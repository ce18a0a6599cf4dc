package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"recordstore/pkg/domain"
)

type widget struct {
	domain.Base
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func cloneWidget(w widget) widget {
	w.Tags = append([]string(nil), w.Tags...)
	return w
}

type fakeBackend struct {
	snapshot  Snapshot
	commits   []Batch
	failNext  error
	loadErr   error
	closeHits int
}

func newFakeBackend() *fakeBackend { return &fakeBackend{snapshot: NewSnapshot()} }

func (b *fakeBackend) Load(context.Context) (Snapshot, error) {
	if b.loadErr != nil {
		return Snapshot{}, b.loadErr
	}
	return b.snapshot.Clone(), nil
}

func (b *fakeBackend) Commit(_ context.Context, batch Batch) error {
	if b.failNext != nil {
		err := b.failNext
		b.failNext = nil
		return err
	}
	b.commits = append(b.commits, batch)
	b.snapshot.Apply(batch)
	return nil
}

func (b *fakeBackend) Close() error { b.closeHits++; return nil }

func openWidgets(t *testing.T, backend Backend, opts ...Option) (*Engine, *Collection[widget]) {
	t.Helper()
	engine := New("test", backend, opts...)
	widgets := NewCollection(engine, domain.EntityType("widget"), "widgets", cloneWidget)
	if err := engine.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	return engine, widgets
}

func createWidget(t *testing.T, engine *Engine, widgets *Collection[widget], name string) widget {
	t.Helper()
	var created widget
	_, err := engine.Update(context.Background(), func(tx *Tx) error {
		id, err := tx.NextID()
		if err != nil {
			return err
		}
		created = widget{Base: domain.Base{ID: id, CreatedAt: tx.Now()}, Name: name}
		return widgets.Insert(tx, created)
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return created
}

func TestEngineAllocatesStrictlyIncreasingIDs(t *testing.T) {
	engine, widgets := openWidgets(t, newFakeBackend())
	var last uint64
	for i := 0; i < 5; i++ {
		w := createWidget(t, engine, widgets, fmt.Sprintf("w%d", i))
		if w.ID <= last {
			t.Fatalf("id %d not greater than %d", w.ID, last)
		}
		last = w.ID
	}
	if last != 5 || engine.LastID() != 5 {
		t.Fatalf("expected ids 1..5, last=%d engine=%d", last, engine.LastID())
	}
}

func TestEngineCommitFailureConsumesNoID(t *testing.T) {
	backend := newFakeBackend()
	engine, widgets := openWidgets(t, backend)
	createWidget(t, engine, widgets, "first")

	backend.failNext = errors.New("disk full")
	_, err := engine.Update(context.Background(), func(tx *Tx) error {
		id, _ := tx.NextID()
		return widgets.Insert(tx, widget{Base: domain.Base{ID: id}, Name: "lost"})
	})
	if err == nil {
		t.Fatalf("expected commit error")
	}
	if engine.LastID() != 1 {
		t.Fatalf("allocator advanced on failed commit: %d", engine.LastID())
	}
	_ = engine.View(context.Background(), func(v *View) error {
		if widgets.Contains(v, 2) {
			t.Fatalf("failed write became visible")
		}
		return nil
	})
	next := createWidget(t, engine, widgets, "second")
	if next.ID != 2 {
		t.Fatalf("expected id 2 after failed commit, got %d", next.ID)
	}
}

func TestEngineFnErrorDiscardsPendingWrites(t *testing.T) {
	backend := newFakeBackend()
	engine, widgets := openWidgets(t, backend)
	boom := errors.New("validation")
	_, err := engine.Update(context.Background(), func(tx *Tx) error {
		id, _ := tx.NextID()
		if err := widgets.Insert(tx, widget{Base: domain.Base{ID: id}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(backend.commits) != 0 || engine.LastID() != 0 {
		t.Fatalf("expected nothing committed")
	}
}

func TestEngineReopenResumesAllocatorAndOrder(t *testing.T) {
	backend := newFakeBackend()
	engine, widgets := openWidgets(t, backend)
	for _, name := range []string{"a", "b", "c"} {
		createWidget(t, engine, widgets, name)
	}

	reopened, widgets2 := openWidgets(t, backend)
	var names []string
	_ = reopened.View(context.Background(), func(v *View) error {
		for _, w := range widgets2.All(v) {
			names = append(names, w.Name)
		}
		return nil
	})
	if fmt.Sprint(names) != "[a b c]" {
		t.Fatalf("unexpected order after reload: %v", names)
	}
	if next := createWidget(t, reopened, widgets2, "d"); next.ID != 4 {
		t.Fatalf("expected id 4 after reopen, got %d", next.ID)
	}
}

func TestEngineOpenObservesHighestPersistedID(t *testing.T) {
	backend := newFakeBackend()
	// A torn commit persisted record 7 without advancing the counter.
	backend.snapshot.Apply(Batch{Namespace: "test", Counter: 3, Writes: []Write{{Bucket: "test.widgets", ID: 7, Payload: []byte(`{"id":7,"name":"orphan"}`)}}})
	engine, _ := openWidgets(t, backend)
	if engine.LastID() != 7 {
		t.Fatalf("expected allocator to resume at 7, got %d", engine.LastID())
	}
}

func TestEngineOpenRejectsUnknownBucketAndBadPayload(t *testing.T) {
	backend := newFakeBackend()
	backend.snapshot.Apply(Batch{Namespace: "test", Writes: []Write{{Bucket: "test.gadgets", ID: 1, Payload: []byte(`{}`)}}})
	engine := New("test", backend)
	NewCollection[widget](engine, "widget", "widgets", nil)
	if err := engine.Open(context.Background()); err == nil {
		t.Fatalf("expected unknown bucket error")
	}

	backend = newFakeBackend()
	backend.snapshot.Apply(Batch{Namespace: "test", Writes: []Write{{Bucket: "test.widgets", ID: 1, Payload: []byte(`{"id":2}`)}}})
	engine = New("test", backend)
	NewCollection[widget](engine, "widget", "widgets", nil)
	if err := engine.Open(context.Background()); err == nil {
		t.Fatalf("expected id mismatch error")
	}

	backend = newFakeBackend()
	backend.loadErr = errors.New("unreachable")
	engine = New("test", backend)
	if err := engine.Open(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestEngineIgnoresOtherNamespaces(t *testing.T) {
	backend := newFakeBackend()
	backend.snapshot.Apply(Batch{Namespace: "other", Counter: 40, Writes: []Write{{Bucket: "other.things", ID: 40, Payload: []byte(`{}`)}}})
	engine, _ := openWidgets(t, backend)
	if engine.LastID() != 0 {
		t.Fatalf("other namespace leaked into allocator: %d", engine.LastID())
	}
}

func TestEngineNotOpened(t *testing.T) {
	engine := New("test", newFakeBackend())
	if _, err := engine.Update(context.Background(), func(*Tx) error { return nil }); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
	if err := engine.View(context.Background(), func(*View) error { return nil }); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestEngineStampsInjectedClock(t *testing.T) {
	fixed := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	engine, widgets := openWidgets(t, newFakeBackend(), WithClock(func() time.Time { return fixed }))
	w := createWidget(t, engine, widgets, "clocked")
	if !w.CreatedAt.Equal(fixed) {
		t.Fatalf("expected injected time, got %v", w.CreatedAt)
	}
}

type blockRule struct{}

func (blockRule) Name() string { return "block_all" }

func (blockRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, c := range changes {
		w := c.After.(widget)
		if w.Name == "forbidden" && view.Exists("widget", w.ID) {
			res.Violations = append(res.Violations, domain.Violation{Rule: "block_all", Severity: domain.SeverityBlock, Message: "forbidden widget"})
		}
	}
	return res, nil
}

func TestEngineRulesBlockCommit(t *testing.T) {
	rules := domain.NewRulesEngine()
	rules.Register(blockRule{})
	backend := newFakeBackend()
	engine, widgets := openWidgets(t, backend, WithRules(rules))
	_, err := engine.Update(context.Background(), func(tx *Tx) error {
		id, _ := tx.NextID()
		return widgets.Insert(tx, widget{Base: domain.Base{ID: id}, Name: "forbidden"})
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if len(backend.commits) != 0 || engine.LastID() != 0 {
		t.Fatalf("blocked unit of work must not commit")
	}
	createWidget(t, engine, widgets, "allowed")
}

func TestCollectionUpdateIsSingleWrite(t *testing.T) {
	backend := newFakeBackend()
	engine, widgets := openWidgets(t, backend)
	w := createWidget(t, engine, widgets, "tagged")

	var changes []domain.Change
	_, err := engine.Update(context.Background(), func(tx *Tx) error {
		if _, err := widgets.Update(tx, w.ID, func(cur *widget) error {
			cur.Tags = append(cur.Tags, "one")
			cur.Name = "renamed"
			return nil
		}); err != nil {
			return err
		}
		changes = tx.Changes()
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	last := backend.commits[len(backend.commits)-1]
	if len(last.Writes) != 1 {
		t.Fatalf("expected one write, got %d", len(last.Writes))
	}
	if len(changes) != 1 || changes[0].Action != domain.ActionUpdate || changes[0].Before.(widget).Name != "tagged" {
		t.Fatalf("unexpected change log %+v", changes)
	}

	_, err = engine.Update(context.Background(), func(tx *Tx) error {
		_, err := widgets.Update(tx, w.ID, func(cur *widget) error { cur.ID = 99; return nil })
		return err
	})
	if err == nil {
		t.Fatalf("expected id change to be rejected")
	}
	_, err = engine.Update(context.Background(), func(tx *Tx) error {
		_, err := widgets.Update(tx, 42, func(*widget) error { return nil })
		return err
	})
	if err == nil {
		t.Fatalf("expected missing record error")
	}
}

func TestCollectionReadsAreIsolatedCopies(t *testing.T) {
	engine, widgets := openWidgets(t, newFakeBackend())
	var id uint64
	_, _ = engine.Update(context.Background(), func(tx *Tx) error {
		id, _ = tx.NextID()
		return widgets.Insert(tx, widget{Base: domain.Base{ID: id}, Tags: []string{"a"}})
	})
	_ = engine.View(context.Background(), func(v *View) error {
		got, _ := widgets.Get(v, id)
		got.Tags[0] = "mutated"
		again, _ := widgets.Get(v, id)
		if again.Tags[0] != "a" {
			t.Fatalf("stored record aliased by caller")
		}
		return nil
	})
}

func TestCollectionTxSeesPendingWritesInOrder(t *testing.T) {
	engine, widgets := openWidgets(t, newFakeBackend())
	createWidget(t, engine, widgets, "committed")
	_, err := engine.Update(context.Background(), func(tx *Tx) error {
		id, _ := tx.NextID()
		if err := widgets.Insert(tx, widget{Base: domain.Base{ID: id}, Name: "pending"}); err != nil {
			return err
		}
		if _, err := widgets.Update(tx, 1, func(w *widget) error { w.Name = "changed"; return nil }); err != nil {
			return err
		}
		var names []string
		for seen, w := range widgets.All(tx) {
			names = append(names, fmt.Sprintf("%d:%s", seen, w.Name))
		}
		if fmt.Sprint(names) != "[1:changed 2:pending]" {
			t.Fatalf("unexpected tx view %v", names)
		}
		if !widgets.Contains(tx, id) {
			t.Fatalf("pending insert invisible to its own tx")
		}
		filtered := widgets.Filter(tx, func(w widget) bool { return w.Name == "pending" })
		if len(filtered) != 1 {
			t.Fatalf("filter mismatch: %+v", filtered)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestCollectionInsertRequiresID(t *testing.T) {
	engine, widgets := openWidgets(t, newFakeBackend())
	_, err := engine.Update(context.Background(), func(tx *Tx) error {
		return widgets.Insert(tx, widget{Name: "no id"})
	})
	if err == nil {
		t.Fatalf("expected error for zero id")
	}
}

func TestCollectionAllStopsEarly(t *testing.T) {
	engine, widgets := openWidgets(t, newFakeBackend())
	for i := 0; i < 3; i++ {
		createWidget(t, engine, widgets, fmt.Sprint(i))
	}
	_ = engine.View(context.Background(), func(v *View) error {
		count := 0
		for range widgets.All(v) {
			count++
			if count == 2 {
				break
			}
		}
		if count != 2 {
			t.Fatalf("expected early stop, got %d", count)
		}
		return nil
	})
}

func TestEngineExport(t *testing.T) {
	engine, widgets := openWidgets(t, newFakeBackend())
	createWidget(t, engine, widgets, "x")
	snapshot, err := engine.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if snapshot.Counters["test"] != 1 || len(snapshot.Records["test.widgets"]) != 1 {
		t.Fatalf("unexpected export %+v", snapshot)
	}
}

func TestAllocatorExhaustion(t *testing.T) {
	a := Allocator{last: MaxID - 1}
	if id, err := a.Next(); err != nil || id != MaxID {
		t.Fatalf("expected last id %d, got %d %v", uint64(MaxID), id, err)
	}
	if _, err := a.Next(); !errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("expected exhaustion past the signed range, got %v", err)
	}
	over := Allocator{last: ^uint64(0)}
	if _, err := over.Next(); !errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	var b Allocator
	b.Observe(10)
	b.Observe(3)
	if id, _ := b.Next(); id != 11 {
		t.Fatalf("expected 11, got %d", id)
	}
}

func TestRegisterAfterOpenPanics(t *testing.T) {
	engine, _ := openWidgets(t, newFakeBackend())
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewCollection[widget](engine, "widget", "late", nil)
}

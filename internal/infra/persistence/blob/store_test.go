package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"recordstore/internal/blob/core"
	fsblob "recordstore/internal/infra/blob/fs"
	memblob "recordstore/internal/infra/blob/memory"
	s3blob "recordstore/internal/infra/blob/s3"
	"recordstore/internal/store"
)

func batch(ns string, counter uint64, ids ...uint64) store.Batch {
	b := store.Batch{Namespace: ns, Counter: counter}
	for _, id := range ids {
		b.Writes = append(b.Writes, store.Write{Bucket: ns + ".items", ID: id, Payload: json.RawMessage(`{"id":` + jsonNumber(id) + `}`)})
	}
	return b
}

func jsonNumber(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func commitAll(t *testing.T, s *Store, batches ...store.Batch) {
	t.Helper()
	for _, b := range batches {
		if err := s.Commit(context.Background(), b); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
}

func TestStoreReplaysJournalAcrossInstances(t *testing.T) {
	objects := memblob.New()
	first := New(objects, WithCompactEvery(0))
	if _, err := first.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	commitAll(t, first, batch("marketplace", 1, 1), batch("marketplace", 2, 2), batch("bookswap", 1, 1))

	journal, _ := objects.List(context.Background(), journalPrefix)
	if len(journal) != 3 {
		t.Fatalf("expected one journal object per batch, got %d", len(journal))
	}

	second := New(objects)
	snap, err := second.Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if snap.Counters["marketplace"] != 2 || snap.Counters["bookswap"] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
	if len(snap.Records["marketplace.items"]) != 2 || len(snap.Records["bookswap.items"]) != 1 {
		t.Fatalf("unexpected records %+v", snap.Records)
	}
}

func TestStoreFailedPutPersistsNothing(t *testing.T) {
	objects := memblob.New()
	s := New(objects)
	boom := errors.New("quota exceeded")
	objects.FailPut = func(string) error { return boom }
	if err := s.Commit(context.Background(), batch("ns", 1, 1)); !errors.Is(err, boom) {
		t.Fatalf("expected put error, got %v", err)
	}
	objects.FailPut = nil
	commitAll(t, s, batch("ns", 1, 1))
	list, _ := objects.List(context.Background(), journalPrefix)
	if len(list) != 1 || !strings.HasSuffix(list[0].Key, "00000000000000000001.json") {
		t.Fatalf("failed commit consumed a journal sequence: %+v", list)
	}
}

func TestStoreCompactionFoldsJournal(t *testing.T) {
	ctx := context.Background()
	objects := memblob.New()
	s := New(objects, WithCompactEvery(3))
	commitAll(t, s, batch("ns", 1, 1), batch("ns", 2, 2), batch("ns", 3, 3), batch("ns", 4, 4))
	if err := s.LastCompactionError(); err != nil {
		t.Fatalf("compaction: %v", err)
	}
	journal, _ := objects.List(ctx, journalPrefix)
	if len(journal) != 1 {
		t.Fatalf("expected only the post-compaction journal object, got %+v", journal)
	}
	if _, err := objects.Head(ctx, snapshotKey("ns")); err != nil {
		t.Fatalf("expected snapshot object: %v", err)
	}
	snap, err := New(objects).Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if snap.Counters["ns"] != 4 || len(snap.Records["ns.items"]) != 4 {
		t.Fatalf("unexpected state after compaction %+v", snap)
	}

	if err := s.Compact(ctx); err != nil {
		t.Fatalf("manual compact: %v", err)
	}
	if journal, _ := objects.List(ctx, journalPrefix); len(journal) != 0 {
		t.Fatalf("expected empty journal after manual compaction, got %+v", journal)
	}
}

func TestStoreSkipsJournalAlreadyFolded(t *testing.T) {
	ctx := context.Background()
	objects := memblob.New()
	s := New(objects, WithCompactEvery(0))
	commitAll(t, s, batch("ns", 1, 1), batch("ns", 2, 2))
	if err := s.Compact(ctx); err != nil {
		t.Fatalf("compact: %v", err)
	}
	// A crash between snapshot write and journal cleanup leaves folded objects behind.
	stale, _ := json.Marshal(store.Batch{Namespace: "ns", Counter: 1, Writes: []store.Write{{Bucket: "ns.items", ID: 1, Payload: json.RawMessage(`{"id":1,"stale":true}`)}}})
	if _, err := objects.Put(ctx, journalKey("ns", 1), bytes.NewReader(stale), core.PutOptions{}); err != nil {
		t.Fatalf("put stale: %v", err)
	}
	snap, err := New(objects).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if strings.Contains(string(snap.Records["ns.items"][1]), "stale") {
		t.Fatalf("folded journal object was replayed over the snapshot")
	}
	reopened := New(objects)
	commitAll(t, reopened, batch("ns", 3, 3))
	if _, err := objects.Head(ctx, journalKey("ns", 3)); err != nil {
		t.Fatalf("expected sequence to continue after snapshot: %v", err)
	}
}

func TestStoreRejectsBadNamespace(t *testing.T) {
	s := New(memblob.New())
	for _, ns := range []string{"", "a/b", "a.b"} {
		if err := s.Commit(context.Background(), store.Batch{Namespace: ns}); err == nil {
			t.Fatalf("expected namespace %q to be rejected", ns)
		}
	}
}

func TestStoreLoadRejectsCorruptObjects(t *testing.T) {
	ctx := context.Background()
	objects := memblob.New()
	_, _ = objects.Put(ctx, journalKey("ns", 1), bytes.NewReader([]byte("{")), core.PutOptions{})
	if _, err := New(objects).Load(ctx); err == nil {
		t.Fatalf("expected decode error")
	}

	objects = memblob.New()
	wrong, _ := json.Marshal(store.Batch{Namespace: "other"})
	_, _ = objects.Put(ctx, journalKey("ns", 1), bytes.NewReader(wrong), core.PutOptions{})
	if _, err := New(objects).Load(ctx); err == nil {
		t.Fatalf("expected namespace mismatch error")
	}

	objects = memblob.New()
	foreign, _ := json.Marshal(snapshotObject{Seq: 1, Records: map[string]map[uint64]json.RawMessage{"other.items": {1: json.RawMessage(`{}`)}}})
	_, _ = objects.Put(ctx, snapshotKey("ns"), bytes.NewReader(foreign), core.PutOptions{})
	if _, err := New(objects).Load(ctx); err == nil {
		t.Fatalf("expected foreign bucket error")
	}
}

func TestStoreIgnoresUnrelatedKeys(t *testing.T) {
	ctx := context.Background()
	objects := memblob.New()
	for _, key := range []string{"journal/ns/notanumber.json", "journal/ns/00000000000000000000.json", "journal/loose.json", "snapshots/a/b.json", "other.txt"} {
		_, _ = objects.Put(ctx, key, bytes.NewReader([]byte("garbage")), core.PutOptions{})
	}
	snap, err := New(objects).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Records) != 0 {
		t.Fatalf("unexpected records %+v", snap.Records)
	}
}

func TestStoreOverFilesystemAndS3(t *testing.T) {
	fsObjects, err := fsblob.New(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for name, objects := range map[string]core.Store{"fs": fsObjects, "s3": s3blob.NewMockForTests()} {
		t.Run(name, func(t *testing.T) {
			s := New(objects, WithCompactEvery(2))
			commitAll(t, s, batch("ns", 1, 1), batch("ns", 2, 2), batch("ns", 3, 3))
			snap, err := New(objects).Load(context.Background())
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if snap.Counters["ns"] != 3 || len(snap.Records["ns.items"]) != 3 {
				t.Fatalf("unexpected snapshot %+v", snap)
			}
			if s.Objects().Driver() != objects.Driver() {
				t.Fatalf("driver mismatch")
			}
		})
	}
}

package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestMemoryCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	id, err := store.Create(ctx, "courses", map[string]interface{}{"nombre": "Go"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected storage-assigned id")
	}

	doc, err := store.Get(ctx, "courses/"+id)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if doc.Data["nombre"] != "Go" {
		t.Fatalf("unexpected doc data: %v", doc.Data)
	}

	if err := store.Delete(ctx, "courses/"+id); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if _, err := store.Get(ctx, "courses/"+id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryUpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	if err := store.Set(ctx, "courses/c1", map[string]interface{}{
		"nombre": "Go",
		"cupos":  10,
	}); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if err := store.Update(ctx, "courses/c1", map[string]interface{}{"cupos": 9}); err != nil {
		t.Fatalf("update error: %v", err)
	}

	doc, err := store.Get(ctx, "courses/c1")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if doc.Data["cupos"] != 9 {
		t.Fatalf("expected merged cupos 9, got %v", doc.Data["cupos"])
	}
	if doc.Data["nombre"] != "Go" {
		t.Fatalf("expected untouched field to survive merge, got %v", doc.Data["nombre"])
	}
}

func TestMemoryUpdateMissingDoc(t *testing.T) {
	store := NewMemory()
	if err := store.Update(context.Background(), "courses/nope", map[string]interface{}{"cupos": 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySubscribeDeliversFullSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	var snapshots [][]Doc
	sub, err := store.Subscribe(ctx, "courses", func(docs []Doc) {
		snapshots = append(snapshots, docs)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}
	defer sub.Close()

	if len(snapshots) != 1 || len(snapshots[0]) != 0 {
		t.Fatalf("expected immediate empty snapshot, got %v", snapshots)
	}

	if err := store.Set(ctx, "courses/c1", map[string]interface{}{"nombre": "Go"}); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if err := store.Delete(ctx, "courses/c1"); err != nil {
		t.Fatalf("delete error: %v", err)
	}

	if len(snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snapshots))
	}
	if len(snapshots[1]) != 1 || snapshots[1][0].ID != "c1" {
		t.Fatalf("expected snapshot with c1, got %v", snapshots[1])
	}
	if len(snapshots[2]) != 0 {
		t.Fatalf("expected delete to empty the snapshot, got %v", snapshots[2])
	}
}

func TestMemorySubscribeOrderedAgainstConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	// Writers hammer the collection while a subscriber registers; the
	// initial snapshot must not land behind a later write's delivery.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = store.Set(ctx, fmt.Sprintf("courses/c%d", i%8), map[string]interface{}{"seq": i})
		}
	}()

	var mu sync.Mutex
	var last []Doc
	sub, err := store.Subscribe(ctx, "courses", func(docs []Doc) {
		mu.Lock()
		last = docs
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}
	defer sub.Close()

	close(stop)
	wg.Wait()

	// With the writer quiet, one final write's delivery must be the last
	// snapshot observed and must match the store contents exactly.
	if err := store.Set(ctx, "courses/final", map[string]interface{}{"nombre": "Go"}); err != nil {
		t.Fatalf("set error: %v", err)
	}
	want, err := store.ListAll(ctx, "courses")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}

	mu.Lock()
	got := last
	mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("expected final snapshot with %d docs, got %d", len(want), len(got))
	}
	found := false
	for _, doc := range got {
		if doc.ID == "final" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected final snapshot to contain the last write, got %v", got)
	}
}

func TestMemorySubscriptionClose(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	deliveries := 0
	sub, err := store.Subscribe(ctx, "courses", func([]Doc) { deliveries++ })
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	sub.Close()
	if err := store.Set(ctx, "courses/c1", map[string]interface{}{"nombre": "Go"}); err != nil {
		t.Fatalf("set error: %v", err)
	}
	if deliveries != 1 {
		t.Fatalf("expected no deliveries after Close, got %d", deliveries)
	}
	if sub.Err() != nil {
		t.Fatalf("expected nil error after plain Close, got %v", sub.Err())
	}

	select {
	case <-sub.Done():
	default:
		t.Fatalf("expected Done to be closed")
	}
}

func TestSplitPath(t *testing.T) {
	collection, id, err := splitPath("users/u1/enrollments/c1")
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	if collection != "users/u1/enrollments" || id != "c1" {
		t.Fatalf("unexpected split: %s %s", collection, id)
	}
	if _, _, err := splitPath("courses"); err == nil {
		t.Fatalf("expected bare collection path to error")
	}
	if _, _, err := splitPath("courses/"); err == nil {
		t.Fatalf("expected trailing slash to error")
	}
}

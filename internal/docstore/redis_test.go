package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func redisStore(t *testing.T) *Redis {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client)
}

func TestRedisRoundTrip(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	collection := "it-courses-" + uuid.NewString()

	id, err := store.Create(ctx, collection, map[string]interface{}{
		"nombre": "Go",
		"cupos":  10,
	})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	if err := store.Update(ctx, collection+"/"+id, map[string]interface{}{"cupos": 9}); err != nil {
		t.Fatalf("update error: %v", err)
	}

	doc, err := store.Get(ctx, collection+"/"+id)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	// JSON numbers come back as float64.
	if doc.Data["cupos"] != float64(9) {
		t.Fatalf("expected merged cupos 9, got %v", doc.Data["cupos"])
	}
	if doc.Data["nombre"] != "Go" {
		t.Fatalf("expected untouched field to survive merge, got %v", doc.Data["nombre"])
	}

	if err := store.Delete(ctx, collection+"/"+id); err != nil {
		t.Fatalf("delete error: %v", err)
	}
}

func TestRedisSubscribe(t *testing.T) {
	store := redisStore(t)
	ctx := context.Background()
	collection := "it-courses-" + uuid.NewString()

	snapshots := make(chan []Doc, 16)
	sub, err := store.Subscribe(ctx, collection, func(docs []Doc) {
		snapshots <- docs
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}
	defer sub.Close()

	initial := waitSnapshot(t, snapshots)
	if len(initial) != 0 {
		t.Fatalf("expected empty initial snapshot, got %v", initial)
	}

	if err := store.Set(ctx, collection+"/c1", map[string]interface{}{"nombre": "Go"}); err != nil {
		t.Fatalf("set error: %v", err)
	}
	next := waitSnapshot(t, snapshots)
	if len(next) != 1 || next[0].ID != "c1" {
		t.Fatalf("expected snapshot with c1, got %v", next)
	}
}

func waitSnapshot(t *testing.T, snapshots chan []Doc) []Doc {
	t.Helper()
	select {
	case docs := <-snapshots:
		return docs
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
		return nil
	}
}

package docstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used by tests and as the dev fallback
// when no Redis address is configured. Snapshot deliveries run
// synchronously in the writer's goroutine while the store lock is held,
// so a write returns only after every subscriber has seen the resulting
// snapshot and deliveries can never arrive out of write order. Snapshot
// callbacks must not call back into the store.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]interface{}
	subscribers map[string][]*memorySubscriber

	// Call counters for test assertions.
	Writes int
	Reads  int
}

type memorySubscriber struct {
	onSnapshot SnapshotFunc
	sub        *Subscription
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]map[string]interface{}),
		subscribers: make(map[string][]*memorySubscriber),
	}
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.NewString()
	m.mu.Lock()
	m.Writes++
	m.docs(collection)[id] = copyFields(fields)
	m.notifyLocked(collection)
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) Get(ctx context.Context, path string) (Doc, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Doc{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	fields, ok := m.docs(collection)[id]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{ID: id, Data: copyFields(fields)}, nil
}

func (m *Memory) Set(ctx context.Context, path string, fields map[string]interface{}) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.Writes++
	m.docs(collection)[id] = copyFields(fields)
	m.notifyLocked(collection)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.Writes++
	existing, ok := m.docs(collection)[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	for key, value := range fields {
		existing[key] = value
	}
	m.notifyLocked(collection)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.Writes++
	delete(m.docs(collection), id)
	m.notifyLocked(collection)
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListAll(ctx context.Context, collection string) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	return m.snapshotLocked(collection), nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc) (*Subscription, error) {
	subscriber := &memorySubscriber{onSnapshot: onSnapshot}
	subscriber.sub = newSubscription(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		remaining := m.subscribers[collection][:0]
		for _, other := range m.subscribers[collection] {
			if other != subscriber {
				remaining = append(remaining, other)
			}
		}
		m.subscribers[collection] = remaining
	})

	// Registration and the initial delivery happen under one lock hold,
	// so no concurrent write can interleave an earlier snapshot behind
	// a later one.
	m.mu.Lock()
	m.subscribers[collection] = append(m.subscribers[collection], subscriber)
	onSnapshot(m.snapshotLocked(collection))
	m.mu.Unlock()
	return subscriber.sub, nil
}

// FailSubscriptions tears down every active subscription with err, the
// way a revoked channel would. Tests use it to exercise resubscribe
// handling in consumers.
func (m *Memory) FailSubscriptions(err error) {
	m.mu.Lock()
	var all []*memorySubscriber
	for _, subscribers := range m.subscribers {
		all = append(all, subscribers...)
	}
	m.mu.Unlock()
	for _, subscriber := range all {
		subscriber.sub.fail(err)
	}
}

func (m *Memory) docs(collection string) map[string]map[string]interface{} {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]interface{})
		m.collections[collection] = docs
	}
	return docs
}

func (m *Memory) snapshotLocked(collection string) []Doc {
	docs := make([]Doc, 0, len(m.collections[collection]))
	for id, fields := range m.collections[collection] {
		docs = append(docs, Doc{ID: id, Data: copyFields(fields)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func (m *Memory) notifyLocked(collection string) {
	snapshot := m.snapshotLocked(collection)
	for _, subscriber := range m.subscribers[collection] {
		subscriber.onSnapshot(snapshot)
	}
}

package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("document not found")

// Doc is one stored document: the storage-assigned id plus its fields.
// The id is the last path segment, it is never stored inside the fields.
type Doc struct {
	ID   string
	Data map[string]interface{}
}

// SnapshotFunc receives the complete current contents of a collection.
// Every delivery is authoritative: consumers replace, never merge.
type SnapshotFunc func(docs []Doc)

// Store is the document-store capability the sync core runs against.
// Paths address either a collection ("courses",
// "users/{uid}/enrollments") or a document below one ("courses/{id}").
type Store interface {
	// Create stores fields under a storage-assigned id and returns it.
	Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error)
	Get(ctx context.Context, path string) (Doc, error)
	// Set upserts a document at an explicit key.
	Set(ctx context.Context, path string, fields map[string]interface{}) error
	// Update merges fields into an existing document. Fields not supplied
	// keep their prior values. Fails with ErrNotFound for a missing doc.
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	Delete(ctx context.Context, path string) error
	ListAll(ctx context.Context, collection string) ([]Doc, error)
	// Subscribe delivers the current snapshot immediately and again after
	// every change to the collection, by any client.
	Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc) (*Subscription, error)
}

// Subscription is a cancellable handle on a push channel. Done is closed
// when the channel ends, either by Close or by a transport failure; Err
// reports the failure, nil after a plain Close.
type Subscription struct {
	cancel func()

	once sync.Once
	done chan struct{}
	err  error
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		close(s.done)
	})
}

func (s *Subscription) fail(err error) {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.err = err
		close(s.done)
	})
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func splitPath(path string) (collection, id string, err error) {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	return path[:idx], path[idx+1:], nil
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		out[key] = value
	}
	return out
}

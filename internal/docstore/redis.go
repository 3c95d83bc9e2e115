package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis stores each collection in one hash (field per document, JSON
// value) and publishes the collection name on a channel after every
// write. Subscribers re-read the whole hash on each published change, so
// every delivery is a complete snapshot regardless of which client wrote.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func collectionKey(collection string) string {
	return "docs:" + collection
}

func (r *Redis) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	id := uuid.NewString()
	if err := r.write(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Redis) Get(ctx context.Context, path string) (Doc, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return Doc{}, err
	}
	raw, err := r.client.HGet(ctx, collectionKey(collection), id).Result()
	if err == redis.Nil {
		return Doc{}, ErrNotFound
	}
	if err != nil {
		return Doc{}, fmt.Errorf("docstore get %s: %w", path, err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Doc{}, fmt.Errorf("docstore decode %s: %w", path, err)
	}
	return Doc{ID: id, Data: fields}, nil
}

func (r *Redis) Set(ctx context.Context, path string, fields map[string]interface{}) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	return r.write(ctx, collection, id, fields)
}

func (r *Redis) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	doc, err := r.Get(ctx, path)
	if err != nil {
		return err
	}
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	for key, value := range fields {
		doc.Data[key] = value
	}
	return r.write(ctx, collection, id, doc.Data)
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	if err := r.client.HDel(ctx, collectionKey(collection), id).Err(); err != nil {
		return fmt.Errorf("docstore delete %s: %w", path, err)
	}
	return r.publish(ctx, collection)
}

func (r *Redis) ListAll(ctx context.Context, collection string) ([]Doc, error) {
	entries, err := r.client.HGetAll(ctx, collectionKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("docstore list %s: %w", collection, err)
	}
	docs := make([]Doc, 0, len(entries))
	for id, raw := range entries {
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("docstore decode %s/%s: %w", collection, id, err)
		}
		docs = append(docs, Doc{ID: id, Data: fields})
	}
	return docs, nil
}

func (r *Redis) Subscribe(ctx context.Context, collection string, onSnapshot SnapshotFunc) (*Subscription, error) {
	pubsub := r.client.Subscribe(ctx, collectionKey(collection))
	// Force the subscription onto the wire before the initial snapshot so
	// no change can slip between the two.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("docstore subscribe %s: %w", collection, err)
	}

	sub := newSubscription(func() { _ = pubsub.Close() })

	docs, err := r.ListAll(ctx, collection)
	if err != nil {
		sub.fail(err)
		return nil, err
	}
	onSnapshot(docs)

	go func() {
		for {
			if _, err := pubsub.ReceiveMessage(ctx); err != nil {
				sub.fail(err)
				return
			}
			docs, err := r.ListAll(ctx, collection)
			if err != nil {
				sub.fail(err)
				return
			}
			onSnapshot(docs)
		}
	}()
	return sub, nil
}

func (r *Redis) write(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("docstore encode %s/%s: %w", collection, id, err)
	}
	if err := r.client.HSet(ctx, collectionKey(collection), id, raw).Err(); err != nil {
		return fmt.Errorf("docstore write %s/%s: %w", collection, id, err)
	}
	return r.publish(ctx, collection)
}

func (r *Redis) publish(ctx context.Context, collection string) error {
	return r.client.Publish(ctx, collectionKey(collection), "changed").Err()
}

package store

import (
	"context"
	"log"
	"time"

	"github.com/Nagthis/Adweb-Proyect/internal/docstore"
	"github.com/Nagthis/Adweb-Proyect/internal/metrics"
	"github.com/Nagthis/Adweb-Proyect/internal/model"
)

// Listener is the handle on a running course subscription. Close stops
// deliveries deterministically; Done is closed once the listener has
// fully stopped.
type Listener struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *Listener) Close() {
	l.cancel()
	<-l.done
}

func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// ListenCourses establishes the standing push channel on the course
// collection. Every delivered snapshot wholesale-replaces the local
// course list in one commit; nothing is diffed against prior state. If
// the channel itself fails the listener re-establishes it with capped
// backoff instead of going silently dark.
func (s *Store) ListenCourses(ctx context.Context) (*Listener, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub, err := s.docs.Subscribe(ctx, CoursesCollection, s.applySnapshot)
	if err != nil {
		cancel()
		return nil, err
	}

	listener := &Listener{cancel: cancel, done: make(chan struct{})}
	go s.run(ctx, sub, listener)
	return listener, nil
}

func (s *Store) run(ctx context.Context, sub *docstore.Subscription, listener *Listener) {
	defer close(listener.done)

	for {
		select {
		case <-ctx.Done():
			sub.Close()
			return
		case <-sub.Done():
			if sub.Err() == nil {
				// Closed from outside, nothing to repair.
				return
			}
			log.Printf("course subscription failed: %v", sub.Err())
		}

		next, ok := s.resubscribe(ctx)
		if !ok {
			return
		}
		sub = next
	}
}

func (s *Store) resubscribe(ctx context.Context) (*docstore.Subscription, bool) {
	delay := s.retryBase
	if delay <= 0 {
		delay = time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(delay):
		}

		sub, err := s.docs.Subscribe(ctx, CoursesCollection, s.applySnapshot)
		if err == nil {
			metrics.Resubscribes.Inc()
			return sub, true
		}
		log.Printf("course resubscribe failed: %v", err)

		delay *= 2
		if s.retryMax > 0 && delay > s.retryMax {
			delay = s.retryMax
		}
	}
}

// applySnapshot converts a delivered snapshot and commits it as the new
// course list. The remote snapshot is authoritative; any local effect
// of an in-flight mutation is simply overwritten.
func (s *Store) applySnapshot(docs []docstore.Doc) {
	courses := make([]model.Course, 0, len(docs))
	for _, doc := range docs {
		course, err := model.CourseFromFields(doc.ID, doc.Data)
		if err != nil {
			log.Printf("course %s: dropping undecodable document: %v", doc.ID, err)
			continue
		}
		courses = append(courses, course)
	}
	s.setCourses(courses)
	metrics.SnapshotDeliveries.Inc()
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Nagthis/Adweb-Proyect/internal/config"
	"github.com/Nagthis/Adweb-Proyect/internal/docstore"
	"github.com/Nagthis/Adweb-Proyect/internal/identity"
)

func TestListenerResubscribesAfterFailure(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	provider := identity.NewMemory()
	cfg := config.Config{
		AdminEmail:         "admin@adweb.com",
		SubscribeRetryBase: time.Millisecond,
		SubscribeRetryMax:  10 * time.Millisecond,
	}
	s := New(cfg, provider, docs)

	listener, err := s.ListenCourses(ctx)
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	defer listener.Close()

	seedCourse(t, docs, "c1", 5, 0, "Algoritmos")
	if courses := s.OrderedCourses(); len(courses) != 1 {
		t.Fatalf("expected initial delivery, got %v", courses)
	}

	docs.FailSubscriptions(errors.New("permission revoked"))

	// Writes made while the channel is down arrive once the listener has
	// re-established it.
	seedCourse(t, docs, "c2", 5, 0, "Bases de Datos")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if len(s.OrderedCourses()) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected resubscribe to deliver both courses, got %v", s.OrderedCourses())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

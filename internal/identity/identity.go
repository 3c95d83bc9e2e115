package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/Nagthis/Adweb-Proyect/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

// Provider is the identity capability the sync core runs against. A
// provider owns one client session: CreateAccount and SignIn establish
// it, SignOut clears it, and registered callbacks hear about every
// change, including the state already held at registration time.
type Provider interface {
	CreateAccount(ctx context.Context, email, password string) (model.User, error)
	SignIn(ctx context.Context, email, password string) (model.User, error)
	SignOut(ctx context.Context) error
	CurrentUser() *model.User
	// OnAuthStateChange invokes callback immediately with the current
	// session (possibly nil) and again on every later change. The
	// returned function unregisters the callback.
	OnAuthStateChange(callback func(*model.User)) func()
	ChangePassword(ctx context.Context, user model.User, newPassword string) error
}

// session tracks the signed-in user and the auth-state listeners shared
// by every Provider implementation.
type session struct {
	mu        sync.Mutex
	user      *model.User
	listeners map[int]func(*model.User)
	nextID    int
}

func (s *session) current() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

func (s *session) set(user *model.User) {
	s.mu.Lock()
	s.user = user
	listeners := make([]func(*model.User), 0, len(s.listeners))
	for _, listener := range s.listeners {
		listeners = append(listeners, listener)
	}
	s.mu.Unlock()
	for _, listener := range listeners {
		listener(user)
	}
}

func (s *session) listen(callback func(*model.User)) func() {
	s.mu.Lock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(*model.User))
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = callback
	current := s.user
	s.mu.Unlock()

	callback(current)
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

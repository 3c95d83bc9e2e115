package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/Nagthis/Adweb-Proyect/internal/model"
)

func TestMemoryAccountLifecycle(t *testing.T) {
	ctx := context.Background()
	provider := NewMemory()

	user, err := provider.CreateAccount(ctx, "Alumno@Example.com ", "secret")
	if err != nil {
		t.Fatalf("create account error: %v", err)
	}
	if user.Email != "alumno@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if current := provider.CurrentUser(); current == nil || current.ID != user.ID {
		t.Fatalf("expected create to establish a session")
	}

	if _, err := provider.CreateAccount(ctx, "alumno@example.com", "other"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if err := provider.SignOut(ctx); err != nil {
		t.Fatalf("sign out error: %v", err)
	}
	if provider.CurrentUser() != nil {
		t.Fatalf("expected cleared session after sign out")
	}

	if _, err := provider.SignIn(ctx, "alumno@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	signed, err := provider.SignIn(ctx, "alumno@example.com", "secret")
	if err != nil {
		t.Fatalf("sign in error: %v", err)
	}
	if signed.ID != user.ID {
		t.Fatalf("expected same account id on sign in")
	}
}

func TestMemoryChangePassword(t *testing.T) {
	ctx := context.Background()
	provider := NewMemory()

	user, err := provider.CreateAccount(ctx, "alumno@example.com", "secret")
	if err != nil {
		t.Fatalf("create account error: %v", err)
	}
	if err := provider.ChangePassword(ctx, user, "rotated"); err != nil {
		t.Fatalf("change password error: %v", err)
	}
	if _, err := provider.SignIn(ctx, "alumno@example.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password to stop working")
	}
	if _, err := provider.SignIn(ctx, "alumno@example.com", "rotated"); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
}

func TestOnAuthStateChange(t *testing.T) {
	ctx := context.Background()
	provider := NewMemory()

	var seen []*model.User
	unsubscribe := provider.OnAuthStateChange(func(user *model.User) {
		seen = append(seen, user)
	})

	// Fires immediately with the absent session.
	if len(seen) != 1 || seen[0] != nil {
		t.Fatalf("expected immediate nil delivery, got %v", seen)
	}

	if _, err := provider.CreateAccount(ctx, "alumno@example.com", "secret"); err != nil {
		t.Fatalf("create account error: %v", err)
	}
	if len(seen) != 2 || seen[1] == nil || seen[1].Email != "alumno@example.com" {
		t.Fatalf("expected session delivery after create, got %v", seen)
	}

	if err := provider.SignOut(ctx); err != nil {
		t.Fatalf("sign out error: %v", err)
	}
	if len(seen) != 3 || seen[2] != nil {
		t.Fatalf("expected nil delivery after sign out, got %v", seen)
	}

	unsubscribe()
	if _, err := provider.SignIn(ctx, "alumno@example.com", "secret"); err != nil {
		t.Fatalf("sign in error: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected no deliveries after unsubscribe, got %d", len(seen))
	}
}

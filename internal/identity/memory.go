package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Nagthis/Adweb-Proyect/internal/crypto"
	"github.com/Nagthis/Adweb-Proyect/internal/model"
)

// Memory keeps accounts in-process. Tests and the dev fallback use it
// when no DATABASE_URL is configured. The account table can be shared
// across sessions via Clone.
type Memory struct {
	session
	accounts *memoryAccounts

	mu sync.Mutex
	// Calls counts provider invocations for test assertions.
	Calls int
}

type memoryAccounts struct {
	mu      sync.Mutex
	byEmail map[string]memoryAccount
}

type memoryAccount struct {
	id           string
	email        string
	passwordHash string
}

func NewMemory() *Memory {
	return &Memory{accounts: &memoryAccounts{byEmail: make(map[string]memoryAccount)}}
}

// Clone returns a provider backed by the same accounts but owning its
// own, initially absent, session.
func (m *Memory) Clone() *Memory {
	return &Memory{accounts: m.accounts}
}

func (m *Memory) CreateAccount(ctx context.Context, email, password string) (model.User, error) {
	m.count()
	email = normalizeEmail(email)
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	m.accounts.mu.Lock()
	if _, exists := m.accounts.byEmail[email]; exists {
		m.accounts.mu.Unlock()
		return model.User{}, ErrEmailTaken
	}
	account := memoryAccount{id: uuid.NewString(), email: email, passwordHash: hash}
	m.accounts.byEmail[email] = account
	m.accounts.mu.Unlock()

	user := model.User{ID: account.id, Email: account.email}
	m.session.set(&user)
	return user, nil
}

func (m *Memory) SignIn(ctx context.Context, email, password string) (model.User, error) {
	m.count()
	email = normalizeEmail(email)

	m.accounts.mu.Lock()
	account, exists := m.accounts.byEmail[email]
	m.accounts.mu.Unlock()
	if !exists {
		return model.User{}, ErrInvalidCredentials
	}
	if err := crypto.CheckPassword(account.passwordHash, password); err != nil {
		return model.User{}, ErrInvalidCredentials
	}

	user := model.User{ID: account.id, Email: account.email}
	m.session.set(&user)
	return user, nil
}

func (m *Memory) SignOut(ctx context.Context) error {
	m.count()
	m.session.set(nil)
	return nil
}

func (m *Memory) CurrentUser() *model.User {
	return m.session.current()
}

func (m *Memory) OnAuthStateChange(callback func(*model.User)) func() {
	return m.session.listen(callback)
}

func (m *Memory) ChangePassword(ctx context.Context, user model.User, newPassword string) error {
	m.count()
	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}

	m.accounts.mu.Lock()
	defer m.accounts.mu.Unlock()
	account, exists := m.accounts.byEmail[normalizeEmail(user.Email)]
	if !exists {
		return ErrInvalidCredentials
	}
	account.passwordHash = hash
	m.accounts.byEmail[account.email] = account
	return nil
}

func (m *Memory) count() {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nagthis/Adweb-Proyect/internal/crypto"
	"github.com/Nagthis/Adweb-Proyect/internal/model"
)

// Postgres stores accounts in the users table and tracks the session
// like every other provider.
type Postgres struct {
	session
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Clone returns a provider on the same pool with its own session.
func (p *Postgres) Clone() *Postgres {
	return NewPostgres(p.pool)
}

func (p *Postgres) CreateAccount(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	var exists bool
	if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
		return model.User{}, fmt.Errorf("identity create account: %w", err)
	}
	if exists {
		return model.User{}, ErrEmailTaken
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, id, email, hash, now)
	if err != nil {
		return model.User{}, fmt.Errorf("identity create account: %w", err)
	}

	user := model.User{ID: id, Email: email}
	p.session.set(&user)
	return user, nil
}

func (p *Postgres) SignIn(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)

	var (
		id   string
		hash string
	)
	row := p.pool.QueryRow(ctx, `SELECT id, password_hash FROM users WHERE email = $1`, email)
	if err := row.Scan(&id, &hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, fmt.Errorf("identity sign in: %w", err)
	}
	if err := crypto.CheckPassword(hash, password); err != nil {
		return model.User{}, ErrInvalidCredentials
	}

	user := model.User{ID: id, Email: email}
	p.session.set(&user)
	return user, nil
}

func (p *Postgres) SignOut(ctx context.Context) error {
	p.session.set(nil)
	return nil
}

func (p *Postgres) CurrentUser() *model.User {
	return p.session.current()
}

func (p *Postgres) OnAuthStateChange(callback func(*model.User)) func() {
	return p.session.listen(callback)
}

func (p *Postgres) ChangePassword(ctx context.Context, user model.User, newPassword string) error {
	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3
	`, hash, time.Now().UTC(), user.ID)
	if err != nil {
		return fmt.Errorf("identity change password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidCredentials
	}
	return nil
}

package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/semsearch/semsearch/internal/platform/db"
	"github.com/semsearch/semsearch/internal/platform/uow"
)

const userColumns = `id, username, email, role, hashed_password, created_at`

// Repository provides PostgreSQL backed persistence bound to one unit of work.
type Repository struct {
	q uow.Querier
}

// NewRepository constructs a repository.
func NewRepository(q uow.Querier) *Repository {
	return &Repository{q: q}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.HashedPassword, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	u, err := scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("users: get: %w", err)
	}
	return u, nil
}

// GetByID returns the user or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByUsername returns the user or nil when absent.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `username = $1`, username)
}

// GetByEmail returns the user or nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

// Create inserts u and returns the stored row. It returns nil, nil when the
// username or email is already taken.
func (r *Repository) Create(ctx context.Context, u User) (*User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	const query = `
		INSERT INTO users (id, username, email, role, hashed_password)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING ` + userColumns
	created, err := scanUser(r.q.QueryRow(ctx, query, u.ID, u.Username, u.Email, u.Role, u.HashedPassword))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("users: create: %w", err)
	}
	return created, nil
}

// Update overwrites the mutable fields of u. It returns nil, nil when the
// user does not exist or the new username/email collides with another user.
func (r *Repository) Update(ctx context.Context, u User) (*User, error) {
	if _, err := r.q.Exec(ctx, `SAVEPOINT users_update`); err != nil {
		return nil, fmt.Errorf("users: savepoint: %w", err)
	}
	const query = `
		UPDATE users
		SET username = $2, email = $3, role = $4, hashed_password = $5
		WHERE id = $1
		RETURNING ` + userColumns
	updated, err := scanUser(r.q.QueryRow(ctx, query, u.ID, u.Username, u.Email, u.Role, u.HashedPassword))
	switch {
	case err == nil:
		if _, err := r.q.Exec(ctx, `RELEASE SAVEPOINT users_update`); err != nil {
			return nil, fmt.Errorf("users: release savepoint: %w", err)
		}
		return updated, nil
	case db.IsNoRows(err):
		if _, err := r.q.Exec(ctx, `RELEASE SAVEPOINT users_update`); err != nil {
			return nil, fmt.Errorf("users: release savepoint: %w", err)
		}
		return nil, nil
	case db.IsUniqueViolation(err):
		if _, rbErr := r.q.Exec(ctx, `ROLLBACK TO SAVEPOINT users_update`); rbErr != nil {
			return nil, fmt.Errorf("users: rollback savepoint: %w", rbErr)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("users: update: %w", err)
	}
}

// ListAll returns every user ordered by username.
func (r *Repository) ListAll(ctx context.Context) ([]User, error) {
	rows, err := r.q.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		u, err := scanUser(row)
		if err != nil {
			return User{}, err
		}
		return *u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/semsearch/semsearch/internal/users"
)

// IdentityStore resolves a token subject to a stored identity.
type IdentityStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// Repository defines persistence operations for auth module.
type Repository interface {
	IdentityStore
	GetByUsername(ctx context.Context, username string) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	Create(ctx context.Context, u users.User) (*users.User, error)
}

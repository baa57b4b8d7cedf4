package roles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/semsearch/semsearch/internal/platform/db"
	"github.com/semsearch/semsearch/internal/platform/uow"
	"github.com/semsearch/semsearch/internal/rbac"
)

// Repository provides PostgreSQL backed persistence bound to one unit of work.
type Repository struct {
	q uow.Querier
}

// NewRepository constructs a repository.
func NewRepository(q uow.Querier) *Repository {
	return &Repository{q: q}
}

func scanRole(row pgx.Row) (*Role, error) {
	var (
		role Role
		raw  []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &raw); err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &role.Permissions); err != nil {
			return nil, fmt.Errorf("roles: decode permissions of %s: %w", role.Name, err)
		}
	}
	if role.Permissions == nil {
		role.Permissions = []rbac.Action{}
	}
	return &role, nil
}

// Create inserts role. It returns nil, nil when the name is taken.
func (r *Repository) Create(ctx context.Context, role Role) (*Role, error) {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	perms := role.Permissions
	if perms == nil {
		perms = []rbac.Action{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return nil, fmt.Errorf("roles: encode permissions: %w", err)
	}
	const query = `
		INSERT INTO roles (id, name, permissions)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name, permissions`
	created, err := scanRole(r.q.QueryRow(ctx, query, role.ID, role.Name, raw))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("roles: create: %w", err)
	}
	return created, nil
}

// GetByName returns the role or nil when absent.
func (r *Repository) GetByName(ctx context.Context, name string) (*Role, error) {
	role, err := scanRole(r.q.QueryRow(ctx, `SELECT id, name, permissions FROM roles WHERE name = $1`, name))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("roles: get: %w", err)
	}
	return role, nil
}

// ListAll returns every role ordered by name.
func (r *Repository) ListAll(ctx context.Context) ([]Role, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, permissions FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Role, error) {
		role, err := scanRole(row)
		if err != nil {
			return Role{}, err
		}
		return *role, nil
	})
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return out, nil
}

// PermissionsOf implements rbac.RoleSource for roles created at runtime.
// Unknown action tags stored in the row are ignored.
func (r *Repository) PermissionsOf(ctx context.Context, name string) ([]rbac.Action, bool, error) {
	role, err := r.GetByName(ctx, name)
	if err != nil || role == nil {
		return nil, false, err
	}
	out := make([]rbac.Action, 0, len(role.Permissions))
	for _, a := range role.Permissions {
		if a.Valid() {
			out = append(out, a)
		}
	}
	return out, true, nil
}

// SeedBuiltin stores every registry role that is not yet present.
func (r *Repository) SeedBuiltin(ctx context.Context, registry *rbac.Registry) error {
	for _, name := range registry.Roles() {
		set, _ := registry.PermissionsFor(name)
		if _, err := r.Create(ctx, Role{Name: name, Permissions: set.Slice()}); err != nil {
			return err
		}
	}
	return nil
}

// Package admin implements user and role management for administrators.
package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/roles"
	"github.com/semsearch/semsearch/internal/shared"
	"github.com/semsearch/semsearch/internal/users"
)

// UserStore is the identity persistence used by admin flows.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
	Update(ctx context.Context, u users.User) (*users.User, error)
	ListAll(ctx context.Context) ([]users.User, error)
}

// RoleStore is the role persistence used by admin flows.
type RoleStore interface {
	Create(ctx context.Context, role roles.Role) (*roles.Role, error)
	GetByName(ctx context.Context, name string) (*roles.Role, error)
	ListAll(ctx context.Context) ([]roles.Role, error)
}

// Service exposes administrative use cases.
type Service struct {
	users    UserStore
	roles    RoleStore
	registry *rbac.Registry
}

// NewService constructs a Service.
func NewService(users UserStore, roles RoleStore, registry *rbac.Registry) *Service {
	if registry == nil {
		registry = rbac.DefaultRegistry()
	}
	return &Service{users: users, roles: roles, registry: registry}
}

// UpdateRoleInput assigns a role to a user.
type UpdateRoleInput struct {
	Role string `json:"role" validate:"required,max=64"`
}

// CreateRoleInput defines a custom role.
type CreateRoleInput struct {
	Name        string   `json:"name" validate:"required,max=64"`
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

// ListUsers returns every identity.
func (s *Service) ListUsers(ctx context.Context) ([]users.User, error) {
	all, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []users.User{}
	}
	return all, nil
}

// ListRoles returns every stored role.
func (s *Service) ListRoles(ctx context.Context) ([]roles.Role, error) {
	all, err := s.roles.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if all == nil {
		all = []roles.Role{}
	}
	return all, nil
}

func (s *Service) roleExists(ctx context.Context, name string) (bool, error) {
	if s.registry.IsBuiltin(name) {
		return true, nil
	}
	role, err := s.roles.GetByName(ctx, name)
	if err != nil {
		return false, err
	}
	return role != nil, nil
}

// UpdateUserRole assigns an existing role to an existing user.
func (s *Service) UpdateUserRole(ctx context.Context, id uuid.UUID, in UpdateRoleInput) (*users.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, shared.NotFound("no such user")
	}
	name := strings.TrimSpace(in.Role)
	ok, err := s.roleExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, shared.InvalidInput("no such role")
	}
	user.Role = name
	updated, err := s.users.Update(ctx, *user)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, shared.Conflict("User could not be updated")
	}
	return updated, nil
}

// CreateRole stores a custom role with the given permissions.
func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput) (*roles.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, shared.InvalidInput("Role name must not be blank")
	}
	actions := make([]rbac.Action, 0, len(in.Permissions))
	for _, raw := range in.Permissions {
		a, err := rbac.ParseAction(raw)
		if err != nil {
			return nil, shared.InvalidInput("Unknown permission %q", raw)
		}
		actions = append(actions, a)
	}
	exists, err := s.roleExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, shared.Conflict("Role already exists")
	}
	created, err := s.roles.Create(ctx, roles.Role{
		Name:        name,
		Permissions: rbac.NewSet(actions...).Slice(),
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, shared.Conflict("Error creating a new role")
	}
	return created, nil
}

package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Built-in role names.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Registry maps built-in role names to their permission sets. It is built
// once at start-up and never mutated.
type Registry struct {
	roles map[string]Set
}

// NewRegistry validates the definitions and returns a Registry.
func NewRegistry(defs map[string][]Action) (*Registry, error) {
	roles := make(map[string]Set, len(defs))
	for name, actions := range defs {
		key := strings.TrimSpace(name)
		if key == "" {
			return nil, fmt.Errorf("rbac: empty role name")
		}
		for _, a := range actions {
			if !a.Valid() {
				return nil, fmt.Errorf("rbac: role %s references unknown action %q", key, a)
			}
		}
		roles[key] = NewSet(actions...)
	}
	return &Registry{roles: roles}, nil
}

// DefaultRegistry returns the built-in user/admin mapping.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(map[string][]Action{
		RoleUser:  {ChatRead, ChatWrite, ChatCreate, RepoRead, IndexingGet},
		RoleAdmin: AllActions(),
	})
	if err != nil {
		panic(err)
	}
	return reg
}

// PermissionsFor returns the action set of a built-in role.
func (r *Registry) PermissionsFor(role string) (Set, bool) {
	if r == nil {
		return Set{}, false
	}
	set, ok := r.roles[role]
	return set, ok
}

// IsBuiltin reports whether role is defined by the registry.
func (r *Registry) IsBuiltin(role string) bool {
	_, ok := r.PermissionsFor(role)
	return ok
}

// Roles lists the built-in role names sorted.
func (r *Registry) Roles() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.roles))
	for name := range r.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package rbac

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Action is a permission tag in resource:verb form.
type Action string

// Known actions. The set is closed; anything else is rejected by ParseAction.
const (
	ChatRead        Action = "chat:read"
	ChatWrite       Action = "chat:write"
	ChatCreate      Action = "chat:create"
	RepoRead        Action = "repo:read"
	RepoConfig      Action = "repo:config"
	IndexingTrigger Action = "indexing:trigger"
	IndexingDelete  Action = "indexing:delete"
	IndexingUpdate  Action = "indexing:update"
	IndexingGet     Action = "indexing:get"
	AdminAccess     Action = "admin:access"
)

var allActions = []Action{
	ChatRead,
	ChatWrite,
	ChatCreate,
	RepoRead,
	RepoConfig,
	IndexingTrigger,
	IndexingDelete,
	IndexingUpdate,
	IndexingGet,
	AdminAccess,
}

// AllActions returns every known action.
func AllActions() []Action {
	out := make([]Action, len(allActions))
	copy(out, allActions)
	return out
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range allActions {
		if a == known {
			return true
		}
	}
	return false
}

func (a Action) String() string { return string(a) }

// ParseAction normalises and validates a textual action tag.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	if !a.Valid() {
		return "", fmt.Errorf("rbac: unknown action %q", raw)
	}
	return a, nil
}

// Set is an immutable, duplicate-free collection of actions.
type Set struct {
	items map[Action]struct{}
}

// NewSet builds a Set, dropping duplicates.
func NewSet(actions ...Action) Set {
	items := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		items[a] = struct{}{}
	}
	return Set{items: items}
}

// Has reports membership.
func (s Set) Has(a Action) bool {
	_, ok := s.items[a]
	return ok
}

// Len returns the number of actions.
func (s Set) Len() int { return len(s.items) }

// Slice returns the actions sorted lexically.
func (s Set) Slice() []Action {
	out := make([]Action, 0, len(s.items))
	for a := range s.items {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Principal describes the authenticated actor of a request.
type Principal struct {
	ID       uuid.UUID
	Username string
	Email    string
	Role     string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

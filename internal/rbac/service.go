package rbac

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/semsearch/semsearch/internal/shared"
)

// RoleSource resolves permissions of roles that are not built in, such as
// roles created through the admin API.
type RoleSource interface {
	PermissionsOf(ctx context.Context, role string) ([]Action, bool, error)
}

// DecisionObserver receives every authorization outcome.
type DecisionObserver interface {
	ObserveAuthorization(action string, allowed bool)
}

// Checker decides whether a principal may perform an action.
type Checker struct {
	registry *Registry
	logger   *slog.Logger
	observer DecisionObserver
}

// NewChecker constructs a Checker over the given registry.
func NewChecker(registry *Registry, logger *slog.Logger, observer DecisionObserver) *Checker {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{registry: registry, logger: logger, observer: observer}
}

// Registry exposes the built-in role mapping.
func (c *Checker) Registry() *Registry { return c.registry }

// Permissions returns the effective action set of the principal's role.
// Built-in roles resolve through the registry; other roles go to roles.
// An unknown role yields an empty set.
func (c *Checker) Permissions(ctx context.Context, p Principal, roles RoleSource) (Set, error) {
	if set, ok := c.registry.PermissionsFor(p.Role); ok {
		return set, nil
	}
	if roles == nil {
		return NewSet(), nil
	}
	actions, ok, err := roles.PermissionsOf(ctx, p.Role)
	if err != nil {
		return Set{}, fmt.Errorf("rbac: resolve role %s: %w", p.Role, err)
	}
	if !ok {
		c.logger.Warn("rbac unknown role", slog.String("role", p.Role), slog.String("user_id", p.ID.String()))
		return NewSet(), nil
	}
	return NewSet(actions...), nil
}

// Check returns nil when the principal's role grants action and a Forbidden
// error otherwise.
func (c *Checker) Check(ctx context.Context, p Principal, action Action, roles RoleSource) error {
	set, err := c.Permissions(ctx, p, roles)
	if err != nil {
		return err
	}
	allowed := set.Has(action)
	if c.observer != nil {
		c.observer.ObserveAuthorization(string(action), allowed)
	}
	if !allowed {
		c.logger.Info("rbac denied",
			slog.String("user_id", p.ID.String()),
			slog.String("role", p.Role),
			slog.String("action", string(action)),
		)
		return shared.Forbidden("Not enough permissions")
	}
	return nil
}

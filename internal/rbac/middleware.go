package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Checker *Checker
	// Roles returns the request-scoped source for non built-in roles.
	Roles  func(ctx context.Context) RoleSource
	Logger *slog.Logger
}

// Require ensures the current principal holds action. The returned
// middleware is built once per route and shared by every request.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.Unauthenticated("Not authenticated"))
				return
			}
			var roles RoleSource
			if m.Roles != nil {
				roles = m.Roles(r.Context())
			}
			if err := m.Checker.Check(r.Context(), principal, action, roles); err != nil {
				if !shared.Classified(err) && m.Logger != nil {
					m.Logger.Error("rbac require", slog.String("action", string(action)), slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

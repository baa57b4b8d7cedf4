package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/shared"
)

// PermissionsHandler exposes the action catalogue and the caller's
// effective permissions.
type PermissionsHandler struct {
	logger *slog.Logger
	rbac   Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, rbac: rbac}
}

// MountRoutes registers permission routes. Callers must already be authenticated.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
	r.Get("/me", h.myPermissions)
}

type permissionsResponse struct {
	Role        string   `json:"role,omitempty"`
	Permissions []Action `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, permissionsResponse{Permissions: AllActions()})
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated("Not authenticated"))
		return
	}
	var roles RoleSource
	if h.rbac.Roles != nil {
		roles = h.rbac.Roles(r.Context())
	}
	set, err := h.rbac.Checker.Permissions(r.Context(), principal, roles)
	if err != nil {
		h.logger.Error("resolve permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{Role: principal.Role, Permissions: set.Slice()})
}

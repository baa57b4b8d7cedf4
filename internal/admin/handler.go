package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/shared"
	"github.com/semsearch/semsearch/internal/users"
)

// ServiceResolver returns the Service bound to the request's unit of work.
type ServiceResolver func(ctx context.Context) *Service

// Handler serves /v1/admin.
type Handler struct {
	logger  *slog.Logger
	service ServiceResolver
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service ServiceResolver, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers admin routes, all guarded by admin:access.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.Require(rbac.AdminAccess))
	r.Get("/users", h.listUsers)
	r.Get("/roles", h.listRoles)
	r.Put("/users/{userID}/role", h.updateUserRole)
	r.Post("/roles", h.createRole)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.Classified(err) && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

type userView struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
}

func viewOf(u users.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	all, err := h.service(r.Context()).ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	out := make([]userView, len(all))
	for i, u := range all {
		out[i] = viewOf(u)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	all, err := h.service(r.Context()).ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, all)
}

func (h *Handler) updateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.RespondError(w, &httpx.MalformedError{Fields: map[string]string{"user_id": "must be a valid UUID"}})
		return
	}
	var in UpdateRoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service(r.Context()).UpdateUserRole(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update user role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(*user))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in CreateRoleInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service(r.Context()).CreateRole(r.Context(), in)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

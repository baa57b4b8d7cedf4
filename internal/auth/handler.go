package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/shared"
)

// ServiceResolver returns the Service bound to the request's unit of work.
type ServiceResolver func(ctx context.Context) *Service

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger       *slog.Logger
	service      ServiceResolver
	authenticate func(http.Handler) http.Handler
}

// NewHandler constructs a Handler instance. authenticate guards /me.
func NewHandler(logger *slog.Logger, service ServiceResolver, authenticate func(http.Handler) http.Handler) *Handler {
	return &Handler{
		logger:       logger,
		service:      service,
		authenticate: authenticate,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/token", h.handleToken)
	r.Post("/register", h.handleRegister)
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/me", h.handleMe)
	})
}

type tokenForm struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.RespondError(w, &httpx.MalformedError{Fields: map[string]string{"form": "unreadable"}})
		return
	}
	form := tokenForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if err := httpx.Validate(form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	token, err := h.service(r.Context()).Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		if !shared.Classified(err) {
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.JSON(w, http.StatusOK, token)
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service(r.Context()).Register(r.Context(), in)
	if err != nil {
		if !shared.Classified(err) {
			h.logger.Error("register", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userResponse{
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated("Not authenticated"))
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{
		ID:       p.ID.String(),
		Username: p.Username,
		Email:    p.Email,
		Role:     p.Role,
	})
}

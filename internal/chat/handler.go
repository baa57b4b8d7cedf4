package chat

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/shared"
)

// ServiceResolver returns the Service bound to the request's unit of work.
type ServiceResolver func(ctx context.Context) *Service

// Handler serves /v1/chat.
type Handler struct {
	logger  *slog.Logger
	service ServiceResolver
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service ServiceResolver, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers chat routes. Callers must already be authenticated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.ChatCreate)).Post("/", h.createChat)
	r.With(h.rbac.Require(rbac.ChatRead)).Get("/", h.listChats)
	r.With(h.rbac.Require(rbac.ChatRead)).Get("/{chatID}", h.history)
	r.With(h.rbac.Require(rbac.ChatWrite)).Post("/{chatID}/message", h.ask)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.Classified(err) && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func chatID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		return uuid.Nil, &httpx.MalformedError{Fields: map[string]string{"chat_id": "must be a valid UUID"}}
	}
	return id, nil
}

func principal(w http.ResponseWriter, r *http.Request) (rbac.Principal, bool) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.Unauthenticated("Not authenticated"))
	}
	return p, ok
}

func (h *Handler) createChat(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var in CreateChatInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service(r.Context()).CreateChat(r.Context(), p.ID, in)
	if err != nil {
		h.fail(w, "create chat", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) listChats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	chats, err := h.service(r.Context()).ListChats(r.Context(), p.ID)
	if err != nil {
		h.fail(w, "list chats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, chats)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := chatID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service(r.Context()).History(r.Context(), p.ID, id)
	if err != nil {
		h.fail(w, "chat history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := chatID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in AskInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ex, err := h.service(r.Context()).Ask(r.Context(), p.ID, id, in)
	if err != nil {
		h.fail(w, "ask", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ex)
}

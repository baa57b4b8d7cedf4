// Package http exposes GitLab configuration and indexing job endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/semsearch/semsearch/internal/indexing"
	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/shared"
)

// ServiceResolver returns the indexing Service bound to the request's unit of work.
type ServiceResolver func(ctx context.Context) *indexing.Service

// Handler serves /v1/repository and /v1/indexing.
type Handler struct {
	logger  *slog.Logger
	service ServiceResolver
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service ServiceResolver, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRepositoryRoutes registers GitLab configuration routes.
func (h *Handler) MountRepositoryRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.RepoConfig)).Post("/", h.configure)
	r.With(h.rbac.Require(rbac.RepoRead)).Get("/list", h.listRepositories)
}

// MountIndexingRoutes registers job lifecycle routes.
func (h *Handler) MountIndexingRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.IndexingTrigger)).Post("/trigger", h.trigger)
	r.With(h.rbac.Require(rbac.IndexingGet)).Get("/status/{jobID}", h.status)
	r.With(h.rbac.Require(rbac.IndexingUpdate)).Put("/status/{jobID}", h.updateStatus)
	r.With(h.rbac.Require(rbac.IndexingDelete)).Delete("/{jobID}", h.deleteJob)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.Classified(err) && h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func jobID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "jobID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &httpx.MalformedError{Fields: map[string]string{"job_id": "must be a valid UUID"}}
	}
	return id, nil
}

func (h *Handler) configure(w http.ResponseWriter, r *http.Request) {
	var in indexing.ConfigureInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service(r.Context()).ConfigureGitLab(r.Context(), in)
	if err != nil {
		h.fail(w, "configure gitlab", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, res)
}

func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.service(r.Context()).ListRepositories(r.Context())
	if err != nil {
		h.fail(w, "list repositories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, repos)
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	var in indexing.TriggerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service(r.Context()).TriggerIndexing(r.Context(), in)
	if err != nil {
		h.fail(w, "trigger indexing", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, job)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service(r.Context()).GetStatus(r.Context(), id)
	if err != nil {
		h.fail(w, "job status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in indexing.UpdateStatusInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	job, err := h.service(r.Context()).UpdateStatus(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update job status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service(r.Context()).DeleteJob(r.Context(), id)
	if err != nil {
		h.fail(w, "delete job", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/semsearch/semsearch/internal/admin"
	"github.com/semsearch/semsearch/internal/auth"
	"github.com/semsearch/semsearch/internal/chat"
	indexhttp "github.com/semsearch/semsearch/internal/indexing/http"
	"github.com/semsearch/semsearch/internal/observability"
	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	// UnitOfWork opens the per-request scope every /v1 route runs in.
	UnitOfWork   func(http.Handler) http.Handler
	Authenticate func(http.Handler) http.Handler
	RBAC         rbac.Middleware

	AuthHandler        *auth.Handler
	ChatHandler        *chat.Handler
	AdminHandler       *admin.Handler
	IndexingHandler    *indexhttp.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if params.UnitOfWork != nil {
			r.Use(params.UnitOfWork)
		}
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}

		r.Group(func(r chi.Router) {
			if params.Authenticate != nil {
				r.Use(params.Authenticate)
			}
			if params.PermissionsHandler != nil {
				r.Route("/permissions", params.PermissionsHandler.MountRoutes)
			}
			if params.ChatHandler != nil {
				r.Route("/chat", params.ChatHandler.MountRoutes)
			}
			if params.AdminHandler != nil {
				r.Route("/admin", params.AdminHandler.MountRoutes)
			}
			if params.IndexingHandler != nil {
				r.Route("/repository", params.IndexingHandler.MountRepositoryRoutes)
				r.Route("/indexing", params.IndexingHandler.MountIndexingRoutes)
			}
			if params.JobHandler != nil {
				r.Route("/jobs", func(r chi.Router) {
					r.Use(params.RBAC.Require(rbac.AdminAccess))
					params.JobHandler.MountRoutes(r)
				})
			}
		})
	})

	return r
}

// Package container wires process-wide singletons and the per-request object
// graph. Process values live for the whole run; a Request is bound to one
// unit-of-work scope and builds its repositories and services on first use.
package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/semsearch/semsearch/internal/admin"
	"github.com/semsearch/semsearch/internal/app"
	"github.com/semsearch/semsearch/internal/auth"
	"github.com/semsearch/semsearch/internal/chat"
	"github.com/semsearch/semsearch/internal/indexing"
	indexhttp "github.com/semsearch/semsearch/internal/indexing/http"
	"github.com/semsearch/semsearch/internal/integrations/gitlab"
	"github.com/semsearch/semsearch/internal/integrations/mlops"
	"github.com/semsearch/semsearch/internal/observability"
	"github.com/semsearch/semsearch/internal/platform/uow"
	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/secret"
)

// ProcessParams are the externally created resources of the process.
type ProcessParams struct {
	Config  *app.Config
	Logger  *slog.Logger
	DB      uow.Beginner
	Redis   *redis.Client
	Metrics *observability.Metrics

	// Optional overrides, mostly for tests.
	Registry *rbac.Registry
	GitLab   gitlab.Client
	MLOps    mlops.Client
	Answerer chat.Answerer
}

// Process holds singletons shared by every request.
type Process struct {
	Config   *app.Config
	Logger   *slog.Logger
	UoW      *uow.Manager
	Registry *rbac.Registry
	Checker  *rbac.Checker
	Issuer   *auth.TokenIssuer
	Verifier *auth.Verifier
	Cipher   *secret.Cipher
	GitLab   gitlab.Client
	MLOps    mlops.Client
	Answerer chat.Answerer
	Cache    *chat.ResponseCache
	Metrics  *observability.Metrics
}

// NewProcess builds the process scope.
func NewProcess(p ProcessParams) (*Process, error) {
	if p.Config == nil {
		return nil, errors.New("container: config is required")
	}
	if p.DB == nil {
		return nil, errors.New("container: database is required")
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	issuer, err := auth.NewTokenIssuer(p.Config.SecretKey, p.Config.TokenAlgorithm, p.Config.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("container: token issuer: %w", err)
	}
	cipher, err := secret.NewCipher(p.Config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("container: cipher: %w", err)
	}

	registry := p.Registry
	if registry == nil {
		registry = rbac.DefaultRegistry()
	}
	gl := p.GitLab
	if gl == nil {
		gl = gitlab.NewStub()
	}
	ml := p.MLOps
	if ml == nil {
		ml = mlops.NewStub(p.Config.MLOpsServiceURL)
	}
	answerer := p.Answerer
	if answerer == nil {
		answerer = chat.StubAnswerer{BaseURL: p.Config.GitLabDefaultURL}
	}

	var cache *chat.ResponseCache
	if p.Redis != nil {
		cache = chat.NewResponseCache(p.Redis, p.Config.CacheTTL)
	}

	return &Process{
		Config:   p.Config,
		Logger:   logger,
		UoW:      uow.NewManager(p.DB, uow.Options{Logger: logger, Observer: p.Metrics}),
		Registry: registry,
		Checker:  rbac.NewChecker(registry, logger, p.Metrics),
		Issuer:   issuer,
		Verifier: auth.NewVerifier(issuer),
		Cipher:   cipher,
		GitLab:   gl,
		MLOps:    ml,
		Answerer: chat.NewDedupAnswerer(answerer),
		Cache:    cache,
		Metrics:  p.Metrics,
	}, nil
}

type requestKey struct{}

// WithRequest stores r in ctx.
func WithRequest(ctx context.Context, r *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// FromContext returns the Request bound to ctx. It panics when called
// outside Middleware or Run, which is a wiring bug.
func FromContext(ctx context.Context) *Request {
	r, ok := ctx.Value(requestKey{}).(*Request)
	if !ok {
		panic("container: no request scope in context")
	}
	return r
}

// Middleware opens a unit of work per HTTP request and binds a fresh
// Request to it.
func (p *Process) Middleware() func(http.Handler) http.Handler {
	return p.UoW.Middleware(func(ctx context.Context, s *uow.Scope) context.Context {
		return WithRequest(ctx, p.NewRequest(s))
	})
}

// Run executes fn inside its own unit of work, outside HTTP.
func (p *Process) Run(ctx context.Context, fn func(ctx context.Context, r *Request) error) error {
	return p.UoW.Do(ctx, func(ctx context.Context, s *uow.Scope) error {
		r := p.NewRequest(s)
		return fn(WithRequest(ctx, r), r)
	})
}

// SeedRoles mirrors built-in roles into the roles table.
func (p *Process) SeedRoles(ctx context.Context) error {
	return p.Run(ctx, func(ctx context.Context, r *Request) error {
		return r.Roles().SeedBuiltin(ctx, p.Registry)
	})
}

// SweepStaleJobs fails indexing jobs stuck for longer than staleAfter.
func (p *Process) SweepStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error) {
	var n int64
	err := p.Run(ctx, func(ctx context.Context, r *Request) error {
		var err error
		n, err = r.IndexService().SweepStale(ctx, staleAfter)
		return err
	})
	return n, err
}

// RBAC returns the authorization middleware resolving custom roles through
// the request's unit of work.
func (p *Process) RBAC() rbac.Middleware {
	return rbac.Middleware{
		Checker: p.Checker,
		Roles: func(ctx context.Context) rbac.RoleSource {
			return FromContext(ctx).Roles()
		},
		Logger: p.Logger,
	}
}

// Authenticate returns the bearer-token middleware.
func (p *Process) Authenticate() func(http.Handler) http.Handler {
	return auth.Authenticate(p.Verifier, func(ctx context.Context) auth.IdentityStore {
		return FromContext(ctx).Users()
	}, p.Logger)
}

// Handlers groups the HTTP handlers of every API namespace.
type Handlers struct {
	Auth        *auth.Handler
	Chat        *chat.Handler
	Admin       *admin.Handler
	Indexing    *indexhttp.Handler
	Permissions *rbac.PermissionsHandler
}

// Handlers builds HTTP handlers whose services resolve per request.
func (p *Process) Handlers() Handlers {
	guard := p.RBAC()
	return Handlers{
		Auth: auth.NewHandler(p.Logger, func(ctx context.Context) *auth.Service {
			return FromContext(ctx).AuthService()
		}, p.Authenticate()),
		Chat: chat.NewHandler(p.Logger, func(ctx context.Context) *chat.Service {
			return FromContext(ctx).ChatService()
		}, guard),
		Admin: admin.NewHandler(p.Logger, func(ctx context.Context) *admin.Service {
			return FromContext(ctx).AdminService()
		}, guard),
		Indexing: indexhttp.NewHandler(p.Logger, func(ctx context.Context) *indexing.Service {
			return FromContext(ctx).IndexService()
		}, guard),
		Permissions: rbac.NewPermissionsHandler(p.Logger, guard),
	}
}

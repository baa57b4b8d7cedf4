package container

import (
	"github.com/semsearch/semsearch/internal/admin"
	"github.com/semsearch/semsearch/internal/auth"
	"github.com/semsearch/semsearch/internal/chat"
	"github.com/semsearch/semsearch/internal/indexing"
	"github.com/semsearch/semsearch/internal/platform/uow"
	"github.com/semsearch/semsearch/internal/roles"
	"github.com/semsearch/semsearch/internal/users"
)

// Request is the object graph of one unit of work. Every repository and
// service is created at most once and shares the scope's transaction.
// A Request belongs to a single goroutine.
type Request struct {
	proc  *Process
	scope *uow.Scope

	users    *users.Repository
	roles    *roles.Repository
	chats    *chat.Repository
	jobs     *indexing.JobRepository
	gitlab   *indexing.ConfigRepository
	authSvc  *auth.Service
	adminSvc *admin.Service
	chatSvc  *chat.Service
	indexSvc *indexing.Service
}

// NewRequest binds a Request to scope.
func (p *Process) NewRequest(scope *uow.Scope) *Request {
	return &Request{proc: p, scope: scope}
}

// Scope returns the underlying unit of work.
func (r *Request) Scope() *uow.Scope { return r.scope }

func (r *Request) Users() *users.Repository {
	if r.users == nil {
		r.users = users.NewRepository(r.scope)
	}
	return r.users
}

func (r *Request) Roles() *roles.Repository {
	if r.roles == nil {
		r.roles = roles.NewRepository(r.scope)
	}
	return r.roles
}

func (r *Request) Chats() *chat.Repository {
	if r.chats == nil {
		r.chats = chat.NewRepository(r.scope)
	}
	return r.chats
}

func (r *Request) Jobs() *indexing.JobRepository {
	if r.jobs == nil {
		r.jobs = indexing.NewJobRepository(r.scope)
	}
	return r.jobs
}

func (r *Request) GitLab() *indexing.ConfigRepository {
	if r.gitlab == nil {
		r.gitlab = indexing.NewConfigRepository(r.scope)
	}
	return r.gitlab
}

func (r *Request) AuthService() *auth.Service {
	if r.authSvc == nil {
		r.authSvc = auth.NewService(r.Users(), r.proc.Issuer)
	}
	return r.authSvc
}

func (r *Request) AdminService() *admin.Service {
	if r.adminSvc == nil {
		r.adminSvc = admin.NewService(r.Users(), r.Roles(), r.proc.Registry)
	}
	return r.adminSvc
}

func (r *Request) ChatService() *chat.Service {
	if r.chatSvc == nil {
		r.chatSvc = chat.NewService(chat.ServiceParams{
			Store:    r.Chats(),
			Indexed:  r.Jobs(),
			Cache:    r.proc.Cache,
			Answerer: r.proc.Answerer,
			CacheTTL: r.proc.Config.CacheTTL,
			Logger:   r.proc.Logger,
		})
	}
	return r.chatSvc
}

func (r *Request) IndexService() *indexing.Service {
	if r.indexSvc == nil {
		r.indexSvc = indexing.NewService(indexing.ServiceParams{
			Jobs:     r.Jobs(),
			Config:   r.GitLab(),
			Cipher:   r.proc.Cipher,
			GitLab:   r.proc.GitLab,
			MLOps:    r.proc.MLOps,
			Observer: r.proc.Metrics.Jobs(),
		})
	}
	return r.indexSvc
}

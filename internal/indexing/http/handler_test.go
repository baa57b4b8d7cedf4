package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semsearch/semsearch/internal/indexing"
	"github.com/semsearch/semsearch/internal/integrations/gitlab"
	"github.com/semsearch/semsearch/internal/integrations/mlops"
	"github.com/semsearch/semsearch/internal/rbac"
	"github.com/semsearch/semsearch/internal/secret"
)

type jobsStub struct {
	jobs map[uuid.UUID]indexing.Job
}

func (s *jobsStub) CreateJob(ctx context.Context, job indexing.Job) (*indexing.Job, error) {
	s.jobs[job.ID] = job
	return &job, nil
}

func (s *jobsStub) GetJob(ctx context.Context, id uuid.UUID) (*indexing.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *jobsStub) DeleteJob(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	return ok, nil
}

func (s *jobsStub) UpdateJobStatus(ctx context.Context, id uuid.UUID, status indexing.JobStatus, now time.Time) (*indexing.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	job.Status = status
	s.jobs[id] = job
	return &job, nil
}

func (s *jobsStub) FailStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	return 0, nil
}

type configStub struct{ cfg *indexing.GitLabConfig }

func (s *configStub) SaveConfig(ctx context.Context, url, token string) (*indexing.GitLabConfig, error) {
	s.cfg = &indexing.GitLabConfig{ID: indexing.ConfigID, URL: url, PrivateTokenEncrypted: token}
	return s.cfg, nil
}

func (s *configStub) GetConfig(ctx context.Context) (*indexing.GitLabConfig, error) {
	return s.cfg, nil
}

func newRouter(t *testing.T, role string) (http.Handler, *jobsStub) {
	t.Helper()
	cipher, err := secret.NewCipher("handler-test-key")
	require.NoError(t, err)
	jobs := &jobsStub{jobs: map[uuid.UUID]indexing.Job{}}
	svc := indexing.NewService(indexing.ServiceParams{
		Jobs:   jobs,
		Config: &configStub{},
		Cipher: cipher,
		GitLab: gitlab.NewStub(),
		MLOps:  mlops.NewStub("http://mlops.local"),
	})
	h := NewHandler(nil, func(context.Context) *indexing.Service { return svc },
		rbac.Middleware{Checker: rbac.NewChecker(rbac.DefaultRegistry(), nil, nil)})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := rbac.Principal{ID: uuid.New(), Username: "tester", Role: role}
			next.ServeHTTP(w, req.WithContext(rbac.ContextWithPrincipal(req.Context(), p)))
		})
	})
	r.Route("/v1/repository", h.MountRepositoryRoutes)
	r.Route("/v1/indexing", h.MountIndexingRoutes)
	return r, jobs
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestConfigureRequiresRepoConfig(t *testing.T) {
	router, _ := newRouter(t, rbac.RoleUser)
	rr := do(router, http.MethodPost, "/v1/repository/", `{"url":"https://gitlab.example.com","private_token":"t"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestConfigureThenList(t *testing.T) {
	router, _ := newRouter(t, rbac.RoleAdmin)

	rr := do(router, http.MethodGet, "/v1/repository/list", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "GitLab is not configured yet")

	rr = do(router, http.MethodPost, "/v1/repository/", `{"url":"https://gitlab.example.com","private_token":"t"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"status":"ok","message":"GitLab configuration saved successfully."}`, rr.Body.String())

	rr = do(router, http.MethodGet, "/v1/repository/list", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "group-1/project-alpha")
}

func TestConfigureMalformedBody(t *testing.T) {
	router, _ := newRouter(t, rbac.RoleAdmin)
	rr := do(router, http.MethodPost, "/v1/repository/", `{"url":"not a url"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestJobLifecycle(t *testing.T) {
	router, jobs := newRouter(t, rbac.RoleAdmin)
	require.Equal(t, http.StatusAccepted, do(router, http.MethodPost, "/v1/repository/", `{"url":"https://gitlab.example.com","private_token":"t"}`).Code)

	rr := do(router, http.MethodPost, "/v1/indexing/trigger", `{"repository_ids":["1","2"]}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, jobs.jobs, 1)
	var id uuid.UUID
	for k := range jobs.jobs {
		id = k
	}

	rr = do(router, http.MethodGet, "/v1/indexing/status/"+id.String(), "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"PENDING"`)

	rr = do(router, http.MethodPut, "/v1/indexing/status/"+id.String(), `{"status":"SUCCESS"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"SUCCESS"`)

	rr = do(router, http.MethodDelete, "/v1/indexing/"+id.String(), "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(router, http.MethodDelete, "/v1/indexing/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "doesn't exist.")
}

func TestStatusRejectsBadID(t *testing.T) {
	router, _ := newRouter(t, rbac.RoleUser)
	rr := do(router, http.MethodGet, "/v1/indexing/status/not-a-uuid", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestUserCannotTrigger(t *testing.T) {
	router, _ := newRouter(t, rbac.RoleUser)
	rr := do(router, http.MethodPost, "/v1/indexing/trigger", `{"repository_ids":["1"]}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

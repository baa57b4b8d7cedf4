package indexing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semsearch/semsearch/internal/integrations/gitlab"
	"github.com/semsearch/semsearch/internal/integrations/mlops"
	"github.com/semsearch/semsearch/internal/platform/httpx"
	"github.com/semsearch/semsearch/internal/secret"
	"github.com/semsearch/semsearch/internal/shared"
)

type memoryJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]Job
}

func newMemoryJobs() *memoryJobs { return &memoryJobs{jobs: map[uuid.UUID]Job{}} }

func (m *memoryJobs) CreateJob(ctx context.Context, job Job) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.CreatedAt = time.Now().UTC()
	m.jobs[job.ID] = job
	return &job, nil
}

func (m *memoryJobs) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *memoryJobs) DeleteJob(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[id]
	delete(m.jobs, id)
	return ok, nil
}

func (m *memoryJobs) UpdateJobStatus(ctx context.Context, id uuid.UUID, status JobStatus, now time.Time) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	job.Status = status
	job.FinishedAt = finishedAt(status, now)
	m.jobs[id] = job
	return &job, nil
}

func (m *memoryJobs) FailStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, job := range m.jobs {
		if !job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			job.Status = JobFailed
			job.FinishedAt = finishedAt(JobFailed, now)
			m.jobs[id] = job
			n++
		}
	}
	return n, nil
}

type memoryConfig struct {
	cfg *GitLabConfig
	err error
}

func (m *memoryConfig) SaveConfig(ctx context.Context, url, token string) (*GitLabConfig, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.cfg = &GitLabConfig{ID: ConfigID, URL: url, PrivateTokenEncrypted: token, UpdatedAt: time.Now()}
	return m.cfg, nil
}

func (m *memoryConfig) GetConfig(ctx context.Context) (*GitLabConfig, error) {
	return m.cfg, m.err
}

type countingObserver struct{ events []string }

func (o *countingObserver) ObserveJob(name, status string) {
	o.events = append(o.events, name+"="+status)
}

type fixture struct {
	svc    *Service
	jobs   *memoryJobs
	config *memoryConfig
	cipher *secret.Cipher
	obs    *countingObserver
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cipher, err := secret.NewCipher("test-encryption-key")
	require.NoError(t, err)
	f := &fixture{
		jobs:   newMemoryJobs(),
		config: &memoryConfig{},
		cipher: cipher,
		obs:    &countingObserver{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(ServiceParams{
		Jobs:     f.jobs,
		Config:   f.config,
		Cipher:   cipher,
		GitLab:   gitlab.NewStub(),
		MLOps:    mlops.NewStub("http://mlops.local"),
		Observer: f.obs,
		Now:      func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) configure(t *testing.T) {
	t.Helper()
	_, err := f.svc.ConfigureGitLab(context.Background(), ConfigureInput{URL: "https://gitlab.example.com/", PrivateToken: "glpat-secret"})
	require.NoError(t, err)
}

func TestConfigureGitLabStoresEncryptedToken(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ConfigureGitLab(context.Background(), ConfigureInput{URL: "https://gitlab.example.com/", PrivateToken: "glpat-secret"})
	require.NoError(t, err)
	assert.Equal(t, StatusMessage{Status: "ok", Message: "GitLab configuration saved successfully."}, res)

	require.NotNil(t, f.config.cfg)
	assert.Equal(t, "https://gitlab.example.com", f.config.cfg.URL)
	assert.NotEqual(t, "glpat-secret", f.config.cfg.PrivateTokenEncrypted)
	plain, err := f.cipher.Decrypt(f.config.cfg.PrivateTokenEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "glpat-secret", plain)
}

func TestListRepositoriesRequiresConfig(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListRepositories(context.Background())
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, "GitLab is not configured yet. Please add config first.", shared.PublicMessage(err))

	f.configure(t)
	repos, err := f.svc.ListRepositories(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, "https://gitlab.example.com/group-1/project-alpha", repos[0].WebURL)
}

func TestTriggerIndexingRecordsJob(t *testing.T) {
	f := newFixture(t)
	f.configure(t)

	job, err := f.svc.TriggerIndexing(context.Background(), TriggerInput{RepositoryIDs: []string{"1", "2", "1"}})
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, []string{"1", "2"}, job.RepositoryIDs)
	require.NotNil(t, job.Details)
	assert.Equal(t, "Job submitted for repos: [1, 2]", *job.Details)
	assert.Nil(t, job.FinishedAt)
	assert.Equal(t, []string{"indexing=PENDING"}, f.obs.events)

	got, err := f.svc.GetStatus(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestTriggerIndexingWithoutConfig(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.TriggerIndexing(context.Background(), TriggerInput{RepositoryIDs: []string{"1"}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, f.jobs.jobs)
}

func TestTriggerIndexingRejectsBlankRepositoryIDs(t *testing.T) {
	f := newFixture(t)
	f.configure(t)

	in := TriggerInput{RepositoryIDs: []string{"   ", "\t"}}
	require.NoError(t, httpx.Validate(in))
	_, err := f.svc.TriggerIndexing(context.Background(), in)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Equal(t, "At least one repository id is required", shared.PublicMessage(err))
	assert.Empty(t, f.jobs.jobs)
	assert.Empty(t, f.obs.events)
}

func TestUpdateStatusFinishedAt(t *testing.T) {
	f := newFixture(t)
	f.configure(t)
	job, err := f.svc.TriggerIndexing(context.Background(), TriggerInput{RepositoryIDs: []string{"1"}})
	require.NoError(t, err)

	for _, tc := range []struct {
		status   string
		finished bool
	}{
		{"RUNNING", false},
		{"SUCCESS", true},
		{"PENDING", false},
		{"FAILED", true},
	} {
		t.Run(tc.status, func(t *testing.T) {
			got, err := f.svc.UpdateStatus(context.Background(), job.ID, UpdateStatusInput{Status: tc.status})
			require.NoError(t, err)
			assert.Equal(t, JobStatus(tc.status), got.Status)
			if tc.finished {
				require.NotNil(t, got.FinishedAt)
				assert.Equal(t, f.now, *got.FinishedAt)
			} else {
				assert.Nil(t, got.FinishedAt)
			}
		})
	}
}

func TestUpdateStatusMissingJob(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	_, err := f.svc.UpdateStatus(context.Background(), id, UpdateStatusInput{Status: "SUCCESS"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, "Job with id "+id.String()+" not found", shared.PublicMessage(err))
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateStatus(context.Background(), uuid.New(), UpdateStatusInput{Status: "DONE"})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestDeleteJob(t *testing.T) {
	f := newFixture(t)
	f.configure(t)
	job, err := f.svc.TriggerIndexing(context.Background(), TriggerInput{RepositoryIDs: []string{"2"}})
	require.NoError(t, err)

	res, err := f.svc.DeleteJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Job "+job.ID.String()+" has been deleted successfully.", res.Message)

	_, err = f.svc.DeleteJob(context.Background(), job.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, "Job "+job.ID.String()+" doesn't exist.", shared.PublicMessage(err))
}

func TestSweepStale(t *testing.T) {
	f := newFixture(t)
	old := Job{ID: uuid.New(), Status: JobRunning, CreatedAt: f.now.Add(-7 * time.Hour)}
	fresh := Job{ID: uuid.New(), Status: JobPending, CreatedAt: f.now.Add(-time.Hour)}
	f.jobs.jobs[old.ID] = old
	f.jobs.jobs[fresh.ID] = fresh

	n, err := f.svc.SweepStale(context.Background(), 6*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, JobFailed, f.jobs.jobs[old.ID].Status)
	assert.Equal(t, JobPending, f.jobs.jobs[fresh.ID].Status)
}

func TestConfigStoreErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("relation gitlab_config does not exist")
	f.config.err = boom
	_, err := f.svc.ListRepositories(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestParseJobStatus(t *testing.T) {
	s, err := ParseJobStatus(" success ")
	require.NoError(t, err)
	assert.Equal(t, JobSuccess, s)
	_, err = ParseJobStatus("DONE")
	assert.Error(t, err)
}

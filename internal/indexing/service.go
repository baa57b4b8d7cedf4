package indexing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/semsearch/semsearch/internal/integrations/gitlab"
	"github.com/semsearch/semsearch/internal/integrations/mlops"
	"github.com/semsearch/semsearch/internal/shared"
)

const notConfiguredMessage = "GitLab is not configured yet. Please add config first."

// JobStore persists indexing jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) (*Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	DeleteJob(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status JobStatus, now time.Time) (*Job, error)
	FailStale(ctx context.Context, cutoff, now time.Time) (int64, error)
}

// ConfigStore persists the GitLab configuration.
type ConfigStore interface {
	SaveConfig(ctx context.Context, url, encryptedToken string) (*GitLabConfig, error)
	GetConfig(ctx context.Context) (*GitLabConfig, error)
}

// Cipher protects the stored GitLab token.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// JobObserver records job lifecycle events.
type JobObserver interface {
	ObserveJob(name, status string)
}

// Service orchestrates GitLab configuration and indexing jobs.
type Service struct {
	jobs     JobStore
	config   ConfigStore
	cipher   Cipher
	gitlab   gitlab.Client
	mlops    mlops.Client
	observer JobObserver
	now      func() time.Time
}

// ServiceParams groups Service collaborators.
type ServiceParams struct {
	Jobs     JobStore
	Config   ConfigStore
	Cipher   Cipher
	GitLab   gitlab.Client
	MLOps    mlops.Client
	Observer JobObserver
	Now      func() time.Time
}

// NewService constructs a Service.
func NewService(p ServiceParams) *Service {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		jobs:     p.Jobs,
		config:   p.Config,
		cipher:   p.Cipher,
		gitlab:   p.GitLab,
		mlops:    p.MLOps,
		observer: p.Observer,
		now:      now,
	}
}

// ConfigureInput is the payload of the GitLab configuration endpoint.
type ConfigureInput struct {
	URL          string `json:"url" validate:"required,url"`
	PrivateToken string `json:"private_token" validate:"required"`
}

// ConfigureGitLab encrypts the token and stores the configuration.
func (s *Service) ConfigureGitLab(ctx context.Context, in ConfigureInput) (StatusMessage, error) {
	encrypted, err := s.cipher.Encrypt(in.PrivateToken)
	if err != nil {
		return StatusMessage{}, fmt.Errorf("indexing: encrypt token: %w", err)
	}
	if _, err := s.config.SaveConfig(ctx, strings.TrimRight(strings.TrimSpace(in.URL), "/"), encrypted); err != nil {
		return StatusMessage{}, err
	}
	return StatusMessage{Status: "ok", Message: "GitLab configuration saved successfully."}, nil
}

func (s *Service) credentials(ctx context.Context) (mlops.Credentials, error) {
	cfg, err := s.config.GetConfig(ctx)
	if err != nil {
		return mlops.Credentials{}, err
	}
	if cfg == nil {
		return mlops.Credentials{}, shared.NotFound(notConfiguredMessage)
	}
	token, err := s.cipher.Decrypt(cfg.PrivateTokenEncrypted)
	if err != nil {
		return mlops.Credentials{}, fmt.Errorf("indexing: decrypt token: %w", err)
	}
	return mlops.Credentials{GitLabURL: cfg.URL, GitLabToken: token}, nil
}

// ListRepositories lists repositories visible with the stored configuration.
func (s *Service) ListRepositories(ctx context.Context) ([]gitlab.Repository, error) {
	creds, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}
	repos, err := s.gitlab.ListRepositories(ctx, creds.GitLabURL, creds.GitLabToken)
	if err != nil {
		return nil, fmt.Errorf("indexing: list repositories: %w", err)
	}
	return repos, nil
}

// TriggerInput is the payload of the trigger endpoint.
type TriggerInput struct {
	RepositoryIDs []string `json:"repository_ids" validate:"required,min=1,dive,required"`
}

// TriggerIndexing submits the repositories to the pipeline and records the job.
func (s *Service) TriggerIndexing(ctx context.Context, in TriggerInput) (*Job, error) {
	ids := dedupe(in.RepositoryIDs)
	if len(ids) == 0 {
		return nil, shared.InvalidInput("At least one repository id is required")
	}
	creds, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}
	desc, err := s.mlops.TriggerIndexing(ctx, ids, creds)
	if err != nil {
		return nil, fmt.Errorf("indexing: trigger: %w", err)
	}
	status, err := ParseJobStatus(desc.Status)
	if err != nil {
		status = JobPending
	}
	details := desc.Details
	job, err := s.jobs.CreateJob(ctx, Job{
		ID:            desc.ID,
		Status:        status,
		RepositoryIDs: ids,
		Details:       &details,
	})
	if err != nil {
		return nil, err
	}
	s.observe("indexing", string(job.Status))
	return job, nil
}

// GetStatus returns the job.
func (s *Service) GetStatus(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, shared.NotFound("Job with id %s not found", id)
	}
	return job, nil
}

// UpdateStatusInput is the payload of the status update endpoint.
type UpdateStatusInput struct {
	Status string `json:"status" validate:"required,oneof=PENDING RUNNING SUCCESS FAILED"`
}

// UpdateStatus moves the job to status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, in UpdateStatusInput) (*Job, error) {
	status, err := ParseJobStatus(in.Status)
	if err != nil {
		return nil, shared.InvalidInput("Unknown job status %q", in.Status)
	}
	job, err := s.jobs.UpdateJobStatus(ctx, id, status, s.now())
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, shared.NotFound("Job with id %s not found", id)
	}
	s.observe("indexing", string(job.Status))
	return job, nil
}

// DeleteJob removes the job.
func (s *Service) DeleteJob(ctx context.Context, id uuid.UUID) (StatusMessage, error) {
	deleted, err := s.jobs.DeleteJob(ctx, id)
	if err != nil {
		return StatusMessage{}, err
	}
	if !deleted {
		return StatusMessage{}, shared.NotFound("Job %s doesn't exist.", id)
	}
	return StatusMessage{Status: "ok", Message: fmt.Sprintf("Job %s has been deleted successfully.", id)}, nil
}

// SweepStale fails jobs that stayed PENDING or RUNNING longer than staleAfter.
func (s *Service) SweepStale(ctx context.Context, staleAfter time.Duration) (int64, error) {
	now := s.now()
	n, err := s.jobs.FailStale(ctx, now.Add(-staleAfter), now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.observe("indexing_sweep", string(JobFailed))
	}
	return n, nil
}

func (s *Service) observe(name, status string) {
	if s.observer != nil {
		s.observer.ObserveJob(name, status)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

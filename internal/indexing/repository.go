package indexing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/semsearch/semsearch/internal/platform/db"
	"github.com/semsearch/semsearch/internal/platform/uow"
)

const jobColumns = `id, status, repository_ids, created_at, finished_at, details`

// JobRepository persists indexing jobs within one unit of work.
type JobRepository struct {
	q uow.Querier
}

// NewJobRepository constructs a JobRepository.
func NewJobRepository(q uow.Querier) *JobRepository {
	return &JobRepository{q: q}
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		job Job
		raw []byte
	)
	if err := row.Scan(&job.ID, &job.Status, &raw, &job.CreatedAt, &job.FinishedAt, &job.Details); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &job.RepositoryIDs); err != nil {
		return nil, fmt.Errorf("indexing: decode repository ids: %w", err)
	}
	return &job, nil
}

// CreateJob inserts job.
func (r *JobRepository) CreateJob(ctx context.Context, job Job) (*Job, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	ids := job.RepositoryIDs
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("indexing: encode repository ids: %w", err)
	}
	const query = `
		INSERT INTO indexing_jobs (id, status, repository_ids, details)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + jobColumns
	created, err := scanJob(r.q.QueryRow(ctx, query, job.ID, job.Status, raw, job.Details))
	if err != nil {
		return nil, fmt.Errorf("indexing: create job: %w", err)
	}
	return created, nil
}

// GetJob returns the job or nil when absent.
func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(r.q.QueryRow(ctx, `SELECT `+jobColumns+` FROM indexing_jobs WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("indexing: get job: %w", err)
	}
	return job, nil
}

// DeleteJob removes the job and reports whether it existed.
func (r *JobRepository) DeleteJob(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM indexing_jobs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("indexing: delete job: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateJobStatus sets the status, stamping finished_at for terminal
// statuses and clearing it otherwise. It returns nil when the job is absent.
func (r *JobRepository) UpdateJobStatus(ctx context.Context, id uuid.UUID, status JobStatus, now time.Time) (*Job, error) {
	const query = `
		UPDATE indexing_jobs
		SET status = $2, finished_at = $3
		WHERE id = $1
		RETURNING ` + jobColumns
	job, err := scanJob(r.q.QueryRow(ctx, query, id, status, finishedAt(status, now)))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("indexing: update job: %w", err)
	}
	return job, nil
}

// IndexedRepositoryIDs lists repositories covered by at least one successful job.
func (r *JobRepository) IndexedRepositoryIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT jsonb_array_elements_text(repository_ids) AS repository_id
		FROM indexing_jobs
		WHERE status = $1
		ORDER BY repository_id`, JobSuccess)
	if err != nil {
		return nil, fmt.Errorf("indexing: indexed repositories: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("indexing: indexed repositories: %w", err)
	}
	return ids, nil
}

// FailStale marks PENDING and RUNNING jobs created before cutoff as FAILED.
func (r *JobRepository) FailStale(ctx context.Context, cutoff, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE indexing_jobs
		SET status = $1, finished_at = $2,
		    details = COALESCE(details || E'\n', '') || 'Timed out waiting for the indexing pipeline.'
		WHERE status IN ($3, $4) AND created_at < $5`,
		JobFailed, now.UTC(), JobPending, JobRunning, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("indexing: fail stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ConfigRepository persists the singleton GitLab configuration.
type ConfigRepository struct {
	q uow.Querier
}

// NewConfigRepository constructs a ConfigRepository.
func NewConfigRepository(q uow.Querier) *ConfigRepository {
	return &ConfigRepository{q: q}
}

func scanConfig(row pgx.Row) (*GitLabConfig, error) {
	var cfg GitLabConfig
	if err := row.Scan(&cfg.ID, &cfg.URL, &cfg.PrivateTokenEncrypted, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig upserts the singleton row. Concurrent writers race and the
// last one wins.
func (r *ConfigRepository) SaveConfig(ctx context.Context, url, encryptedToken string) (*GitLabConfig, error) {
	const query = `
		INSERT INTO gitlab_config (id, url, private_token_encrypted, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET url = EXCLUDED.url,
		    private_token_encrypted = EXCLUDED.private_token_encrypted,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, url, private_token_encrypted, updated_at`
	cfg, err := scanConfig(r.q.QueryRow(ctx, query, ConfigID, url, encryptedToken))
	if err != nil {
		return nil, fmt.Errorf("indexing: save gitlab config: %w", err)
	}
	return cfg, nil
}

// GetConfig returns the configuration or nil when none was saved.
func (r *ConfigRepository) GetConfig(ctx context.Context) (*GitLabConfig, error) {
	cfg, err := scanConfig(r.q.QueryRow(ctx,
		`SELECT id, url, private_token_encrypted, updated_at FROM gitlab_config WHERE id = $1`, ConfigID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("indexing: get gitlab config: %w", err)
	}
	return cfg, nil
}

// Package mlops defines the contract for submitting indexing jobs to the
// ML pipeline.
package mlops

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials grant the pipeline read access to GitLab.
type Credentials struct {
	GitLabURL   string
	GitLabToken string
}

// JobDescriptor is what the pipeline reports for a submitted job.
type JobDescriptor struct {
	ID        uuid.UUID
	Status    string
	CreatedAt time.Time
	Details   string
}

// Client submits indexing work.
type Client interface {
	TriggerIndexing(ctx context.Context, repositoryIDs []string, creds Credentials) (JobDescriptor, error)
}

// Stub accepts every submission and reports it as pending.
type Stub struct {
	BaseURL string
	now     func() time.Time
}

// NewStub returns a Stub for the pipeline located at baseURL.
func NewStub(baseURL string) *Stub {
	return &Stub{BaseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// TriggerIndexing implements Client.
func (s *Stub) TriggerIndexing(ctx context.Context, repositoryIDs []string, creds Credentials) (JobDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return JobDescriptor{}, err
	}
	if len(repositoryIDs) == 0 {
		return JobDescriptor{}, errors.New("mlops: no repositories")
	}
	if creds.GitLabToken == "" {
		return JobDescriptor{}, errors.New("mlops: missing gitlab credentials")
	}
	return JobDescriptor{
		ID:        uuid.New(),
		Status:    "PENDING",
		CreatedAt: s.now().UTC(),
		Details:   fmt.Sprintf("Job submitted for repos: [%s]", strings.Join(repositoryIDs, ", ")),
	}, nil
}

package indexing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an indexing job.
type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobRunning JobStatus = "RUNNING"
	JobSuccess JobStatus = "SUCCESS"
	JobFailed  JobStatus = "FAILED"
)

// ParseJobStatus validates a textual status.
func ParseJobStatus(raw string) (JobStatus, error) {
	s := JobStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case JobPending, JobRunning, JobSuccess, JobFailed:
		return s, nil
	}
	return "", fmt.Errorf("indexing: unknown job status %q", raw)
}

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailed
}

// finishedAt returns the completion timestamp stored with status.
func finishedAt(status JobStatus, now time.Time) *time.Time {
	if !status.Terminal() {
		return nil
	}
	ts := now.UTC()
	return &ts
}

// Job tracks one indexing run over a set of repositories.
type Job struct {
	ID            uuid.UUID  `json:"id"`
	Status        JobStatus  `json:"status"`
	RepositoryIDs []string   `json:"repository_ids"`
	CreatedAt     time.Time  `json:"created_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	Details       *string    `json:"details"`
}

// ConfigID is the fixed key of the singleton GitLab configuration row.
const ConfigID = 1

// GitLabConfig holds the GitLab instance and its encrypted access token.
type GitLabConfig struct {
	ID                    int
	URL                   string
	PrivateTokenEncrypted string
	UpdatedAt             time.Time
}

// StatusMessage is the acknowledgement returned by configuration and deletion.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Package gitlab defines the contract for listing repositories of a GitLab
// instance.
package gitlab

import (
	"context"
	"errors"
	"strings"
)

// Repository is a GitLab project that can be indexed.
type Repository struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

// Client lists repositories reachable with a personal access token.
type Client interface {
	ListRepositories(ctx context.Context, baseURL, token string) ([]Repository, error)
}

// Stub returns a fixed catalogue regardless of the instance.
type Stub struct {
	Repositories []Repository
}

// NewStub returns a Stub serving a small demo catalogue.
func NewStub() *Stub {
	return &Stub{Repositories: []Repository{
		{ID: "1", Name: "Project Alpha", PathWithNamespace: "group-1/project-alpha", WebURL: "/group-1/project-alpha"},
		{ID: "2", Name: "Project Beta (Docs)", PathWithNamespace: "group-2/project-beta", WebURL: "/group-2/project-beta"},
	}}
}

// ListRepositories implements Client.
func (s *Stub) ListRepositories(ctx context.Context, baseURL, token string) ([]Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New("gitlab: missing token")
	}
	base := strings.TrimRight(baseURL, "/")
	out := make([]Repository, len(s.Repositories))
	for i, repo := range s.Repositories {
		repo.WebURL = base + repo.WebURL
		out[i] = repo
	}
	return out, nil
}

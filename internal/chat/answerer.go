package chat

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"
)

// Answerer generates an answer to a question over a set of repositories.
type Answerer interface {
	Answer(ctx context.Context, question string, repositoryIDs []string) (Answer, error)
}

// StubAnswerer returns a canned answer citing every repository.
type StubAnswerer struct {
	BaseURL string
}

// Answer implements Answerer.
func (s StubAnswerer) Answer(ctx context.Context, question string, repositoryIDs []string) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	sources := make([]Source, 0, len(repositoryIDs))
	for _, id := range repositoryIDs {
		sources = append(sources, Source{
			Title: "Repository " + id,
			URL:   strings.TrimRight(s.BaseURL, "/") + "/repositories/" + id,
		})
	}
	content := fmt.Sprintf("This is a mocked answer to %q.", question)
	if len(repositoryIDs) == 0 {
		content += " No indexed repositories were available."
	}
	return Answer{Content: content, Sources: sources}, nil
}

// DedupAnswerer collapses concurrent identical questions into one call.
type DedupAnswerer struct {
	next  Answerer
	group singleflight.Group
}

// NewDedupAnswerer wraps next.
func NewDedupAnswerer(next Answerer) *DedupAnswerer {
	return &DedupAnswerer{next: next}
}

// Answer implements Answerer. A caller that gives up stops waiting but the
// shared call keeps running for the others.
func (d *DedupAnswerer) Answer(ctx context.Context, question string, repositoryIDs []string) (Answer, error) {
	key := ConstructKey(question, repositoryIDs)
	ch := d.group.DoChan(key, func() (interface{}, error) {
		return d.next.Answer(context.WithoutCancel(ctx), question, repositoryIDs)
	})
	select {
	case <-ctx.Done():
		return Answer{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Answer{}, res.Err
		}
		return res.Val.(Answer), nil
	}
}

// Package mock provides a scriptable agent pipeline for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/adityakurhade/finsight/pkg/models"
)

// Pipeline satisfies models.AgentPipeline for testing.
type Pipeline struct {
	Name_   string
	RunFunc func(ctx context.Context, documentPath, query string) (string, error)

	mu    sync.Mutex
	calls int
}

func (p *Pipeline) Name() string { return p.Name_ }

func (p *Pipeline) Run(ctx context.Context, documentPath, query string) (string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.RunFunc != nil {
		return p.RunFunc(ctx, documentPath, query)
	}
	return "", nil
}

// Calls returns how many times Run was invoked.
func (p *Pipeline) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// NewPipeline returns a Pipeline that always succeeds with a canned result.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Name_: "mock",
		RunFunc: func(_ context.Context, _, query string) (string, error) {
			return fmt.Sprintf("mock analysis for query %q", query), nil
		},
	}
}

// NewFailingPipeline returns a Pipeline that always returns the given error.
func NewFailingPipeline(err error) *Pipeline {
	return &Pipeline{
		Name_: "mock-failing",
		RunFunc: func(_ context.Context, _, _ string) (string, error) {
			return "", err
		},
	}
}

// NewRateLimitedPipeline returns a Pipeline that raises the rate-limit
// condition for the first n calls, then succeeds.
func NewRateLimitedPipeline(n int) *Pipeline {
	var mu sync.Mutex
	failures := 0
	return &Pipeline{
		Name_: "mock-ratelimited",
		RunFunc: func(_ context.Context, _, query string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if failures < n {
				failures++
				return "", fmt.Errorf("%w: status 429", models.ErrRateLimited)
			}
			return fmt.Sprintf("mock analysis for query %q", query), nil
		},
	}
}

// Compile-time check that Pipeline implements AgentPipeline.
var _ models.AgentPipeline = (*Pipeline)(nil)

package models

import (
	"context"
	"errors"
)

// Classified agent pipeline failures. ErrRateLimited is the only transient
// condition: the execution engine retries it with backoff, everything else
// fails the task terminally.
var (
	ErrRateLimited         = errors.New("agent provider rate limited")
	ErrProviderUnavailable = errors.New("agent provider unavailable")
	ErrInvalidResponse     = errors.New("agent provider returned invalid response")
)

// AgentPipeline is the interface to the multi-step document reasoning
// process a worker invokes per task. Callers inject this interface rather
// than a concrete provider. Run is synchronous: it returns the full
// analysis text, or an error classified by the agent package (rate-limit
// conditions are retryable, everything else is terminal).
type AgentPipeline interface {
	Run(ctx context.Context, documentPath, query string) (string, error)
	Name() string
}

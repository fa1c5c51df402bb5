// Package jobs implements the analysis lifecycle: submission, worker-side
// execution with rate-limit retries, and status reconciliation between the
// Redis cache and the durable store.
package jobs

import "errors"

// ErrNotFound is returned when no analysis exists for a task ID, in either
// store. It is distinct from a failed analysis, which is a real record.
var ErrNotFound = errors.New("analysis not found")

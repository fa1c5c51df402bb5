// Package models contains shared data models used across the FinSight codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusRetrying   = "retrying"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// IsTerminal reports whether status is a final state. Terminal records are
// never mutated again; redelivered queue tasks for them are no-ops.
func IsTerminal(status string) bool {
	return status == StatusSuccess || status == StatusFailed
}

// Analysis tracks one document-analysis request through its full lifecycle.
// The API returns a task_id on POST /api/v1/analyses; the client polls
// GET /api/v1/analyses/{task_id} until status is success or failed.
type Analysis struct {
	TaskID      uuid.UUID  `db:"task_id"      json:"task_id"`
	UserID      *uuid.UUID `db:"user_id"      json:"user_id,omitempty"`
	Filename    string     `db:"filename"     json:"filename"`
	FileSize    int64      `db:"file_size"    json:"file_size"`
	Query       string     `db:"query"        json:"query"`
	Status      string     `db:"status"       json:"status"`
	Result      *string    `db:"result"       json:"result,omitempty"`
	Error       *string    `db:"error"        json:"error,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// TaskState is the ephemeral cache snapshot of a running or recently
// finished analysis, keyed by task_id in Redis. The durable row in Postgres
// stays the source of truth; this view may be stale or expired.
type TaskState struct {
	TaskID      uuid.UUID  `json:"task_id"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count,omitempty"`
	Result      *string    `json:"result,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AnalysisStats aggregates lifecycle counters over the durable store.
type AnalysisStats struct {
	Total      int   `json:"total"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	InProgress int   `json:"in_progress"`
	TotalBytes int64 `json:"total_bytes_processed"`
}

// Package queue moves analysis tasks between the API process and the
// worker process over Redis, using asynq for delivery. Delivery is
// at-least-once: a crashed worker gets its task redelivered, so downstream
// handlers must tolerate seeing the same task twice.
package queue

import (
	"context"

	"github.com/google/uuid"
)

// TaskTypeAnalyze identifies document-analysis tasks on the wire.
const TaskTypeAnalyze = "analysis:run"

// queueName is the single asynq queue all analysis tasks flow through.
const queueName = "analysis"

// Payload is the wire format of one analysis task.
type Payload struct {
	TaskID       uuid.UUID `json:"task_id"`
	DocumentPath string    `json:"document_path"`
	Query        string    `json:"query"`
}

// Broker enqueues analysis tasks. The API server is the only producer.
type Broker interface {
	EnqueueAnalysis(ctx context.Context, p Payload) error
	Close() error
}

package jobs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adityakurhade/finsight/internal/cache"
	"github.com/adityakurhade/finsight/internal/document"
	"github.com/adityakurhade/finsight/internal/queue"
	"github.com/adityakurhade/finsight/internal/store"
	"github.com/adityakurhade/finsight/pkg/models"
)

// SubmitParams holds validated parameters for one analysis submission.
type SubmitParams struct {
	UserID   *uuid.UUID
	Filename string
	Query    string
	File     io.Reader
}

// SubmitService accepts documents and turns them into queued analyses.
// The durable row is created before the task is enqueued, so a worker that
// picks the task up always finds its record.
type SubmitService struct {
	store      store.Store
	cache      cache.Cache
	broker     queue.Broker
	docs       *document.Storage
	pendingTTL time.Duration
	logger     *slog.Logger
}

func NewSubmitService(st store.Store, ca cache.Cache, broker queue.Broker, docs *document.Storage, pendingTTL time.Duration, logger *slog.Logger) *SubmitService {
	return &SubmitService{
		store:      st,
		cache:      ca,
		broker:     broker,
		docs:       docs,
		pendingTTL: pendingTTL,
		logger:     logger,
	}
}

// Submit stores the document, creates the durable record, and enqueues the
// analysis task. If enqueueing fails the record and document are rolled
// back, so no analysis is ever left queued with no task behind it.
func (s *SubmitService) Submit(ctx context.Context, params SubmitParams) (*models.Analysis, error) {
	taskID := uuid.New()

	path, size, err := s.docs.Save(taskID, params.Filename, params.File)
	if err != nil {
		return nil, err
	}

	analysis := &models.Analysis{
		TaskID:    taskID,
		UserID:    params.UserID,
		Filename:  params.Filename,
		FileSize:  size,
		Query:     params.Query,
		Status:    models.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAnalysis(ctx, analysis); err != nil {
		s.docs.Remove(path)
		return nil, fmt.Errorf("creating analysis record: %w", err)
	}

	err = s.broker.EnqueueAnalysis(ctx, queue.Payload{
		TaskID:       taskID,
		DocumentPath: path,
		Query:        params.Query,
	})
	if err != nil {
		if delErr := s.store.DeleteAnalysis(ctx, taskID); delErr != nil {
			s.logger.Error("failed to roll back analysis record", "task_id", taskID, "error", delErr)
		}
		s.docs.Remove(path)
		return nil, fmt.Errorf("enqueueing analysis: %w", err)
	}

	// Cache write is best-effort: a poll before the worker runs falls back
	// to the durable row anyway.
	if err := s.cache.SetTaskState(ctx, models.TaskState{
		TaskID: taskID,
		Status: models.StatusQueued,
	}, s.pendingTTL); err != nil {
		s.logger.Warn("failed to cache queued state", "task_id", taskID, "error", err)
	}

	return analysis, nil
}

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adityakurhade/finsight/internal/cache"
	"github.com/adityakurhade/finsight/internal/store"
	"github.com/adityakurhade/finsight/pkg/models"
)

// StatusService answers status polls. Reads go to the cache first; on a
// miss they fall back to the durable store, which is the source of truth.
// Along the way it reconciles the two: a terminal cache snapshot is
// backfilled into the durable row, and a durable row found on a cache miss
// re-warms the cache.
type StatusService struct {
	store      store.Store
	cache      cache.Cache
	resultTTL  time.Duration
	pendingTTL time.Duration
	logger     *slog.Logger
}

func NewStatusService(st store.Store, ca cache.Cache, resultTTL, pendingTTL time.Duration, logger *slog.Logger) *StatusService {
	return &StatusService{
		store:      st,
		cache:      ca,
		resultTTL:  resultTTL,
		pendingTTL: pendingTTL,
		logger:     logger,
	}
}

// GetStatus returns the current snapshot for a task. A missing task returns
// ErrNotFound; a failed analysis is a normal snapshot with status "failed".
func (s *StatusService) GetStatus(ctx context.Context, taskID uuid.UUID) (*models.TaskState, error) {
	state, ok, err := s.cache.GetTaskState(ctx, taskID)
	if err != nil {
		// A broken cache must not break polls; the durable store can
		// still answer.
		s.logger.Warn("cache read failed, falling back to store", "task_id", taskID, "error", err)
	}
	if ok {
		if models.IsTerminal(state.Status) {
			s.backfill(ctx, state)
		}
		return &state, nil
	}

	analysis, err := s.store.GetAnalysisByTaskID(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis %s: %w", taskID, err)
	}

	snapshot := models.TaskState{
		TaskID:      analysis.TaskID,
		Status:      analysis.Status,
		Result:      analysis.Result,
		Error:       analysis.Error,
		CompletedAt: analysis.CompletedAt,
	}

	ttl := s.pendingTTL
	if models.IsTerminal(analysis.Status) {
		ttl = s.resultTTL
	}
	if err := s.cache.SetTaskState(ctx, snapshot, ttl); err != nil {
		s.logger.Warn("failed to re-warm cache", "task_id", taskID, "error", err)
	}

	return &snapshot, nil
}

// backfill pushes a terminal cache snapshot into the durable row. The
// update carries a terminal-state guard, so a row that already finished is
// untouched and concurrent backfills are harmless.
func (s *StatusService) backfill(ctx context.Context, state models.TaskState) {
	opts := make([]store.AnalysisUpdateOption, 0, 3)
	if state.Result != nil {
		opts = append(opts, store.WithResult(*state.Result))
	}
	if state.Error != nil {
		opts = append(opts, store.WithErrorMessage(*state.Error))
	}
	if state.CompletedAt != nil {
		opts = append(opts, store.WithCompletedAt(*state.CompletedAt))
	}

	err := s.store.UpdateAnalysisStatus(ctx, state.TaskID, state.Status, opts...)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("failed to backfill terminal status", "task_id", state.TaskID, "error", err)
	}
}

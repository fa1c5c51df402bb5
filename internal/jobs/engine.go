package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/adityakurhade/finsight/internal/cache"
	"github.com/adityakurhade/finsight/internal/config"
	"github.com/adityakurhade/finsight/internal/document"
	"github.com/adityakurhade/finsight/internal/queue"
	"github.com/adityakurhade/finsight/internal/store"
	"github.com/adityakurhade/finsight/pkg/models"
)

// Engine executes analysis tasks on the worker. Rate-limited provider calls
// are retried in-process with exponential backoff; every other agent error
// fails the analysis immediately. Tasks are delivered at least once, so
// Handle must be safe to call twice for the same task.
type Engine struct {
	store    store.Store
	cache    cache.Cache
	pipeline models.AgentPipeline
	docs     *document.Storage
	logger   *slog.Logger

	maxRetries  int
	baseBackoff time.Duration
	resultTTL   time.Duration
	pendingTTL  time.Duration

	// sleep is swappable in tests so backoff can be observed without
	// waiting minutes of wall-clock time.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewEngine(st store.Store, ca cache.Cache, pipeline models.AgentPipeline, docs *document.Storage, cfg config.WorkerConfig, logger *slog.Logger) *Engine {
	return &Engine{
		store:       st,
		cache:       ca,
		pipeline:    pipeline,
		docs:        docs,
		logger:      logger,
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.RetryBackoff,
		resultTTL:   cfg.ResultTTL,
		pendingTTL:  cfg.PendingTTL,
		sleep:       sleepContext,
	}
}

// Handle runs one analysis task end to end. It is the queue.Handler for
// analysis tasks: a non-nil return triggers redelivery, so only
// infrastructure failures return errors; agent failures are recorded as a
// failed analysis and return nil.
func (e *Engine) Handle(ctx context.Context, p queue.Payload) error {
	analysis, err := e.store.GetAnalysisByTaskID(ctx, p.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		// Submission was rolled back after enqueueing, or the record was
		// deleted. Nothing to do.
		e.logger.Warn("dropping task with no analysis record", "task_id", p.TaskID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading analysis %s: %w", p.TaskID, err)
	}
	if models.IsTerminal(analysis.Status) {
		e.logger.Info("skipping redelivered task, analysis already finished",
			"task_id", p.TaskID, "status", analysis.Status)
		return nil
	}

	e.markInFlight(ctx, p.TaskID, models.StatusProcessing, 0)

	result, attempt, runErr := e.runWithRetries(ctx, p)
	if runErr != nil && ctx.Err() != nil {
		// Worker shutdown mid-task. Leave the record in-flight and let
		// redelivery pick it up.
		return ctx.Err()
	}

	if runErr != nil {
		e.logger.Error("analysis failed", "task_id", p.TaskID, "attempts", attempt+1, "error", runErr)
		err = e.finalize(ctx, p, models.StatusFailed, nil, truncateError(runErr), attempt)
	} else {
		e.logger.Info("analysis succeeded", "task_id", p.TaskID, "attempts", attempt+1)
		err = e.finalize(ctx, p, models.StatusSuccess, &result, "", attempt)
	}
	return err
}

// runWithRetries calls the agent pipeline, retrying rate-limit errors up to
// maxRetries times with doubling backoff. It returns the result, the number
// of retries consumed, and the final error if every attempt failed.
func (e *Engine) runWithRetries(ctx context.Context, p queue.Payload) (string, int, error) {
	attempt := 0
	for {
		result, err := e.pipeline.Run(ctx, p.DocumentPath, p.Query)
		if err == nil {
			return result, attempt, nil
		}
		if !errors.Is(err, models.ErrRateLimited) {
			return "", attempt, err
		}
		if attempt >= e.maxRetries {
			return "", attempt, fmt.Errorf("rate limit retries exhausted after %d attempts: %w", attempt+1, err)
		}

		attempt++
		backoff := e.baseBackoff << (attempt - 1)
		e.logger.Warn("provider rate limited, backing off",
			"task_id", p.TaskID, "attempt", attempt, "backoff", backoff)
		e.markInFlight(ctx, p.TaskID, models.StatusRetrying, attempt)

		if err := e.sleep(ctx, backoff); err != nil {
			return "", attempt, err
		}
		e.markInFlight(ctx, p.TaskID, models.StatusProcessing, attempt)
	}
}

// markInFlight records a non-terminal transition in both stores. Both
// writes are best-effort: in-flight state is advisory and the terminal
// write at the end is what matters.
func (e *Engine) markInFlight(ctx context.Context, taskID uuid.UUID, status string, retryCount int) {
	if err := e.store.UpdateAnalysisStatus(ctx, taskID, status); err != nil {
		e.logger.Warn("failed to persist in-flight status",
			"task_id", taskID, "status", status, "error", err)
	}
	if err := e.cache.SetTaskState(ctx, models.TaskState{
		TaskID:     taskID,
		Status:     status,
		RetryCount: retryCount,
	}, e.pendingTTL); err != nil {
		e.logger.Warn("failed to cache in-flight status",
			"task_id", taskID, "status", status, "error", err)
	}
}

// finalize writes the terminal state to both stores and removes the
// document. As long as one store accepted the write the task is done: the
// status reconciler repairs the other side later. Only a double failure
// returns an error, which redelivers the task.
func (e *Engine) finalize(ctx context.Context, p queue.Payload, status string, result *string, errMsg string, retryCount int) error {
	now := time.Now().UTC()

	opts := []store.AnalysisUpdateOption{store.WithCompletedAt(now)}
	if result != nil {
		opts = append(opts, store.WithResult(*result))
	}
	if errMsg != "" {
		opts = append(opts, store.WithErrorMessage(errMsg))
	}
	storeErr := e.store.UpdateAnalysisStatus(ctx, p.TaskID, status, opts...)
	if storeErr != nil {
		e.logger.Error("failed to persist terminal status",
			"task_id", p.TaskID, "status", status, "error", storeErr)
	}

	state := models.TaskState{
		TaskID:      p.TaskID,
		Status:      status,
		RetryCount:  retryCount,
		Result:      result,
		CompletedAt: &now,
	}
	if errMsg != "" {
		state.Error = &errMsg
	}
	cacheErr := e.cache.SetTaskState(ctx, state, e.resultTTL)
	if cacheErr != nil {
		e.logger.Error("failed to cache terminal status",
			"task_id", p.TaskID, "status", status, "error", cacheErr)
	}

	if storeErr != nil && cacheErr != nil {
		return fmt.Errorf("finalizing analysis %s: %w", p.TaskID, storeErr)
	}

	e.docs.Remove(p.DocumentPath)
	return nil
}

// maxErrorBytes bounds the stored error message; provider bodies can be long.
const maxErrorBytes = 2000

// truncateError renders err to at most maxErrorBytes without splitting
// UTF-8 runes.
func truncateError(err error) string {
	s := err.Error()
	if len(s) <= maxErrorBytes {
		return s
	}
	cut := maxErrorBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

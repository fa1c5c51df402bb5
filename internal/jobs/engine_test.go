package jobs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityakurhade/finsight/internal/agent/mock"
	"github.com/adityakurhade/finsight/internal/config"
	"github.com/adityakurhade/finsight/internal/document"
	"github.com/adityakurhade/finsight/internal/queue"
	"github.com/adityakurhade/finsight/pkg/models"
)

const (
	testResultTTL  = time.Hour
	testPendingTTL = 30 * time.Minute
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestEngine wires an Engine over in-memory stores with an instant,
// recording sleep. The returned slice collects each backoff duration.
func newTestEngine(t *testing.T, st *memStore, ca *memCache, pipeline models.AgentPipeline) (*Engine, *[]time.Duration) {
	t.Helper()

	docs, err := document.NewStorage(config.UploadConfig{Dir: t.TempDir(), MaxBytes: 1 << 20}, testLogger())
	require.NoError(t, err)

	cfg := config.WorkerConfig{
		Concurrency:  1,
		MaxRetries:   3,
		RetryBackoff: 60 * time.Second,
		ResultTTL:    testResultTTL,
		PendingTTL:   testPendingTTL,
	}
	e := NewEngine(st, ca, pipeline, docs, cfg, testLogger())

	slept := &[]time.Duration{}
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	return e, slept
}

// seedTask creates a queued analysis row plus its document on disk and
// returns the matching queue payload.
func seedTask(t *testing.T, st *memStore, e *Engine, status string) queue.Payload {
	t.Helper()

	taskID := uuid.New()
	path := filepath.Join(e.docs.Dir(), taskID.String()+".pdf")
	require.NoError(t, os.WriteFile(path, []byte("doc"), 0o644))

	require.NoError(t, st.CreateAnalysis(context.Background(), &models.Analysis{
		TaskID:    taskID,
		Filename:  "report.pdf",
		FileSize:  3,
		Query:     "summarize revenue",
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}))
	return queue.Payload{TaskID: taskID, DocumentPath: path, Query: "summarize revenue"}
}

func TestHandle_Success(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	pipeline := mock.NewPipeline()
	e, slept := newTestEngine(t, st, ca, pipeline)
	p := seedTask(t, st, e, models.StatusQueued)

	require.NoError(t, e.Handle(context.Background(), p))

	a := st.get(p.TaskID)
	assert.Equal(t, models.StatusSuccess, a.Status)
	require.NotNil(t, a.Result)
	assert.Contains(t, *a.Result, "summarize revenue")
	assert.Nil(t, a.Error)
	assert.NotNil(t, a.CompletedAt)

	state, ok := ca.state(p.TaskID)
	require.True(t, ok)
	assert.Equal(t, models.StatusSuccess, state.Status)
	assert.Equal(t, testResultTTL, ca.ttls[p.TaskID])

	assert.Equal(t, []string{models.StatusProcessing, models.StatusSuccess}, st.statusHistory(p.TaskID))
	assert.Empty(t, *slept)
	assert.NoFileExists(t, p.DocumentPath)
}

func TestHandle_RateLimitedThenSuccess(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	pipeline := mock.NewRateLimitedPipeline(2)
	e, slept := newTestEngine(t, st, ca, pipeline)
	p := seedTask(t, st, e, models.StatusQueued)

	require.NoError(t, e.Handle(context.Background(), p))

	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, *slept)
	assert.Equal(t, 3, pipeline.Calls())

	a := st.get(p.TaskID)
	assert.Equal(t, models.StatusSuccess, a.Status)

	state, _ := ca.state(p.TaskID)
	assert.Equal(t, 2, state.RetryCount)

	assert.Equal(t, []string{
		models.StatusProcessing,
		models.StatusRetrying, models.StatusProcessing,
		models.StatusRetrying, models.StatusProcessing,
		models.StatusSuccess,
	}, st.statusHistory(p.TaskID))
}

func TestHandle_RetriesExhausted(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	pipeline := mock.NewRateLimitedPipeline(10)
	e, slept := newTestEngine(t, st, ca, pipeline)
	p := seedTask(t, st, e, models.StatusQueued)

	require.NoError(t, e.Handle(context.Background(), p))

	// Initial attempt plus three retries, each backoff doubling.
	assert.Equal(t, 4, pipeline.Calls())
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second}, *slept)

	a := st.get(p.TaskID)
	assert.Equal(t, models.StatusFailed, a.Status)
	assert.Nil(t, a.Result)
	require.NotNil(t, a.Error)
	assert.Contains(t, *a.Error, "rate limit retries exhausted")
	assert.NotNil(t, a.CompletedAt)
	assert.NoFileExists(t, p.DocumentPath)
}

func TestHandle_NonRetryableFailure(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	pipeline := mock.NewFailingPipeline(models.ErrProviderUnavailable)
	e, slept := newTestEngine(t, st, ca, pipeline)
	p := seedTask(t, st, e, models.StatusQueued)

	require.NoError(t, e.Handle(context.Background(), p))

	assert.Equal(t, 1, pipeline.Calls())
	assert.Empty(t, *slept)

	a := st.get(p.TaskID)
	assert.Equal(t, models.StatusFailed, a.Status)
	require.NotNil(t, a.Error)
	assert.Nil(t, a.Result)
}

func TestHandle_RedeliveredAfterSuccessIsNoOp(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	pipeline := mock.NewPipeline()
	e, _ := newTestEngine(t, st, ca, pipeline)
	p := seedTask(t, st, e, models.StatusQueued)

	require.NoError(t, e.Handle(context.Background(), p))
	first := *st.get(p.TaskID)

	require.NoError(t, e.Handle(context.Background(), p))

	assert.Equal(t, 1, pipeline.Calls())
	second := *st.get(p.TaskID)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Equal(t, first.Result, second.Result)
}

func TestHandle_MissingRecordIsDropped(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	pipeline := mock.NewPipeline()
	e, _ := newTestEngine(t, st, ca, pipeline)

	err := e.Handle(context.Background(), queue.Payload{TaskID: uuid.New(), Query: "q"})
	require.NoError(t, err)
	assert.Zero(t, pipeline.Calls())
}

func TestHandle_StoreUnavailableRedelivers(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	st.getErr = errors.New("connection refused")
	e, _ := newTestEngine(t, st, ca, mock.NewPipeline())

	err := e.Handle(context.Background(), queue.Payload{TaskID: uuid.New()})
	assert.Error(t, err)
}

func TestHandle_DurableWriteFailureToleratedWhenCached(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	e, _ := newTestEngine(t, st, ca, mock.NewPipeline())
	p := seedTask(t, st, e, models.StatusQueued)

	st.updateErr = errors.New("connection refused")
	require.NoError(t, e.Handle(context.Background(), p))

	// Terminal state survived in the cache; the reconciler repairs the row.
	state, ok := ca.state(p.TaskID)
	require.True(t, ok)
	assert.Equal(t, models.StatusSuccess, state.Status)
	assert.NotNil(t, state.CompletedAt)
	assert.NoFileExists(t, p.DocumentPath)
}

func TestHandle_BothTerminalWritesFailRedelivers(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	e, _ := newTestEngine(t, st, ca, mock.NewPipeline())
	p := seedTask(t, st, e, models.StatusQueued)

	st.updateErr = errors.New("connection refused")
	ca.setErr = errors.New("redis down")

	err := e.Handle(context.Background(), p)
	assert.Error(t, err)
	// Document stays for the redelivered attempt.
	assert.FileExists(t, p.DocumentPath)
}

func TestHandle_ShutdownDuringBackoffRedelivers(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	pipeline := mock.NewRateLimitedPipeline(10)
	e, _ := newTestEngine(t, st, ca, pipeline)
	p := seedTask(t, st, e, models.StatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	e.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := e.Handle(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)

	// Not finalized: the record stays in flight for the next delivery.
	a := st.get(p.TaskID)
	assert.False(t, models.IsTerminal(a.Status))
	assert.FileExists(t, p.DocumentPath)
}

func TestHandle_LongErrorTruncated(t *testing.T) {
	st, ca := newMemStore(), newMemCache()
	longErr := errors.New(strings.Repeat("x", 5000))
	e, _ := newTestEngine(t, st, ca, mock.NewFailingPipeline(longErr))
	p := seedTask(t, st, e, models.StatusQueued)

	require.NoError(t, e.Handle(context.Background(), p))

	a := st.get(p.TaskID)
	require.NotNil(t, a.Error)
	assert.LessOrEqual(t, len(*a.Error), 2000)
}

func TestHandle_ResultAndErrorMutuallyExclusive(t *testing.T) {
	st, ca := newMemStore(), newMemCache()

	e, _ := newTestEngine(t, st, ca, mock.NewPipeline())
	p := seedTask(t, st, e, models.StatusQueued)
	require.NoError(t, e.Handle(context.Background(), p))
	a := st.get(p.TaskID)
	assert.NotNil(t, a.Result)
	assert.Nil(t, a.Error)

	e2, _ := newTestEngine(t, st, ca, mock.NewFailingPipeline(models.ErrInvalidResponse))
	p2 := seedTask(t, st, e2, models.StatusQueued)
	require.NoError(t, e2.Handle(context.Background(), p2))
	a2 := st.get(p2.TaskID)
	assert.Nil(t, a2.Result)
	assert.NotNil(t, a2.Error)
}

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/adityakurhade/finsight/internal/cache"
	"github.com/adityakurhade/finsight/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis spins up a Redis container and returns a connected RedisCache + cleanup.
func setupRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	redisURL := "redis://" + host + ":" + port.Port()
	rc, err := cache.NewRedisCache(redisURL)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rc.Close()) })

	return rc
}

// --- Ping ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	err := rc.Ping(context.Background())
	assert.NoError(t, err)
}

// --- Set / Get roundtrip ---

func TestSetGet_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	err := rc.Set(ctx, "test:key", []byte("hello"), 10*time.Second)
	require.NoError(t, err)

	val, found, err := rc.Get(ctx, "test:key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), val)
}

func TestGet_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	val, found, err := rc.Get(context.Background(), "nonexistent:key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, val)
}

func TestSet_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	err := rc.Set(ctx, "expiry:key", []byte("temp"), 1*time.Second)
	require.NoError(t, err)

	// Immediately should exist
	_, found, err := rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.True(t, found)

	// Wait for TTL to expire
	time.Sleep(1500 * time.Millisecond)

	_, found, err = rc.Get(ctx, "expiry:key")
	require.NoError(t, err)
	assert.False(t, found)
}

// --- Delete ---

func TestDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "del:key", []byte("bye"), 10*time.Second))

	err := rc.Delete(ctx, "del:key")
	require.NoError(t, err)

	_, found, err := rc.Get(ctx, "del:key")
	require.NoError(t, err)
	assert.False(t, found)
}

// --- Task state snapshots ---

func TestSetGetTaskState(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()

	result := "full analysis text"
	completed := time.Now().UTC().Truncate(time.Second)
	state := models.TaskState{
		TaskID:      uuid.New(),
		Status:      models.StatusSuccess,
		Result:      &result,
		CompletedAt: &completed,
	}

	require.NoError(t, rc.SetTaskState(ctx, state, 10*time.Second))

	got, found, err := rc.GetTaskState(ctx, state.TaskID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusSuccess, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, result, *got.Result)
	assert.Nil(t, got.Error)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, completed, got.CompletedAt.UTC())
}

func TestSetTaskState_Overwrite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	taskID := uuid.New()

	require.NoError(t, rc.SetTaskState(ctx,
		models.TaskState{TaskID: taskID, Status: models.StatusProcessing}, 10*time.Second))
	require.NoError(t, rc.SetTaskState(ctx,
		models.TaskState{TaskID: taskID, Status: models.StatusRetrying, RetryCount: 2}, 10*time.Second))

	got, found, err := rc.GetTaskState(ctx, taskID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.StatusRetrying, got.Status)
	assert.Equal(t, 2, got.RetryCount)
}

func TestGetTaskState_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	_, found, err := rc.GetTaskState(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

// --- Cache Key Builders ---

func TestTaskStateKey(t *testing.T) {
	taskID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	key := cache.TaskStateKey(taskID)
	assert.Equal(t, "task:22222222-2222-2222-2222-222222222222", key)
}

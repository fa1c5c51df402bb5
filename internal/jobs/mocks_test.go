package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adityakurhade/finsight/internal/queue"
	"github.com/adityakurhade/finsight/internal/store"
	"github.com/adityakurhade/finsight/pkg/models"
)

// --- fakes ---

// statusUpdate is one recorded UpdateAnalysisStatus call with its options
// applied.
type statusUpdate struct {
	TaskID uuid.UUID
	Status string
	store.AnalysisUpdate
}

// memStore is an in-memory store.Store that mirrors the terminal-state
// semantics of the real one: finished analyses are never mutated and
// completed_at is kept from the first write.
type memStore struct {
	mu       sync.Mutex
	analyses map[uuid.UUID]*models.Analysis
	updates  []statusUpdate

	createErr error
	getErr    error
	updateErr error
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{analyses: make(map[uuid.UUID]*models.Analysis)}
}

func (s *memStore) Ping(_ context.Context) error { return nil }

func (s *memStore) CreateUser(_ context.Context, _ *models.User) error { return nil }
func (s *memStore) GetUser(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *memStore) GetUserByUsername(_ context.Context, _ string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *memStore) ListUsers(_ context.Context, _, _ int) ([]*models.User, error) { return nil, nil }
func (s *memStore) DeleteUser(_ context.Context, _ uuid.UUID) error               { return nil }

func (s *memStore) CreateAnalysis(_ context.Context, analysis *models.Analysis) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.analyses[analysis.TaskID]; exists {
		return store.ErrDuplicateKey
	}
	cp := *analysis
	s.analyses[analysis.TaskID] = &cp
	return nil
}

func (s *memStore) GetAnalysisByTaskID(_ context.Context, taskID uuid.UUID) (*models.Analysis, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.analyses[taskID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) UpdateAnalysisStatus(_ context.Context, taskID uuid.UUID, status string, opts ...store.AnalysisUpdateOption) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	upd := statusUpdate{TaskID: taskID, Status: status}
	for _, opt := range opts {
		opt(&upd.AnalysisUpdate)
	}
	s.updates = append(s.updates, upd)

	a, ok := s.analyses[taskID]
	if !ok {
		return store.ErrNotFound
	}
	if models.IsTerminal(a.Status) {
		return nil
	}
	a.Status = status
	if upd.Result != nil {
		a.Result = upd.Result
	}
	if upd.ErrorMessage != nil {
		a.Error = upd.ErrorMessage
	}
	if a.CompletedAt == nil {
		a.CompletedAt = upd.CompletedAt
	}
	return nil
}

func (s *memStore) ListAnalyses(_ context.Context, _ store.AnalysisFilter) ([]*models.Analysis, int, error) {
	return nil, 0, nil
}

func (s *memStore) GetAnalysisStats(_ context.Context, _ *uuid.UUID) (*models.AnalysisStats, error) {
	return &models.AnalysisStats{}, nil
}

func (s *memStore) DeleteAnalysis(_ context.Context, taskID uuid.UUID) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.analyses[taskID]; !ok {
		return store.ErrNotFound
	}
	delete(s.analyses, taskID)
	return nil
}

func (s *memStore) get(taskID uuid.UUID) *models.Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyses[taskID]
}

func (s *memStore) statusHistory(taskID uuid.UUID) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, u := range s.updates {
		if u.TaskID == taskID {
			out = append(out, u.Status)
		}
	}
	return out
}

// memCache is an in-memory cache.Cache that records TTLs alongside values.
type memCache struct {
	mu     sync.Mutex
	states map[uuid.UUID]models.TaskState
	ttls   map[uuid.UUID]time.Duration

	setErr error
	getErr error
}

func newMemCache() *memCache {
	return &memCache{
		states: make(map[uuid.UUID]models.TaskState),
		ttls:   make(map[uuid.UUID]time.Duration),
	}
}

func (c *memCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *memCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *memCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *memCache) Ping(_ context.Context) error                                     { return nil }

func (c *memCache) SetTaskState(_ context.Context, state models.TaskState, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[state.TaskID] = state
	c.ttls[state.TaskID] = ttl
	return nil
}

func (c *memCache) GetTaskState(_ context.Context, taskID uuid.UUID) (models.TaskState, bool, error) {
	if c.getErr != nil {
		return models.TaskState{}, false, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[taskID]
	return state, ok, nil
}

func (c *memCache) state(taskID uuid.UUID) (models.TaskState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[taskID]
	return state, ok
}

// memBroker records enqueued payloads.
type memBroker struct {
	mu         sync.Mutex
	payloads   []queue.Payload
	enqueueErr error
}

func (b *memBroker) EnqueueAnalysis(_ context.Context, p queue.Payload) error {
	if b.enqueueErr != nil {
		return b.enqueueErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, p)
	return nil
}

func (b *memBroker) Close() error { return nil }

func (b *memBroker) enqueued() []queue.Payload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]queue.Payload(nil), b.payloads...)
}

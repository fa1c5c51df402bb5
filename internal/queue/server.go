package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Handler executes one analysis task. A non-nil return makes asynq
// redeliver the task, so handlers should only fail on infrastructure
// errors they want retried.
type Handler func(ctx context.Context, p Payload) error

// Server consumes analysis tasks and hands them to a Handler.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewServer(redisURL string, concurrency int, handler Handler, logger *slog.Logger) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeAnalyze, func(ctx context.Context, task *asynq.Task) error {
		var p Payload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			// A payload that never parses will never parse; do not retry.
			logger.Error("dropping malformed task payload", "error", err)
			return nil
		}
		return handler(ctx, p)
	})

	return &Server{server: srv, mux: mux}, nil
}

// Run blocks until Shutdown is called or the server fails.
func (s *Server) Run() error {
	if err := s.server.Run(s.mux); err != nil && err != asynq.ErrServerClosed {
		return fmt.Errorf("running task server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

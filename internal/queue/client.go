package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client implements Broker on top of an asynq client.
type Client struct {
	client *asynq.Client
}

func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

func (c *Client) EnqueueAnalysis(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	// Rate-limit retries happen inside the handler; asynq retries cover
	// worker crashes only, so a single redelivery is enough.
	task := asynq.NewTask(TaskTypeAnalyze, body, asynq.Queue(queueName))
	if _, err := c.client.EnqueueContext(ctx, task, asynq.MaxRetry(1)); err != nil {
		return fmt.Errorf("enqueueing task %s: %w", p.TaskID, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the producer side used by handlers.
type QueueService interface {
	Enqueue(ctx context.Context, msgType string, payload any) (string, error)
	Status(ctx context.Context, id string) (*Status, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers      int           // number of workers
	RetryLimit   int           // number of maximum retries
	RetryDelay   time.Duration // time delay between retries
	ResultTTL    time.Duration // how long statuses stay readable
	PollInterval time.Duration // retry processor tick
}

func (c *QueueConfig) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = time.Hour
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
}

// Message represents a message in the queue
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var result T
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &result, nil
}

// backend is the storage a Queue runs on.
type backend interface {
	ping(ctx context.Context) error
	push(ctx context.Context, data []byte) error
	// pop waits up to wait for a message. It returns nil, nil when nothing
	// arrived.
	pop(ctx context.Context, wait time.Duration) ([]byte, error)
	schedule(ctx context.Context, data []byte, at time.Time) error
	promote(ctx context.Context, now time.Time) error
	bury(ctx context.Context, data []byte) error
	saveStatus(ctx context.Context, st *Status, ttl time.Duration) error
	loadStatus(ctx context.Context, id string) (*Status, error)
	describe() string
}

package queue

import (
	"context"
	"encoding/json"
)

// Job names understood by the background workers.
const (
	JobRefreshShare = "share:refresh"
	JobResyncUsage  = "storage:resync"
)

// Message is one queued job.
type Message struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// JobQueue enqueues background jobs. A nil JobQueue on the service means
// the deployment runs in synchronous mode and processing happens in the
// request path instead.
type JobQueue interface {
	Enqueue(ctx context.Context, name string, payload any) error
}

// Consumer delivers queued jobs to a handler until ctx is cancelled.
type Consumer interface {
	Consume(ctx context.Context, handler func(ctx context.Context, msg Message) error) error
}

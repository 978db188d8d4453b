package queue

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryQueue collects enqueued jobs in memory. Used by tests to assert
// on what would have been scheduled.
type MemoryQueue struct {
	mu       sync.Mutex
	messages []Message
}

var _ JobQueue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, Message{Name: name, Payload: data})
	return nil
}

// Messages returns a copy of everything enqueued so far.
func (q *MemoryQueue) Messages() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.messages))
	copy(out, q.messages)
	return out
}

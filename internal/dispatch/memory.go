package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"inakat/lifecycle-service/internal/lifecycle"
)

// LogNotifier writes intents to the log instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, in lifecycle.SideEffectIntent) error {
	l := n.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("side effect",
		"intentId", in.ID, "kind", in.Kind, "applicationId", in.ApplicationID,
		"from", in.From, "to", in.To, "recipientId", in.RecipientID)
	return nil
}

// MemoryDeduper keeps claims in a set for the life of the process.
type MemoryDeduper struct {
	mu      sync.Mutex
	claimed map[uuid.UUID]struct{}
}

// NewMemoryDeduper returns an empty deduper.
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{claimed: make(map[uuid.UUID]struct{})}
}

// Claim implements Deduper.
func (d *MemoryDeduper) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.claimed[id]; ok {
		return false, nil
	}
	d.claimed[id] = struct{}{}
	return true, nil
}

// Release implements Deduper.
func (d *MemoryDeduper) Release(_ context.Context, id uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, id)
	return nil
}

// MemoryQueue is an in-process RetryQueue.
type MemoryQueue struct {
	mu    sync.Mutex
	items []Envelope
	dead  []Envelope
}

// NewMemoryQueue returns an empty queue.
func NewMemoryQueue() *MemoryQueue { return &MemoryQueue{} }

// Push implements RetryQueue.
func (q *MemoryQueue) Push(_ context.Context, env Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, env)
	return nil
}

// Pop implements RetryQueue.
func (q *MemoryQueue) Pop(_ context.Context) (Envelope, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Envelope{}, false, nil
	}
	env := q.items[0]
	q.items = q.items[1:]
	return env, true, nil
}

// DeadLetter implements RetryQueue.
func (q *MemoryQueue) DeadLetter(_ context.Context, env Envelope) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, env)
	return nil
}

// Len implements RetryQueue.
func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// Pending returns a copy of the queued envelopes.
func (q *MemoryQueue) Pending() []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Envelope(nil), q.items...)
}

// Dead returns a copy of the dead-lettered envelopes.
func (q *MemoryQueue) Dead() []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Envelope(nil), q.dead...)
}

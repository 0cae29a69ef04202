// Package engine implements the queue state engine: the in-memory
// authoritative view of queues, messages, and per-subscriber delivery
// status, plus the write-through protocol to a durable.Store.
//
// A single sync.RWMutex guards the whole map, matching the commonStore
// embedding pattern of a generic store: add/next/acknowledge/removeExpired
// all require the writer role because each either mutates the sequence or
// the status map, and next performs its read-then-reserve as one critical
// section so reservation is atomic with selection.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tombailey/dueue/internal/apperrors"
	"github.com/tombailey/dueue/internal/clock"
	"github.com/tombailey/dueue/internal/durable"
	"github.com/tombailey/dueue/internal/metrics"
	"github.com/tombailey/dueue/internal/notifier"
	"github.com/tombailey/dueue/internal/queue"
)

// Engine holds the in-memory Store and write-throughs to a durable.Store.
type Engine struct {
	mu     sync.RWMutex
	queues map[string]*queue.MessageQueue

	durable  durable.Store
	clock    clock.Clock
	metrics  *metrics.Metrics
	notifier notifier.Notifier
}

// New constructs an Engine over the given durable store and clock. metrics
// may be nil, in which case engine operations are not instrumented. n may
// be nil, in which case a notifier.Noop is used.
func New(store durable.Store, c clock.Clock, m *metrics.Metrics, n notifier.Notifier) *Engine {
	if n == nil {
		n = notifier.Noop{}
	}
	return &Engine{
		queues:   make(map[string]*queue.MessageQueue, 16),
		durable:  store,
		clock:    c,
		metrics:  m,
		notifier: n,
	}
}

// Initialize loads the durable snapshot, if any, and replaces the in-memory
// Store atomically. Reservations whose Until has already lapsed are still
// installed as Reserved; the timing predicate in Next treats them as
// Available on the next call.
func (e *Engine) Initialize(ctx context.Context) error {
	snapshot, err := e.durable.Initialize(ctx)
	if err != nil {
		return apperrors.Underlying("initialize", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.queues = snapshot
	return nil
}

// Add appends a new message to the named queue, creating the queue if
// absent. The durable append happens before the in-memory append becomes
// observable; on durable failure nothing is appended in memory.
func (e *Engine) Add(ctx context.Context, queueName string, value []byte, expiry time.Time) (*queue.Message, error) {
	message, err := e.durable.Add(ctx, queueName, value, expiry)
	if err != nil {
		return nil, apperrors.Underlying("add", err)
	}

	e.mu.Lock()
	q, ok := e.queues[queueName]
	if !ok {
		q = queue.NewMessageQueue()
		e.queues[queueName] = q
	}
	q.Append(message)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.MessageAdded(queueName)
	}
	_ = e.notifier.Notify(ctx, queueName)

	return message, nil
}

// Next finds the oldest message in queueName that is unexpired and either
// Available or Reserved with a lapsed Until for subscriberID, reserves it
// for ackDuration, and returns it. It returns (nil, nil) when nothing
// qualifies; a missing queue is not an error.
func (e *Engine) Next(_ context.Context, queueName, subscriberID string, ackDuration time.Duration) (*queue.Message, error) {
	now := e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	q, ok := e.queues[queueName]
	if !ok {
		return nil, nil
	}

	for _, message := range q.Messages {
		if !message.Expiry.After(now) {
			continue
		}

		key := queue.StatusKey{SubscriberID: subscriberID, MessageID: message.ID}
		entry := q.StatusFor(key)

		qualifies := false
		switch entry.Status {
		case queue.Available:
			qualifies = true
		case queue.Reserved:
			qualifies = !entry.Until.After(now)
		case queue.Acknowledged:
			qualifies = false
		}
		if !qualifies {
			continue
		}

		q.Statuses[key] = queue.Entry{
			Status: queue.Reserved,
			Until:  now.Add(ackDuration),
		}

		if e.metrics != nil {
			e.metrics.MessageDelivered(queueName)
		}
		return message, nil
	}

	return nil, nil
}

// Acknowledge durably records the ack (and deletes any reservation) before
// setting the in-memory status to Acknowledged, unconditionally. If the
// queue is not in memory the in-memory update is skipped silently; the
// durable update still occurs.
func (e *Engine) Acknowledge(ctx context.Context, queueName, subscriberID, messageID string) error {
	if err := e.durable.Acknowledge(ctx, subscriberID, messageID); err != nil {
		return apperrors.Underlying("acknowledge", err)
	}

	e.mu.Lock()
	if q, ok := e.queues[queueName]; ok {
		q.Statuses[queue.StatusKey{SubscriberID: subscriberID, MessageID: messageID}] = queue.Entry{
			Status: queue.Acknowledged,
		}
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.MessageAcknowledged(queueName)
	}

	return nil
}

// RemoveExpired purges every message whose expiry has passed: a read-lock
// snapshot of expired ids, a write-lock purge from memory, then durable
// removal of each expired id after the lock is released. Status entries
// for purged messages whose message id is no longer present in any
// sequence are dropped in the same write-lock pass as a compaction step;
// this never changes observable behavior since a purged message can never
// be returned anyway.
func (e *Engine) RemoveExpired(ctx context.Context) error {
	now := e.clock.Now()

	e.mu.RLock()
	expiredByQueue := make(map[string][]string, len(e.queues))
	for name, q := range e.queues {
		for _, message := range q.Messages {
			if !message.Expiry.After(now) {
				expiredByQueue[name] = append(expiredByQueue[name], message.ID)
			}
		}
	}
	e.mu.RUnlock()

	if len(expiredByQueue) == 0 {
		return nil
	}

	var allExpired []string

	e.mu.Lock()
	for name, ids := range expiredByQueue {
		q, ok := e.queues[name]
		if !ok {
			continue
		}
		expiredSet := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			expiredSet[id] = struct{}{}
		}

		remaining := q.Messages[:0]
		present := make(map[string]struct{}, len(q.Messages))
		for _, message := range q.Messages {
			if _, expired := expiredSet[message.ID]; expired {
				continue
			}
			remaining = append(remaining, message)
			present[message.ID] = struct{}{}
		}
		q.Messages = remaining

		for key := range q.Statuses {
			if _, ok := present[key.MessageID]; !ok {
				delete(q.Statuses, key)
			}
		}

		allExpired = append(allExpired, ids...)
	}
	e.mu.Unlock()

	for _, id := range allExpired {
		if err := e.durable.Remove(ctx, id); err != nil {
			return apperrors.Underlying("remove_expired", err)
		}
	}

	if e.metrics != nil {
		for name, ids := range expiredByQueue {
			e.metrics.MessagesExpired(name, len(ids))
		}
	}

	return nil
}

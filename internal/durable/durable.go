// Package durable defines the abstract durable store that the queue engine
// writes through to. Two concrete realizations exist: memorystore (a no-op
// persistence layer, id generation only) and postgresstore (a relational
// backend over pgx/v5).
package durable

import (
	"context"
	"time"

	"github.com/tombailey/dueue/internal/queue"
)

// Store abstracts append/ack/reserve/remove/load operations on persistent
// queue state. The engine never calls Reserve today; it exists for
// interface completeness and a future durable-reservation path.
type Store interface {
	// Initialize returns the full snapshot grouped by queue name, including
	// status maps reconstructed from persisted acknowledgements and
	// reservations. It also creates any required backing schema and purges
	// already-expired messages.
	Initialize(ctx context.Context) (map[string]*queue.MessageQueue, error)

	// Add persists a new message and returns the canonical copy (id
	// assigned by the backend).
	Add(ctx context.Context, queueName string, value []byte, expiry time.Time) (*queue.Message, error)

	// Acknowledge transactionally records an ack and deletes any
	// reservation for the same message.
	Acknowledge(ctx context.Context, subscriberID, messageID string) error

	// Reserve records a reservation. Not called by the current engine.
	Reserve(ctx context.Context, subscriberID, messageID string, until time.Time) error

	// Remove deletes the message, without leaving dangling ack/reservation
	// references.
	Remove(ctx context.Context, messageID string) error

	// Close releases any resources (connection pools) held by the store.
	Close() error
}

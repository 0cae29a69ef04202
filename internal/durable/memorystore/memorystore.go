// Package memorystore implements durable.Store with no persistence at all.
// It exists purely to give the engine an id generator when no relational
// backend is configured; every other operation is a no-op.
package memorystore

import (
	"context"
	"time"

	"github.com/tombailey/dueue/internal/idgen"
	"github.com/tombailey/dueue/internal/queue"
)

// Store is a durable.Store that persists nothing. Restarting the process
// loses all state; Initialize always returns an empty snapshot.
type Store struct {
	ids idgen.Generator
}

// New returns a memorystore.Store using the given id generator.
func New(ids idgen.Generator) *Store {
	return &Store{ids: ids}
}

// Initialize returns an empty snapshot; there is nothing to load.
func (s *Store) Initialize(_ context.Context) (map[string]*queue.MessageQueue, error) {
	return map[string]*queue.MessageQueue{}, nil
}

// Add allocates an id locally and returns the message unpersisted.
func (s *Store) Add(_ context.Context, _ string, value []byte, expiry time.Time) (*queue.Message, error) {
	return &queue.Message{
		ID:     s.ids.NewID(),
		Value:  value,
		Expiry: expiry,
	}, nil
}

// Acknowledge is a no-op.
func (s *Store) Acknowledge(_ context.Context, _ string, _ string) error {
	return nil
}

// Reserve is a no-op.
func (s *Store) Reserve(_ context.Context, _ string, _ string, _ time.Time) error {
	return nil
}

// Remove is a no-op.
func (s *Store) Remove(_ context.Context, _ string) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

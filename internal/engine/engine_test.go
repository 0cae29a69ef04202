package engine

import (
	"context"
	"testing"
	"time"

	"github.com/tombailey/dueue/internal/clock"
	"github.com/tombailey/dueue/internal/durable/memorystore"
	"github.com/tombailey/dueue/internal/queue"
)

type sequentialIDs struct {
	next int
}

func (s *sequentialIDs) NewID() string {
	s.next++
	return string(rune('a' + s.next - 1))
}

func newTestEngine(now time.Time) (*Engine, *clock.Fixed) {
	fixed := &clock.Fixed{At: now}
	store := memorystore.New(&sequentialIDs{})
	return New(store, fixed, nil, nil), fixed
}

func TestAddThenNextReturnsMessage(t *testing.T) {
	e, _ := newTestEngine(time.Unix(0, 0))
	ctx := context.Background()

	added, err := e.Add(ctx, "orders", []byte("hello"), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := e.Next(ctx, "orders", "sub-1", time.Minute)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a message, got nil")
	}
	if got.ID != added.ID {
		t.Fatalf("expected id %s, got %s", added.ID, got.ID)
	}
}

func TestNextOnMissingQueueReturnsNil(t *testing.T) {
	e, _ := newTestEngine(time.Unix(0, 0))

	got, err := e.Next(context.Background(), "absent", "sub-1", time.Minute)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for a queue that was never created")
	}
}

func TestNextSkipsExpiredMessage(t *testing.T) {
	e, _ := newTestEngine(time.Unix(100, 0))
	ctx := context.Background()

	if _, err := e.Add(ctx, "orders", []byte("stale"), time.Unix(50, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := e.Next(ctx, "orders", "sub-1", time.Minute)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil, message has already expired")
	}
}

func TestNextHidesReservedMessageFromSameSubscriber(t *testing.T) {
	e, _ := newTestEngine(time.Unix(0, 0))
	ctx := context.Background()

	if _, err := e.Add(ctx, "orders", []byte("hello"), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	first, err := e.Next(ctx, "orders", "sub-1", time.Minute)
	if err != nil || first == nil {
		t.Fatalf("first Next failed: got %v, err %v", first, err)
	}

	second, err := e.Next(ctx, "orders", "sub-1", time.Minute)
	if err != nil {
		t.Fatalf("second Next failed: %v", err)
	}
	if second != nil {
		t.Fatal("expected nil, message is still reserved by the same subscriber")
	}
}

func TestNextDeliversIndependentlyToDifferentSubscribers(t *testing.T) {
	e, _ := newTestEngine(time.Unix(0, 0))
	ctx := context.Background()

	if _, err := e.Add(ctx, "orders", []byte("hello"), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := e.Next(ctx, "orders", "sub-1", time.Minute); err != nil {
		t.Fatalf("Next for sub-1 failed: %v", err)
	}

	got, err := e.Next(ctx, "orders", "sub-2", time.Minute)
	if err != nil {
		t.Fatalf("Next for sub-2 failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected sub-2 to receive the message independently of sub-1's reservation")
	}
}

func TestNextRedeliversAfterReservationLapses(t *testing.T) {
	e, fixed := newTestEngine(time.Unix(0, 0))
	ctx := context.Background()

	if _, err := e.Add(ctx, "orders", []byte("hello"), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := e.Next(ctx, "orders", "sub-1", 10*time.Second); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}

	fixed.At = fixed.At.Add(11 * time.Second)

	got, err := e.Next(ctx, "orders", "sub-1", 10*time.Second)
	if err != nil {
		t.Fatalf("second Next failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected redelivery once the reservation lapsed")
	}
}

func TestAcknowledgeMakesMessagePermanentlyUnavailable(t *testing.T) {
	e, fixed := newTestEngine(time.Unix(0, 0))
	ctx := context.Background()

	if _, err := e.Add(ctx, "orders", []byte("hello"), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	msg, err := e.Next(ctx, "orders", "sub-1", time.Second)
	if err != nil || msg == nil {
		t.Fatalf("Next failed: got %v, err %v", msg, err)
	}

	if err := e.Acknowledge(ctx, "orders", "sub-1", msg.ID); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}

	fixed.At = fixed.At.Add(time.Hour)

	got, err := e.Next(ctx, "orders", "sub-1", time.Second)
	if err != nil {
		t.Fatalf("Next after ack failed: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil, message was acknowledged and must never be redelivered")
	}
}

func TestNextPrefersOldestQualifyingMessage(t *testing.T) {
	e, _ := newTestEngine(time.Unix(0, 0))
	ctx := context.Background()

	first, err := e.Add(ctx, "orders", []byte("first"), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("Add first failed: %v", err)
	}
	if _, err := e.Add(ctx, "orders", []byte("second"), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Add second failed: %v", err)
	}

	got, err := e.Next(ctx, "orders", "sub-1", time.Minute)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Fatalf("expected the oldest message %s, got %v", first.ID, got)
	}
}

func TestRemoveExpiredPurgesFromSequenceAndStatus(t *testing.T) {
	e, fixed := newTestEngine(time.Unix(0, 0))
	ctx := context.Background()

	msg, err := e.Add(ctx, "orders", []byte("hello"), time.Unix(100, 0))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := e.Next(ctx, "orders", "sub-1", time.Minute); err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	fixed.At = time.Unix(200, 0)

	if err := e.RemoveExpired(ctx); err != nil {
		t.Fatalf("RemoveExpired failed: %v", err)
	}

	e.mu.RLock()
	q := e.queues["orders"]
	remaining := len(q.Messages)
	_, hasStatus := q.Statuses[queue.StatusKey{SubscriberID: "sub-1", MessageID: msg.ID}]
	e.mu.RUnlock()

	if remaining != 0 {
		t.Fatalf("expected the expired message to be purged, %d remain", remaining)
	}
	if hasStatus {
		t.Fatal("expected the compaction pass to drop the status entry for the purged message")
	}
}

func TestRemoveExpiredIsNoopWhenNothingExpired(t *testing.T) {
	e, _ := newTestEngine(time.Unix(0, 0))
	ctx := context.Background()

	if _, err := e.Add(ctx, "orders", []byte("hello"), time.Unix(1000, 0)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := e.RemoveExpired(ctx); err != nil {
		t.Fatalf("RemoveExpired failed: %v", err)
	}

	got, err := e.Next(ctx, "orders", "sub-1", time.Minute)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected the unexpired message to still be deliverable")
	}
}

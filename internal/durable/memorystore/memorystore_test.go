package memorystore

import (
	"context"
	"testing"
	"time"
)

type fakeIDs struct {
	ids []string
}

func (f *fakeIDs) NewID() string {
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id
}

func TestInitializeReturnsEmptySnapshot(t *testing.T) {
	s := New(&fakeIDs{})

	snapshot, err := s.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("expected an empty snapshot, got %d queues", len(snapshot))
	}
}

func TestAddUsesGeneratorAndReturnsUnpersistedMessage(t *testing.T) {
	s := New(&fakeIDs{ids: []string{"fixed-id"}})
	expiry := time.Unix(100, 0)

	msg, err := s.Add(context.Background(), "orders", []byte("hello"), expiry)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if msg.ID != "fixed-id" {
		t.Fatalf("expected id from generator, got %s", msg.ID)
	}
	if string(msg.Value) != "hello" {
		t.Fatalf("expected value hello, got %s", msg.Value)
	}
	if !msg.Expiry.Equal(expiry) {
		t.Fatalf("expected expiry %v, got %v", expiry, msg.Expiry)
	}
}

func TestAcknowledgeReserveRemoveCloseAreNoops(t *testing.T) {
	s := New(&fakeIDs{})
	ctx := context.Background()

	if err := s.Acknowledge(ctx, "sub", "msg"); err != nil {
		t.Fatalf("Acknowledge returned error: %v", err)
	}
	if err := s.Reserve(ctx, "sub", "msg", time.Now()); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	if err := s.Remove(ctx, "msg"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

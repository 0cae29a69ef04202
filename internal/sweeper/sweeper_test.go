package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingRemover struct {
	calls     atomic.Int64
	returnErr error
}

func (c *countingRemover) RemoveExpired(_ context.Context) error {
	c.calls.Add(1)
	return c.returnErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTickInvokesRemoveExpiredAndOnTick(t *testing.T) {
	remover := &countingRemover{}
	var gotErr error
	var gotSeconds float64
	s := New(remover, discardLogger(), func(seconds float64, err error) {
		gotSeconds = seconds
		gotErr = err
	})

	s.tick()

	if remover.calls.Load() != 1 {
		t.Fatalf("expected RemoveExpired to be called once, got %d", remover.calls.Load())
	}
	if gotErr != nil {
		t.Fatalf("expected nil error, got %v", gotErr)
	}
	if gotSeconds < 0 {
		t.Fatalf("expected a non-negative duration, got %v", gotSeconds)
	}
}

func TestTickReportsRemoveExpiredError(t *testing.T) {
	wantErr := errors.New("boom")
	remover := &countingRemover{returnErr: wantErr}
	var gotErr error
	s := New(remover, discardLogger(), func(_ float64, err error) {
		gotErr = err
	})

	s.tick()

	if gotErr != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, gotErr)
	}
}

func TestTickSkipsWhenAlreadyRunning(t *testing.T) {
	remover := &countingRemover{}
	s := New(remover, discardLogger(), nil)
	s.running.Store(true)

	s.tick()

	if remover.calls.Load() != 0 {
		t.Fatalf("expected RemoveExpired not to be called while a tick is in flight, got %d calls", remover.calls.Load())
	}
}

func TestStartAndStop(t *testing.T) {
	remover := &countingRemover{}
	s := New(remover, discardLogger(), nil)
	s.interval = 5 * time.Millisecond

	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	if remover.calls.Load() == 0 {
		t.Fatal("expected at least one tick to have run before Stop")
	}
}

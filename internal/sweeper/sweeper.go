// Package sweeper runs the periodic expiry cleanup tick against the queue
// engine. Ticks never overlap; a failing tick is logged and skipped without
// backing off the schedule.
package sweeper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Interval is the default time between sweeps.
const Interval = 60 * time.Second

// Remover is the subset of the engine the sweeper depends on.
type Remover interface {
	RemoveExpired(ctx context.Context) error
}

// Sweeper periodically invokes RemoveExpired on an engine.
type Sweeper struct {
	remover  Remover
	interval time.Duration
	logger   *slog.Logger
	onTick   func(seconds float64, err error)

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New constructs a Sweeper over remover. onTick, if non-nil, is called
// after every tick with its duration and outcome (for metrics).
func New(remover Remover, logger *slog.Logger, onTick func(seconds float64, err error)) *Sweeper {
	return &Sweeper{
		remover:  remover,
		interval: Interval,
		logger:   logger,
		onTick:   onTick,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the ticker loop in a new goroutine.
func (s *Sweeper) Start() {
	go s.loop()
}

// Stop halts the ticker loop and waits for any in-flight tick to finish.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *Sweeper) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Sweeper) tick() {
	if !s.running.CompareAndSwap(false, true) {
		// A previous tick is still running; skip this one rather than overlap.
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	err := s.remover.RemoveExpired(context.Background())
	elapsed := time.Since(start).Seconds()

	if err != nil {
		s.logger.Error("sweep failed", "error", err)
	}
	if s.onTick != nil {
		s.onTick(elapsed, err)
	}
}

package patterns

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is how often the scheduler runs a promotion cycle.
const DefaultInterval = 15 * time.Minute

// Cycler runs one promotion pass.
type Cycler interface {
	RunCycle(ctx context.Context) int
}

// Scheduler runs promotion cycles in the background.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	logger   *zap.Logger

	stopChan  chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive interval uses DefaultInterval.
func NewScheduler(c Cycler, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cycler:   c,
		interval: interval,
		logger:   logger.Named("scheduler"),
		stopChan: make(chan struct{}),
	}
}

// Start runs one cycle immediately and then one per interval until Stop
// is called or ctx is done. Calling Start twice has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run(ctx)
	})
}

// Stop halts the scheduler and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	n := s.cycler.RunCycle(ctx)
	s.logger.Debug("scheduled promotion cycle", zap.Int("promoted", n))
}

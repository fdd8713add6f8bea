// Package cleanup periodically removes expired credential records.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/nkiryanov/netcraft/internal/clock"
	"github.com/nkiryanov/netcraft/internal/logger"
)

const defaultInterval = time.Hour

// Anything that knows how to delete its expired records
type Sweeper interface {
	Name() string
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	interval time.Duration
	clock    clock.Clock
	logger   logger.Logger
	sweepers []Sweeper
}

type Config struct {
	// How often to sweep; one hour if zero
	Interval time.Duration

	// Clock to get "now" from; system clock if nil
	Clock clock.Clock
}

func NewScheduler(cfg Config, l logger.Logger, sweepers ...Sweeper) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System
	}

	return &Scheduler{
		interval: cfg.Interval,
		clock:    cfg.Clock,
		logger:   l.With("component", "cleanup"),
		sweepers: sweepers,
	}
}

// Run sweeps every interval until ctx cancelled
// Returned channel is closed when the loop exits
func (s *Scheduler) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting cleanup scheduler", "interval", s.interval, "sweepers", len(s.sweepers))

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Cleanup scheduler stopped by context")
				return

			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()

	return idleStopped
}

// SweepOnce runs every sweeper once. Failure of one sweeper does not stop the others
func (s *Scheduler) SweepOnce(ctx context.Context) {
	now := s.clock.Now()

	for _, sw := range s.sweepers {
		if ctx.Err() != nil {
			return
		}

		n, err := s.sweep(ctx, sw, now)
		switch {
		case err != nil:
			s.logger.Error("Cleanup failed", "sweeper", sw.Name(), "error", err.Error())
		case n > 0:
			s.logger.Info("Expired records removed", "sweeper", sw.Name(), "count", n)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context, sw Sweeper, now time.Time) (n int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweeper panicked: %v", r)
		}
	}()

	return sw.Sweep(ctx, now)
}

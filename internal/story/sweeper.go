package story

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

const DefaultSweepInterval = 60 * time.Second

type SweepOpts struct {
	Interval time.Duration
	Timezone string
	// Clock drives the schedule; it defaults to a real clock so a store
	// running on a fake clock can still be swept on wall time.
	Clock clockwork.Clock
}

// Sweeper is the handle of a scheduled expiration sweep. Stop must be called
// on teardown.
type Sweeper struct {
	scheduler gocron.Scheduler
	done      chan struct{}
	once      sync.Once
	stopErr   error
}

// ScheduleSweep runs Sweep on a fixed interval until ctx is done or the
// returned Sweeper is stopped.
func (s *Store) ScheduleSweep(ctx context.Context, opts SweepOpts) (*Sweeper, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	loc := time.UTC
	if opts.Timezone != "" {
		l, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			s.logger.Warn("Failed to load sweep timezone, using UTC", "timezone", opts.Timezone, "error", err)
		} else {
			loc = l
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc), gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				s.logger.Info("Context cancelled, skipping story sweep")
				return
			}
			s.Sweep()
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("story-expiration-sweep"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to schedule story sweep: %w", err)
	}

	scheduler.Start()
	s.logger.Info("Story sweep scheduled", "interval", interval)

	sw := &Sweeper{scheduler: scheduler, done: make(chan struct{})}

	go func() {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping story sweep scheduler")
			if err := sw.Stop(); err != nil {
				s.logger.Error("Failed to shut down story sweep scheduler", "error", err)
			}
		case <-sw.done:
		}
	}()

	return sw, nil
}

// Stop shuts the scheduler down. Later calls return the first result.
func (sw *Sweeper) Stop() error {
	sw.once.Do(func() {
		close(sw.done)
		sw.stopErr = sw.scheduler.Shutdown()
	})
	return sw.stopErr
}

package updater

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Scheduler runs full cache refreshes on a fixed interval until its
// context is cancelled. Per-cycle errors are logged and the loop
// continues.
type Scheduler struct {
	aggregator *Aggregator
	interval   time.Duration
	logger     *zap.Logger
}

// NewScheduler validates the interval and wires the aggregator.
func NewScheduler(aggregator *Aggregator, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("refresh interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{aggregator: aggregator, interval: interval, logger: logger}, nil
}

// Run blocks until ctx is cancelled, then shuts the job scheduler down.
func (s *Scheduler) Run(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "create scheduler")
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if err := s.aggregator.RunUpdate(ctx, ""); err != nil {
				s.logger.Error("periodic rates update failed", zap.Error(err))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errors.Wrap(err, "schedule periodic update")
	}

	s.logger.Info("periodic rates update started", zap.Duration("interval", s.interval))
	sched.Start()

	<-ctx.Done()

	s.logger.Info("periodic rates update stopping")
	return sched.Shutdown()
}

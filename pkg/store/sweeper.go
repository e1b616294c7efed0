package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// recordEnvelope is the part every persisted record shares. The sweeper
// only needs the last-write timestamp, whatever the record type is.
type recordEnvelope struct {
	UpdatedAt time.Time `json:"updated_at"`
}

type SweeperOpts struct {
	TimeProvider func() time.Time
}

// Sweeper periodically removes records untouched for longer than the
// retention threshold. It runs independently of the request path; a
// removed counter simply reappears as a fresh window on next use.
type Sweeper struct {
	store        Store
	retention    time.Duration
	interval     time.Duration
	logger       *logrus.Logger
	scheduler    gocron.Scheduler
	timeProvider func() time.Time
}

func NewSweeper(
	s Store,
	retention time.Duration,
	interval time.Duration,
	logger *logrus.Logger,
	opts *SweeperOpts,
) (*Sweeper, error) {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	return &Sweeper{
		store:        s,
		retention:    retention,
		interval:     interval,
		logger:       logger,
		scheduler:    scheduler,
		timeProvider: timeProvider,
	}, nil
}

func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			removed := s.Sweep(ctx)
			if removed > 0 {
				s.logger.WithField("removed", removed).Info("swept stale records")
			}
		}),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

// Sweep runs one pass and returns the number of records removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("sweep could not enumerate keys")
		return 0
	}

	cutoff := s.timeProvider().Add(-s.retention)
	removed := 0
	for _, key := range keys {
		data, ok := s.store.Get(ctx, key)
		if !ok {
			continue
		}

		var envelope recordEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.UpdatedAt.IsZero() {
			continue
		}
		if envelope.UpdatedAt.After(cutoff) {
			continue
		}

		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("failed to delete stale record")
			continue
		}
		removed++
	}
	return removed
}

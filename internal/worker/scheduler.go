package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"
)

// Scheduler runs a RefreshJob on a cron schedule. Ticks that arrive while a
// run is still in progress are skipped.
type Scheduler struct {
	ctx     context.Context
	cron    *cron.Cron
	job     *RefreshJob
	logger  zerolog.Logger
	running sync.Mutex
}

// NewScheduler registers job under schedule, e.g. "@every 1h" or "0 0 * * * *".
func NewScheduler(ctx context.Context, schedule string, job *RefreshJob, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		ctx:    ctx,
		cron:   cron.New(),
		job:    job,
		logger: logger,
	}

	if err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Trigger runs the job once in the background, outside the schedule.
func (s *Scheduler) Trigger() {
	go s.tick()
}

func (s *Scheduler) tick() {
	if !s.running.TryLock() {
		s.logger.Warn().Msg("previous refresh still running, skipping tick")
		return
	}
	defer s.running.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	s.job.Run(s.ctx)
}

// Start begins firing the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info().Time("next_run", e.Next).Msg("refresh scheduled")
	}
}

// Stop halts the schedule. A run in progress continues until its context ends.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Package scheduler wraps robfig/cron for the core's one periodic
// background job: history retention.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of scheduled work.
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages cron-scheduled background jobs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a Scheduler with second-level granularity.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop waits for any in-flight job to finish, then returns.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// AddJob registers job on the given cron schedule (e.g. "0 0 3 * * *" for
// daily at 03:00).
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("running job")
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", job.Name()).Msg("job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}

// RunNow executes job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("running job immediately")
	return job.Run()
}

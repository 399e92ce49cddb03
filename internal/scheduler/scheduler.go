// Package scheduler runs Ghillie's background jobs on cron schedules:
// reporting runs, registry syncs, catalogue watch polls, WAL checks and
// backups.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler. Schedules use the six-field cron format
// with a leading seconds field.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule. A failing run is logged and
// the schedule keeps firing.
//
// Schedule examples:
//   - "0 */5 * * * *"      - Every 5 minutes
//   - "0 0 6 * * *"        - 06:00 daily
//   - "@hourly"            - Every hour
//   - "@every 30s"         - Every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	if _, err := s.cron.AddFunc(schedule, func() { _ = s.execute(job) }); err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")
	return nil
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	return s.execute(job)
}

// execute runs one job and logs its outcome with the wall-clock duration.
func (s *Scheduler) execute(job Job) error {
	log := s.log.With().Str("job", job.Name()).Logger()
	log.Debug().Msg("Running job")
	started := time.Now()

	if err := job.Run(); err != nil {
		log.Error().Err(err).Dur("duration_ms", time.Since(started)).Msg("Job failed")
		return err
	}

	log.Debug().Dur("duration_ms", time.Since(started)).Msg("Job completed")
	return nil
}

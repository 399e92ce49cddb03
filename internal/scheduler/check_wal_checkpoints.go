package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/reliability"
)

// CheckWALCheckpointsJob monitors WAL checkpoint status across the
// databases
type CheckWALCheckpointsJob struct {
	maintenance *reliability.MaintenanceService
	log         zerolog.Logger
}

// NewCheckWALCheckpointsJob creates a new CheckWALCheckpointsJob
func NewCheckWALCheckpointsJob(maintenance *reliability.MaintenanceService) *CheckWALCheckpointsJob {
	return &CheckWALCheckpointsJob{
		maintenance: maintenance,
		log:         zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *CheckWALCheckpointsJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run executes one passive checkpoint sweep
func (j *CheckWALCheckpointsJob) Run() error {
	if err := j.maintenance.CheckWALCheckpoints(context.Background()); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint sweep reported errors")
		return err
	}
	return nil
}

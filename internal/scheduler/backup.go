package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/reliability"
)

// BackupJob ships database snapshots to object storage
type BackupJob struct {
	backups *reliability.BackupService
	log     zerolog.Logger
}

// NewBackupJob creates a new BackupJob
func NewBackupJob(backups *reliability.BackupService) *BackupJob {
	return &BackupJob{
		backups: backups,
		log:     zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *BackupJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes one backup pass over every database
func (j *BackupJob) Run() error {
	if err := j.backups.BackupAll(context.Background()); err != nil {
		j.log.Error().Err(err).Msg("Backup run failed")
		return err
	}
	return nil
}

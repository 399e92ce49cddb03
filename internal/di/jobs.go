package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/scheduler"
)

// JobInstances holds the background jobs for scheduler registration and
// manual triggering. CatalogueWatch and Backup stay nil when their
// services are unconfigured.
type JobInstances struct {
	EstateReporting     *scheduler.EstateReportingJob
	RegistrySync        *scheduler.RegistrySyncJob
	CatalogueWatch      *scheduler.CatalogueWatchJob
	CheckWALCheckpoints *scheduler.CheckWALCheckpointsJob
	Backup              *scheduler.BackupJob
}

// RegisterJobs creates the job instances from container services
func RegisterJobs(container *Container, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}
	if container.Orchestrator == nil {
		return nil, fmt.Errorf("services must be initialized before jobs")
	}

	instances := &JobInstances{}

	estateReporting := scheduler.NewEstateReportingJob(container.Estates, container.Orchestrator)
	estateReporting.SetLogger(log)
	instances.EstateReporting = estateReporting

	registrySync := scheduler.NewRegistrySyncJob(container.Estates, container.Registry)
	registrySync.SetLogger(log)
	instances.RegistrySync = registrySync

	if container.Watcher != nil {
		watch := scheduler.NewCatalogueWatchJob(container.Watcher)
		watch.SetLogger(log)
		instances.CatalogueWatch = watch
	}

	checkpoints := scheduler.NewCheckWALCheckpointsJob(container.Maintenance)
	checkpoints.SetLogger(log)
	instances.CheckWALCheckpoints = checkpoints

	if container.Backups != nil {
		backup := scheduler.NewBackupJob(container.Backups)
		backup.SetLogger(log)
		instances.Backup = backup
	}

	log.Info().Msg("All jobs registered")

	return instances, nil
}

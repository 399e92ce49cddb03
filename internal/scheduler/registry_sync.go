package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/registry"
)

// RegistrySyncJob re-syncs every estate's registry rows from its catalogue
type RegistrySyncJob struct {
	estates  *catalogue.EstateRepository
	registry *registry.Service
	log      zerolog.Logger
}

// NewRegistrySyncJob creates a new RegistrySyncJob
func NewRegistrySyncJob(estates *catalogue.EstateRepository, registrySvc *registry.Service) *RegistrySyncJob {
	return &RegistrySyncJob{
		estates:  estates,
		registry: registrySvc,
		log:      zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *RegistrySyncJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *RegistrySyncJob) Name() string {
	return "registry_sync"
}

// Run syncs every estate, continuing past failures and returning the
// first error at the end
func (j *RegistrySyncJob) Run() error {
	ctx := context.Background()

	estates, err := j.estates.ListAll(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, estate := range estates {
		result, err := j.registry.SyncFromCatalogue(ctx, estate.Key)
		if err != nil {
			j.log.Error().Err(err).Str("estate", estate.Key).Msg("Registry sync failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		j.log.Debug().
			Str("estate", estate.Key).
			Int("created", result.Created).
			Int("updated", result.Updated).
			Int("deactivated", result.Deactivated).
			Msg("Registry synced")
	}
	return firstErr
}

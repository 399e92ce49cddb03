package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/reporting"
)

// EstateReportingJob runs the reporting orchestrator across every estate
type EstateReportingJob struct {
	estates      *catalogue.EstateRepository
	orchestrator *reporting.Orchestrator
	log          zerolog.Logger
}

// NewEstateReportingJob creates a new EstateReportingJob
func NewEstateReportingJob(estates *catalogue.EstateRepository, orchestrator *reporting.Orchestrator) *EstateReportingJob {
	return &EstateReportingJob{
		estates:      estates,
		orchestrator: orchestrator,
		log:          zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *EstateReportingJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *EstateReportingJob) Name() string {
	return "estate_reporting"
}

// Run generates reports for every estate. Estates are independent: a
// failing estate is logged and the rest still run, with the first error
// returned at the end.
func (j *EstateReportingJob) Run() error {
	ctx := context.Background()

	estates, err := j.estates.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(estates) == 0 {
		j.log.Debug().Msg("No estates to report on")
		return nil
	}

	var firstErr error
	for _, estate := range estates {
		result, err := j.orchestrator.RunForEstate(ctx, estate.ID, nil)
		if result != nil {
			j.log.Info().
				Str("estate", estate.Key).
				Int("generated", result.Generated).
				Int("skipped", result.Skipped).
				Int("failed", len(result.Failures)).
				Msg("Estate reporting run finished")
		}
		if err != nil {
			j.log.Error().Err(err).Str("estate", estate.Key).Msg("Estate reporting run had failures")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

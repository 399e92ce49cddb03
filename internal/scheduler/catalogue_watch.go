package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/watcher"
)

// CatalogueWatchJob polls the catalogue checkout for new commits
type CatalogueWatchJob struct {
	watcher *watcher.Watcher
	log     zerolog.Logger
}

// NewCatalogueWatchJob creates a new CatalogueWatchJob
func NewCatalogueWatchJob(w *watcher.Watcher) *CatalogueWatchJob {
	return &CatalogueWatchJob{
		watcher: w,
		log:     zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *CatalogueWatchJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CatalogueWatchJob) Name() string {
	return "catalogue_watch"
}

// Run polls the checkout once. The watcher logs import and sync outcomes
// itself; validation failures surface here so the scheduler records them.
func (j *CatalogueWatchJob) Run() error {
	_, err := j.watcher.Poll(context.Background())
	if err != nil {
		j.log.Error().Err(err).Msg("Catalogue poll failed")
	}
	return err
}

package reporting

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wildside/ghillie/internal/modules/registry"
)

// EstateRunResult summarises one estate-wide reporting run. Skipped counts
// repositories whose window held no events.
type EstateRunResult struct {
	EstateID  string              `json:"estate_id"`
	Generated int                 `json:"generated"`
	Skipped   int                 `json:"skipped"`
	Failures  []RepositoryFailure `json:"failures,omitempty"`
}

// RunForEstate generates reports for every ingestion-enabled repository in
// the estate, at most cfg.MaxConcurrent at a time. One repository failing
// never stops the others; when any fail, the tallied result is returned
// alongside an *EstateRunError so callers still see what succeeded.
func (o *Orchestrator) RunForEstate(ctx context.Context, estateID string, asOf *time.Time) (*EstateRunResult, error) {
	repos, err := o.repos.List(ctx, registry.ListOptions{EstateID: &estateID}, true)
	if err != nil {
		return nil, err
	}

	result := &EstateRunResult{EstateID: estateID}
	sem := semaphore.NewWeighted(int64(o.cfg.MaxConcurrent))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, repo := range repos {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		go func(repo registry.RepoInfo) {
			defer wg.Done()
			defer sem.Release(1)

			report, runErr := o.RunForRepository(ctx, repo.ID, asOf)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case runErr != nil:
				result.Failures = append(result.Failures, RepositoryFailure{
					RepositoryID: repo.ID,
					Slug:         repo.Slug,
					Err:          runErr,
				})
			case report == nil:
				result.Skipped++
			default:
				result.Generated++
			}
		}(repo)
	}
	wg.Wait()

	sort.Slice(result.Failures, func(i, j int) bool {
		return result.Failures[i].Slug < result.Failures[j].Slug
	})

	o.log.Info().
		Str("estate_id", estateID).
		Int("repositories", len(repos)).
		Int("generated", result.Generated).
		Int("skipped", result.Skipped).
		Int("failed", len(result.Failures)).
		Msg("Estate reporting run complete")

	if len(result.Failures) > 0 {
		return result, &EstateRunError{EstateID: estateID, Failures: result.Failures}
	}
	return result, nil
}

package reporting

import (
	"context"
	"time"
)

// ComputeNextWindow derives the next reporting window for a repository.
// The window ends at asOf (now when nil) and starts at the previous
// report's window end, keeping consecutive runs contiguous and gap-free.
// Without a previous report the window spans the configured number of
// days back from the end. An asOf earlier than the previous window end
// clamps the start to the end, yielding an empty window rather than one
// that runs backwards.
func (o *Orchestrator) ComputeNextWindow(ctx context.Context, repositoryID string, asOf *time.Time) (ReportingWindow, error) {
	end := time.Now().UTC()
	if asOf != nil {
		end = asOf.UTC()
	}

	prev, err := o.reports.LatestForRepository(ctx, repositoryID)
	if err != nil {
		return ReportingWindow{}, err
	}

	var start time.Time
	if prev != nil {
		start = prev.WindowEnd
		if end.Before(start) {
			start = end
		}
	} else {
		start = end.AddDate(0, 0, -o.cfg.WindowDays)
	}

	return ReportingWindow{Start: start, End: end}, nil
}

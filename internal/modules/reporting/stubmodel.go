package reporting

import (
	"context"
	"fmt"

	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/modules/evidence"
)

// StubModel derives a deterministic status result from bundle counts. It
// backs development runs without a real model and keeps orchestrator tests
// independent of any API.
type StubModel struct{}

// ModelID identifies stub-generated reports
func (StubModel) ModelID() string {
	return "stub"
}

// SummarizeRepository builds a plain-count summary. The status is always
// on_track: the stub has no judgement, only arithmetic.
func (StubModel) SummarizeRepository(_ context.Context, bundle *evidence.RepositoryEvidenceBundle) (domain.StatusResult, error) {
	result := domain.StatusResult{
		Status: domain.StatusOnTrack,
		Summary: fmt.Sprintf("%d events recorded for %s between %s and %s: %d commits, %d pull requests, %d issues.",
			bundle.TotalEventCount(), bundle.Repository.Slug,
			bundle.WindowStart.UTC().Format("2006-01-02"),
			bundle.WindowEnd.UTC().Format("2006-01-02"),
			len(bundle.Commits), len(bundle.PullRequests), len(bundle.Issues)),
	}
	for _, grouping := range bundle.WorkTypes {
		result.Highlights = append(result.Highlights,
			fmt.Sprintf("%s: %d commits, %d pull requests, %d issues",
				grouping.WorkType, grouping.Commits, grouping.PullRequests, grouping.Issues))
	}
	return result, nil
}

package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildside/ghillie/internal/domain"
)

// seedReport inserts a minimal prior report row so window computation has
// history to lean on
func (f *reportingFixture) seedReport(t *testing.T, repositoryID string, start, end time.Time) string {
	t.Helper()

	report := &Report{
		ID:           uuid.NewString(),
		Scope:        ScopeRepository,
		RepositoryID: &repositoryID,
		WindowStart:  start,
		WindowEnd:    end,
		GeneratedAt:  end,
		Model:        "scripted",
		HumanText:    "A quiet week.",
		MachineSummary: domain.StatusResult{
			Status:  domain.StatusOnTrack,
			Summary: "A quiet week.",
		},
	}
	require.NoError(t, f.reports.CreateTx(context.Background(), f.goldConn, report))
	return report.ID
}

func TestComputeNextWindowWithoutHistory(t *testing.T) {
	f := newReportingFixture(t, Config{})
	repo := f.seedRepo(t, "wildside", "api-gateway", uuid.NewString())

	asOf := time.Date(2026, 7, 15, 9, 30, 0, 0, time.UTC)
	window, err := f.orch.ComputeNextWindow(context.Background(), repo.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, window.End.Equal(asOf))
	assert.True(t, window.Start.Equal(asOf.AddDate(0, 0, -7)))
}

func TestComputeNextWindowHonoursConfiguredDays(t *testing.T) {
	f := newReportingFixture(t, Config{WindowDays: 14})
	repo := f.seedRepo(t, "wildside", "api-gateway", uuid.NewString())

	asOf := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	window, err := f.orch.ComputeNextWindow(context.Background(), repo.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, window.Start.Equal(asOf.AddDate(0, 0, -14)))
}

func TestComputeNextWindowStartsAtPreviousEnd(t *testing.T) {
	f := newReportingFixture(t, Config{})
	repo := f.seedRepo(t, "wildside", "booking-engine", uuid.NewString())

	prevStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	prevEnd := time.Date(2026, 7, 8, 0, 0, 0, 0, time.UTC)
	f.seedReport(t, repo.ID, prevStart, prevEnd)

	asOf := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	window, err := f.orch.ComputeNextWindow(context.Background(), repo.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, window.Start.Equal(prevEnd), "windows must be contiguous")
	assert.True(t, window.End.Equal(asOf))
}

func TestComputeNextWindowPicksGreatestPreviousEnd(t *testing.T) {
	f := newReportingFixture(t, Config{})
	repo := f.seedRepo(t, "wildside", "booking-engine", uuid.NewString())

	base := time.Date(2026, 6, 17, 0, 0, 0, 0, time.UTC)
	f.seedReport(t, repo.ID, base, base.AddDate(0, 0, 7))
	f.seedReport(t, repo.ID, base.AddDate(0, 0, 7), base.AddDate(0, 0, 14))

	asOf := base.AddDate(0, 0, 21)
	window, err := f.orch.ComputeNextWindow(context.Background(), repo.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, window.Start.Equal(base.AddDate(0, 0, 14)))
}

func TestComputeNextWindowClampsBackdatedAsOf(t *testing.T) {
	f := newReportingFixture(t, Config{})
	repo := f.seedRepo(t, "wildside", "notifications", uuid.NewString())

	prevEnd := time.Date(2026, 7, 8, 0, 0, 0, 0, time.UTC)
	f.seedReport(t, repo.ID, prevEnd.AddDate(0, 0, -7), prevEnd)

	// asOf before the previous window end collapses to an empty window
	// rather than overlapping already-reported ground
	asOf := time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC)
	window, err := f.orch.ComputeNextWindow(context.Background(), repo.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, window.Start.Equal(asOf))
	assert.True(t, window.End.Equal(asOf))
}

func TestComputeNextWindowIgnoresOtherRepositories(t *testing.T) {
	f := newReportingFixture(t, Config{})
	repo := f.seedRepo(t, "wildside", "api-gateway", uuid.NewString())
	other := f.seedRepo(t, "wildside", "identity-service", uuid.NewString())

	prevEnd := time.Date(2026, 7, 8, 0, 0, 0, 0, time.UTC)
	f.seedReport(t, other.ID, prevEnd.AddDate(0, 0, -7), prevEnd)

	asOf := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	window, err := f.orch.ComputeNextWindow(context.Background(), repo.ID, &asOf)
	require.NoError(t, err)
	assert.True(t, window.Start.Equal(asOf.AddDate(0, 0, -7)))
}

func TestSequentialRunsProduceContiguousWindows(t *testing.T) {
	f := newReportingFixture(t, Config{})
	ctx := context.Background()
	repo := f.seedRepo(t, "wildside", "events-pipeline", uuid.NewString())
	f.model.turns = []modelTurn{{result: healthyResult("Steady throughput.")}}

	week1 := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	week2 := week1.AddDate(0, 0, 7)
	week3 := week2.AddDate(0, 0, 7)
	f.addCommit(t, repo.ID, "feat: batch compaction", week1.Add(12*time.Hour))
	f.addEventFact(t, repo.ID, week1.Add(12*time.Hour))
	f.addCommit(t, repo.ID, "fix: consumer lag alert", week2.Add(36*time.Hour))
	f.addEventFact(t, repo.ID, week2.Add(36*time.Hour))

	first, err := f.orch.RunForRepository(ctx, repo.ID, &week2)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.True(t, first.WindowStart.Equal(week1))
	assert.True(t, first.WindowEnd.Equal(week2))

	second, err := f.orch.RunForRepository(ctx, repo.ID, &week3)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.True(t, second.WindowStart.Equal(week2), "next window starts where the last ended")
	assert.True(t, second.WindowEnd.Equal(week3))

	// Window ends strictly increase across the repository's reports
	reports, err := f.reports.ListForRepository(ctx, repo.ID, 0)
	require.NoError(t, err)
	require.Len(t, reports, 2)
}

package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func commitAt(ts time.Time) Commit {
	return Commit{CommittedAt: ts}
}

func TestComputeActivityStats(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	commits := []Commit{
		commitAt(start.Add(9 * time.Hour)),
		commitAt(start.Add(11 * time.Hour)),
		commitAt(start.Add(15 * time.Hour)),
		commitAt(start.AddDate(0, 0, 2).Add(10 * time.Hour)),
		commitAt(start.AddDate(0, 0, 4).Add(10 * time.Hour)),
		commitAt(start.AddDate(0, 0, 4).Add(12 * time.Hour)),
	}

	stats := ComputeActivityStats(commits, start, end)

	assert.InDelta(t, 6.0/7.0, stats.CommitsPerDayMean, 1e-9)
	assert.Greater(t, stats.CommitsPerDayStdDev, 0.0)
	assert.Equal(t, 3, stats.ActiveDays)
	assert.Equal(t, "2026-07-01", stats.PeakDay)
	assert.Equal(t, 3, stats.PeakCommits)
}

func TestComputeActivityStatsQuietDaysCount(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 14)

	// One burst in a fortnight; the quiet days drag the mean down
	var commits []Commit
	for i := 0; i < 14; i++ {
		commits = append(commits, commitAt(start.AddDate(0, 0, 3).Add(time.Duration(i)*time.Minute)))
	}

	stats := ComputeActivityStats(commits, start, end)

	assert.InDelta(t, 1.0, stats.CommitsPerDayMean, 1e-9)
	assert.Equal(t, 1, stats.ActiveDays)
	assert.Equal(t, "2026-07-04", stats.PeakDay)
	assert.Equal(t, 14, stats.PeakCommits)
}

func TestComputeActivityStatsEmptyWindow(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	stats := ComputeActivityStats(nil, start, start.AddDate(0, 0, 7))

	assert.Zero(t, stats.CommitsPerDayMean)
	assert.Zero(t, stats.CommitsPerDayStdDev)
	assert.Zero(t, stats.ActiveDays)
	assert.Empty(t, stats.PeakDay)
}

func TestComputeActivityStatsSubDayWindow(t *testing.T) {
	start := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(6 * time.Hour)

	commits := []Commit{commitAt(start.Add(time.Hour)), commitAt(start.Add(2 * time.Hour))}
	stats := ComputeActivityStats(commits, start, end)

	assert.InDelta(t, 2.0, stats.CommitsPerDayMean, 1e-9)
	assert.Zero(t, stats.CommitsPerDayStdDev) // A single day has no spread
	assert.Equal(t, 1, stats.ActiveDays)
	assert.Equal(t, "2026-07-01", stats.PeakDay)
}

func TestComputeActivityStatsPeakTieBreaksEarlier(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	commits := []Commit{
		commitAt(start.AddDate(0, 0, 5).Add(10 * time.Hour)),
		commitAt(start.AddDate(0, 0, 1).Add(10 * time.Hour)),
	}

	stats := ComputeActivityStats(commits, start, end)
	assert.Equal(t, "2026-07-02", stats.PeakDay)
	assert.Equal(t, 1, stats.PeakCommits)
}

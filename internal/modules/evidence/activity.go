package evidence

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// ComputeActivityStats derives the commit cadence over a window. Every day
// of the window participates in the mean and standard deviation, including
// days with no commits, so a burst against a quiet week stands out.
func ComputeActivityStats(commits []Commit, windowStart, windowEnd time.Time) ActivityStats {
	days := int(windowEnd.Sub(windowStart).Hours() / 24)
	if days < 1 {
		days = 1
	}

	perDay := make(map[string]int)
	for _, c := range commits {
		day := c.CommittedAt.UTC().Format("2006-01-02")
		perDay[day]++
	}

	counts := make([]float64, days)
	for i := 0; i < days; i++ {
		day := windowStart.UTC().AddDate(0, 0, i).Format("2006-01-02")
		counts[i] = float64(perDay[day])
	}

	stats := ActivityStats{
		CommitsPerDayMean: stat.Mean(counts, nil),
		ActiveDays:        len(perDay),
	}
	if days > 1 {
		stats.CommitsPerDayStdDev = stat.StdDev(counts, nil)
	}

	for day, count := range perDay {
		if count > stats.PeakCommits || (count == stats.PeakCommits && day < stats.PeakDay) {
			stats.PeakCommits = count
			stats.PeakDay = day
		}
	}
	return stats
}

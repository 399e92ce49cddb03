package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/domain"
)

// ReportHistoryRepository reads past reports from the gold database to give
// evidence bundles their continuity context. It never writes.
type ReportHistoryRepository struct {
	goldDB *sql.DB
	log    zerolog.Logger
}

// NewReportHistoryRepository creates a new gold history reader
func NewReportHistoryRepository(goldDB *sql.DB, log zerolog.Logger) *ReportHistoryRepository {
	return &ReportHistoryRepository{
		goldDB: goldDB,
		log:    log.With().Str("repo", "report_history").Logger(),
	}
}

// LatestReportRow is the most recent repository-scope report of one
// repository
type LatestReportRow struct {
	ReportID     string
	RepositoryID string
	WindowStart  time.Time
	WindowEnd    time.Time
	GeneratedAt  time.Time
	Status       domain.ReportStatus
	Summary      string
}

// PreviousRepositoryReports returns up to limit repository-scope reports
// whose window ended at or before the given bound, newest window first,
// each carrying its coverage count.
func (r *ReportHistoryRepository) PreviousRepositoryReports(ctx context.Context, repositoryID string, before time.Time, limit int) ([]PreviousReportSummary, error) {
	query := `SELECT r.id, r.window_start, r.window_end, r.generated_at, r.machine_summary,
		(SELECT COUNT(*) FROM report_coverage c WHERE c.report_id = r.id) AS coverage_count
		FROM reports r
		WHERE r.scope = 'repository' AND r.repository_id = ? AND r.window_end <= ?
		ORDER BY r.window_end DESC, r.id
		LIMIT ?`

	rows, err := r.goldDB.QueryContext(ctx, query,
		repositoryID, database.UnixNanos(before), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query previous repository reports: %w", err)
	}
	defer rows.Close()

	var summaries []PreviousReportSummary
	for rows.Next() {
		var s PreviousReportSummary
		var windowStart, windowEnd, generatedAt int64
		var machineSummary string
		if err := rows.Scan(&s.ReportID, &windowStart, &windowEnd, &generatedAt,
			&machineSummary, &s.CoverageCount); err != nil {
			return nil, fmt.Errorf("failed to scan previous report: %w", err)
		}
		s.WindowStart = database.FromUnixNanos(windowStart)
		s.WindowEnd = database.FromUnixNanos(windowEnd)
		s.GeneratedAt = database.FromUnixNanos(generatedAt)
		s.Status, s.Summary = parseMachineSummary(machineSummary)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// LatestRepositoryReports returns the single most recent repository-scope
// report per repository, selected with a windowed row number so historical
// reports are never materialised.
func (r *ReportHistoryRepository) LatestRepositoryReports(ctx context.Context, repositoryIDs []string) (map[string]LatestReportRow, error) {
	if len(repositoryIDs) == 0 {
		return map[string]LatestReportRow{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(repositoryIDs)), ",")
	query := `SELECT id, repository_id, window_start, window_end, generated_at, machine_summary FROM (
		SELECT r.id, r.repository_id, r.window_start, r.window_end, r.generated_at, r.machine_summary,
			ROW_NUMBER() OVER (PARTITION BY r.repository_id ORDER BY r.generated_at DESC, r.id) AS rn
		FROM reports r
		WHERE r.scope = 'repository' AND r.repository_id IN (` + placeholders + `)
	) WHERE rn = 1`

	args := make([]interface{}, len(repositoryIDs))
	for i, id := range repositoryIDs {
		args[i] = id
	}

	rows, err := r.goldDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest repository reports: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]LatestReportRow)
	for rows.Next() {
		var row LatestReportRow
		var windowStart, windowEnd, generatedAt int64
		var machineSummary string
		if err := rows.Scan(&row.ReportID, &row.RepositoryID, &windowStart, &windowEnd,
			&generatedAt, &machineSummary); err != nil {
			return nil, fmt.Errorf("failed to scan latest report: %w", err)
		}
		row.WindowStart = database.FromUnixNanos(windowStart)
		row.WindowEnd = database.FromUnixNanos(windowEnd)
		row.GeneratedAt = database.FromUnixNanos(generatedAt)
		row.Status, row.Summary = parseMachineSummary(machineSummary)
		latest[row.RepositoryID] = row
	}
	return latest, rows.Err()
}

// PreviousProjectReports returns up to limit project-scope reports for the
// (projectKey, estateID) pair, newest window first
func (r *ReportHistoryRepository) PreviousProjectReports(ctx context.Context, projectKey, estateID string, limit int) ([]PreviousReportSummary, error) {
	query := `SELECT r.id, r.window_start, r.window_end, r.generated_at, r.machine_summary,
		(SELECT COUNT(*) FROM report_coverage c WHERE c.report_id = r.id) AS coverage_count
		FROM reports r
		JOIN report_projects rp ON rp.report_id = r.id
		WHERE r.scope = 'project' AND rp.project_key = ? AND rp.estate_id = ?
		ORDER BY r.window_end DESC, r.id
		LIMIT ?`

	rows, err := r.goldDB.QueryContext(ctx, query, projectKey, estateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query previous project reports: %w", err)
	}
	defer rows.Close()

	var summaries []PreviousReportSummary
	for rows.Next() {
		var s PreviousReportSummary
		var windowStart, windowEnd, generatedAt int64
		var machineSummary string
		if err := rows.Scan(&s.ReportID, &windowStart, &windowEnd, &generatedAt,
			&machineSummary, &s.CoverageCount); err != nil {
			return nil, fmt.Errorf("failed to scan previous project report: %w", err)
		}
		s.WindowStart = database.FromUnixNanos(windowStart)
		s.WindowEnd = database.FromUnixNanos(windowEnd)
		s.GeneratedAt = database.FromUnixNanos(generatedAt)
		s.Status, s.Summary = parseMachineSummary(machineSummary)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// parseMachineSummary extracts status and summary from a stored
// machine_summary document. Missing, malformed or non-string values map to
// the unknown status and an empty summary.
func parseMachineSummary(raw string) (domain.ReportStatus, string) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.StatusUnknown, ""
	}
	status := domain.StatusUnknown
	if s, ok := payload["status"].(string); ok {
		status = domain.ParseReportStatus(s)
	}
	summary, _ := payload["summary"].(string)
	return status, summary
}

package reporting

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// ReportRepository handles report rows in the gold database
type ReportRepository struct {
	goldDB *sql.DB
	log    zerolog.Logger
}

const reportColumns = `id, scope, repository_id, project_id, estate_id,
window_start, window_end, generated_at, model, human_text, machine_summary,
latency_ms, prompt_tokens, completion_tokens, total_tokens`

// NewReportRepository creates a new gold report store
func NewReportRepository(goldDB *sql.DB, log zerolog.Logger) *ReportRepository {
	return &ReportRepository{
		goldDB: goldDB,
		log:    log.With().Str("repo", "reports").Logger(),
	}
}

// GetByID returns a report by ID, or nil when absent
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*Report, error) {
	query := "SELECT " + reportColumns + " FROM reports WHERE id = ?"

	rows, err := r.goldDB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query report by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // Report not found
	}

	report, err := scanReport(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}
	return &report, nil
}

// LatestForRepository returns the repository-scope report with the greatest
// window end, or nil when the repository has no reports yet
func (r *ReportRepository) LatestForRepository(ctx context.Context, repositoryID string) (*Report, error) {
	query := "SELECT " + reportColumns + ` FROM reports
		WHERE scope = 'repository' AND repository_id = ?
		ORDER BY window_end DESC, id LIMIT 1`

	rows, err := r.goldDB.QueryContext(ctx, query, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest report: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	report, err := scanReport(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}
	return &report, nil
}

// ListForRepository returns a repository's reports, newest generated first
func (r *ReportRepository) ListForRepository(ctx context.Context, repositoryID string, limit int) ([]Report, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := "SELECT " + reportColumns + ` FROM reports
		WHERE scope = 'repository' AND repository_id = ?
		ORDER BY generated_at DESC, id LIMIT ?`

	rows, err := r.goldDB.QueryContext(ctx, query, repositoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// CreateTx inserts a report row
func (r *ReportRepository) CreateTx(ctx context.Context, q database.Queryer, report *Report) error {
	summary, err := json.Marshal(report.MachineSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal machine summary: %w", err)
	}

	query := `INSERT INTO reports (id, scope, repository_id, project_id, estate_id,
		window_start, window_end, generated_at, model, human_text, machine_summary,
		latency_ms, prompt_tokens, completion_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = q.ExecContext(ctx, query,
		report.ID, report.Scope,
		nullableString(report.RepositoryID), nullableString(report.ProjectID),
		nullableString(report.EstateID),
		database.UnixNanos(report.WindowStart), database.UnixNanos(report.WindowEnd),
		database.UnixNanos(report.GeneratedAt),
		report.Model, report.HumanText, string(summary),
		nullableInt64(report.LatencyMS), nullableInt(report.PromptTokens),
		nullableInt(report.CompletionTokens), nullableInt(report.TotalTokens))
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// LinkProjectTx records the (project_key, estate_id) pair a project-scope
// report belongs to
func (r *ReportRepository) LinkProjectTx(ctx context.Context, q database.Queryer, reportID, projectKey, estateID string) error {
	query := `INSERT INTO report_projects (report_id, project_key, estate_id) VALUES (?, ?, ?)`

	if _, err := q.ExecContext(ctx, query, reportID, projectKey, estateID); err != nil {
		return fmt.Errorf("failed to link report to project: %w", err)
	}
	return nil
}

func scanReport(rows *sql.Rows) (Report, error) {
	var report Report
	var repositoryID, projectID, estateID, humanText sql.NullString
	var windowStart, windowEnd, generatedAt int64
	var machineSummary string
	var latency sql.NullInt64
	var promptTokens, completionTokens, totalTokens sql.NullInt64

	if err := rows.Scan(&report.ID, &report.Scope, &repositoryID, &projectID, &estateID,
		&windowStart, &windowEnd, &generatedAt, &report.Model, &humanText, &machineSummary,
		&latency, &promptTokens, &completionTokens, &totalTokens); err != nil {
		return Report{}, err
	}

	if repositoryID.Valid {
		report.RepositoryID = &repositoryID.String
	}
	if projectID.Valid {
		report.ProjectID = &projectID.String
	}
	if estateID.Valid {
		report.EstateID = &estateID.String
	}
	report.HumanText = humanText.String
	report.WindowStart = database.FromUnixNanos(windowStart)
	report.WindowEnd = database.FromUnixNanos(windowEnd)
	report.GeneratedAt = database.FromUnixNanos(generatedAt)

	if err := json.Unmarshal([]byte(machineSummary), &report.MachineSummary); err != nil {
		return Report{}, fmt.Errorf("failed to unmarshal machine summary: %w", err)
	}

	if latency.Valid {
		report.LatencyMS = &latency.Int64
	}
	report.PromptTokens = nullInt(promptTokens)
	report.CompletionTokens = nullInt(completionTokens)
	report.TotalTokens = nullInt(totalTokens)
	return report, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

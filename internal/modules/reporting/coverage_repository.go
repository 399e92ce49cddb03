package reporting

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// CoverageRepository links reports to the event facts they cover
type CoverageRepository struct {
	goldDB *sql.DB
	log    zerolog.Logger
}

// NewCoverageRepository creates a new report coverage store
func NewCoverageRepository(goldDB *sql.DB, log zerolog.Logger) *CoverageRepository {
	return &CoverageRepository{
		goldDB: goldDB,
		log:    log.With().Str("repo", "report_coverage").Logger(),
	}
}

// InsertManyTx records one coverage row per event fact for a report
func (r *CoverageRepository) InsertManyTx(ctx context.Context, q database.Queryer, reportID string, eventFactIDs []string) error {
	query := `INSERT INTO report_coverage (report_id, event_fact_id) VALUES (?, ?)`

	for _, factID := range eventFactIDs {
		if _, err := q.ExecContext(ctx, query, reportID, factID); err != nil {
			return fmt.Errorf("failed to insert coverage for fact %s: %w", factID, err)
		}
	}
	return nil
}

// CountForReport returns the number of event facts a report covers
func (r *CoverageRepository) CountForReport(ctx context.Context, reportID string) (int, error) {
	var count int
	err := r.goldDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM report_coverage WHERE report_id = ?`, reportID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count report coverage: %w", err)
	}
	return count, nil
}

// EventFactIDs returns the ordered event fact IDs a report covers
func (r *CoverageRepository) EventFactIDs(ctx context.Context, reportID string) ([]string, error) {
	rows, err := r.goldDB.QueryContext(ctx,
		`SELECT event_fact_id FROM report_coverage WHERE report_id = ? ORDER BY event_fact_id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report coverage: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan coverage row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

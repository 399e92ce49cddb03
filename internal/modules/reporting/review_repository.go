package reporting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// ReviewRepository handles review markers in the gold database. A partial
// unique index keeps at most one pending marker per (repository, window)
// triple.
type ReviewRepository struct {
	goldDB *sql.DB
	log    zerolog.Logger
}

const reviewColumns = `id, repository_id, window_start, window_end, state,
attempt_count, issues, created_at, updated_at`

// NewReviewRepository creates a new review marker store
func NewReviewRepository(goldDB *sql.DB, log zerolog.Logger) *ReviewRepository {
	return &ReviewRepository{
		goldDB: goldDB,
		log:    log.With().Str("repo", "report_reviews").Logger(),
	}
}

// UpsertPendingTx records a validation failure for a reporting window. An
// existing pending marker for the same triple is updated in place; the
// marker's ID is returned either way.
func (r *ReviewRepository) UpsertPendingTx(ctx context.Context, q database.Queryer, repositoryID string, start, end time.Time, attempts int, issues []string, now time.Time) (string, error) {
	issuesJSON, err := database.MarshalStringList(issues)
	if err != nil {
		return "", err
	}

	var id string
	err = q.QueryRowContext(ctx,
		`SELECT id FROM report_reviews
		WHERE repository_id = ? AND window_start = ? AND window_end = ? AND state = ?`,
		repositoryID, database.UnixNanos(start), database.UnixNanos(end), ReviewStatePending).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = q.ExecContext(ctx,
			`INSERT INTO report_reviews (id, repository_id, window_start, window_end,
			state, attempt_count, issues, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, repositoryID, database.UnixNanos(start), database.UnixNanos(end),
			ReviewStatePending, attempts, issuesJSON,
			database.UnixNanos(now), database.UnixNanos(now))
		if err != nil {
			return "", fmt.Errorf("failed to insert review marker: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to query pending review marker: %w", err)
	default:
		_, err = q.ExecContext(ctx,
			`UPDATE report_reviews SET attempt_count = ?, issues = ?, updated_at = ? WHERE id = ?`,
			attempts, issuesJSON, database.UnixNanos(now), id)
		if err != nil {
			return "", fmt.Errorf("failed to update review marker: %w", err)
		}
	}
	return id, nil
}

// GetByID returns a review marker by ID, or nil when absent
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*ReviewMarker, error) {
	query := "SELECT " + reviewColumns + " FROM report_reviews WHERE id = ?"

	rows, err := r.goldDB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query review marker: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // Marker not found
	}

	marker, err := scanReviewMarker(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan review marker: %w", err)
	}
	return &marker, nil
}

// List returns review markers in the given state, most recently updated
// first. An empty state returns every marker.
func (r *ReviewRepository) List(ctx context.Context, state string, limit int) ([]ReviewMarker, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	query := "SELECT " + reviewColumns + " FROM report_reviews"
	var args []interface{}
	if state != "" {
		query += " WHERE state = ?"
		args = append(args, state)
	}
	query += " ORDER BY updated_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.goldDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review markers: %w", err)
	}
	defer rows.Close()

	var markers []ReviewMarker
	for rows.Next() {
		marker, err := scanReviewMarker(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review marker: %w", err)
		}
		markers = append(markers, marker)
	}
	return markers, rows.Err()
}

// Resolve moves a pending marker out of the way once its window has been
// dealt with. Returns false when the marker is unknown or already resolved.
func (r *ReviewRepository) Resolve(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := r.goldDB.ExecContext(ctx,
		`UPDATE report_reviews SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		ReviewStateResolved, database.UnixNanos(now), id, ReviewStatePending)
	if err != nil {
		return false, fmt.Errorf("failed to resolve review marker: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return changed > 0, nil
}

func scanReviewMarker(rows *sql.Rows) (ReviewMarker, error) {
	var marker ReviewMarker
	var windowStart, windowEnd, createdAt, updatedAt int64
	var issues string

	if err := rows.Scan(&marker.ID, &marker.RepositoryID, &windowStart, &windowEnd,
		&marker.State, &marker.AttemptCount, &issues, &createdAt, &updatedAt); err != nil {
		return ReviewMarker{}, err
	}

	parsed, err := database.UnmarshalStringList(issues)
	if err != nil {
		return ReviewMarker{}, err
	}
	marker.Issues = parsed
	marker.WindowStart = database.FromUnixNanos(windowStart)
	marker.WindowEnd = database.FromUnixNanos(windowEnd)
	marker.CreatedAt = database.FromUnixNanos(createdAt)
	marker.UpdatedAt = database.FromUnixNanos(updatedAt)
	return marker, nil
}

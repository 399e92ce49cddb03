package evidence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// EvidenceRepository reads and writes the silver activity tables. All
// window queries are half-open: [start, end).
type EvidenceRepository struct {
	silverDB *sql.DB
	log      zerolog.Logger
}

// NewEvidenceRepository creates a new silver activity store
func NewEvidenceRepository(silverDB *sql.DB, log zerolog.Logger) *EvidenceRepository {
	return &EvidenceRepository{
		silverDB: silverDB,
		log:      log.With().Str("repo", "evidence").Logger(),
	}
}

// CommitsInWindow returns commits with committed_at in [start, end),
// oldest first
func (r *EvidenceRepository) CommitsInWindow(ctx context.Context, repositoryID string, start, end time.Time) ([]Commit, error) {
	query := `SELECT id, repository_id, sha, message, author, committed_at FROM commits
		WHERE repository_id = ? AND committed_at >= ? AND committed_at < ?
		ORDER BY committed_at, id`

	rows, err := r.silverDB.QueryContext(ctx, query,
		repositoryID, database.UnixNanos(start), database.UnixNanos(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query commits in window: %w", err)
	}
	defer rows.Close()

	var commits []Commit
	for rows.Next() {
		var c Commit
		var committedAt int64
		if err := rows.Scan(&c.ID, &c.RepositoryID, &c.SHA, &c.Message, &c.Author, &committedAt); err != nil {
			return nil, fmt.Errorf("failed to scan commit: %w", err)
		}
		c.CommittedAt = database.FromUnixNanos(committedAt)
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

// PullRequestsTouchingWindow returns pull requests where any of created_at,
// merged_at or closed_at falls in [start, end), ordered by number
func (r *EvidenceRepository) PullRequestsTouchingWindow(ctx context.Context, repositoryID string, start, end time.Time) ([]PullRequest, error) {
	query := `SELECT id, repository_id, number, title, author, state, labels,
		created_at, merged_at, closed_at FROM pull_requests
		WHERE repository_id = ? AND (
			(created_at >= ? AND created_at < ?) OR
			(merged_at IS NOT NULL AND merged_at >= ? AND merged_at < ?) OR
			(closed_at IS NOT NULL AND closed_at >= ? AND closed_at < ?)
		)
		ORDER BY number`

	s, e := database.UnixNanos(start), database.UnixNanos(end)
	rows, err := r.silverDB.QueryContext(ctx, query, repositoryID, s, e, s, e, s, e)
	if err != nil {
		return nil, fmt.Errorf("failed to query pull requests in window: %w", err)
	}
	defer rows.Close()

	var prs []PullRequest
	for rows.Next() {
		var pr PullRequest
		var labels string
		var createdAt int64
		var mergedAt, closedAt sql.NullInt64
		if err := rows.Scan(&pr.ID, &pr.RepositoryID, &pr.Number, &pr.Title, &pr.Author,
			&pr.State, &labels, &createdAt, &mergedAt, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pull request: %w", err)
		}
		parsed, err := database.UnmarshalStringList(labels)
		if err != nil {
			return nil, err
		}
		pr.Labels = parsed
		pr.CreatedAt = database.FromUnixNanos(createdAt)
		pr.MergedAt = database.FromNullUnixNanos(mergedAt)
		pr.ClosedAt = database.FromNullUnixNanos(closedAt)
		prs = append(prs, pr)
	}
	return prs, rows.Err()
}

// IssuesTouchingWindow returns issues where created_at or closed_at falls
// in [start, end), ordered by number
func (r *EvidenceRepository) IssuesTouchingWindow(ctx context.Context, repositoryID string, start, end time.Time) ([]Issue, error) {
	query := `SELECT id, repository_id, number, title, author, state, labels,
		created_at, closed_at FROM issues
		WHERE repository_id = ? AND (
			(created_at >= ? AND created_at < ?) OR
			(closed_at IS NOT NULL AND closed_at >= ? AND closed_at < ?)
		)
		ORDER BY number`

	s, e := database.UnixNanos(start), database.UnixNanos(end)
	rows, err := r.silverDB.QueryContext(ctx, query, repositoryID, s, e, s, e)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues in window: %w", err)
	}
	defer rows.Close()

	var issues []Issue
	for rows.Next() {
		var issue Issue
		var labels string
		var createdAt int64
		var closedAt sql.NullInt64
		if err := rows.Scan(&issue.ID, &issue.RepositoryID, &issue.Number, &issue.Title,
			&issue.Author, &issue.State, &labels, &createdAt, &closedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		parsed, err := database.UnmarshalStringList(labels)
		if err != nil {
			return nil, err
		}
		issue.Labels = parsed
		issue.CreatedAt = database.FromUnixNanos(createdAt)
		issue.ClosedAt = database.FromNullUnixNanos(closedAt)
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// DocChangesInWindow returns documentation changes with occurred_at in
// [start, end), oldest first
func (r *EvidenceRepository) DocChangesInWindow(ctx context.Context, repositoryID string, start, end time.Time) ([]DocumentationChange, error) {
	query := `SELECT id, repository_id, path, change_type, summary, author, occurred_at
		FROM documentation_changes
		WHERE repository_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at, id`

	rows, err := r.silverDB.QueryContext(ctx, query,
		repositoryID, database.UnixNanos(start), database.UnixNanos(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query documentation changes in window: %w", err)
	}
	defer rows.Close()

	var changes []DocumentationChange
	for rows.Next() {
		var dc DocumentationChange
		var occurredAt int64
		if err := rows.Scan(&dc.ID, &dc.RepositoryID, &dc.Path, &dc.ChangeType,
			&dc.Summary, &dc.Author, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan documentation change: %w", err)
		}
		dc.OccurredAt = database.FromUnixNanos(occurredAt)
		changes = append(changes, dc)
	}
	return changes, rows.Err()
}

// EventFactIDsInWindow returns the IDs of event facts with occurred_at in
// [start, end), oldest first. These become coverage records.
func (r *EvidenceRepository) EventFactIDsInWindow(ctx context.Context, repositoryID string, start, end time.Time) ([]string, error) {
	query := `SELECT id FROM event_facts
		WHERE repository_id = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at, id`

	rows, err := r.silverDB.QueryContext(ctx, query,
		repositoryID, database.UnixNanos(start), database.UnixNanos(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query event facts in window: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan event fact id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertCommit stores a commit row. Ingestion-side entry point.
func (r *EvidenceRepository) InsertCommit(ctx context.Context, c *Commit) error {
	query := `INSERT INTO commits (id, repository_id, sha, message, author, committed_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.silverDB.ExecContext(ctx, query,
		c.ID, c.RepositoryID, c.SHA, c.Message, c.Author, database.UnixNanos(c.CommittedAt))
	if err != nil {
		return fmt.Errorf("failed to insert commit %s: %w", c.SHA, err)
	}
	return nil
}

// InsertPullRequest stores a pull request row
func (r *EvidenceRepository) InsertPullRequest(ctx context.Context, pr *PullRequest) error {
	labels, err := database.MarshalStringList(pr.Labels)
	if err != nil {
		return err
	}

	query := `INSERT INTO pull_requests (id, repository_id, number, title, author, state,
		labels, created_at, merged_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.silverDB.ExecContext(ctx, query,
		pr.ID, pr.RepositoryID, pr.Number, pr.Title, pr.Author, pr.State, labels,
		database.UnixNanos(pr.CreatedAt), database.NullUnixNanos(pr.MergedAt), database.NullUnixNanos(pr.ClosedAt))
	if err != nil {
		return fmt.Errorf("failed to insert pull request #%d: %w", pr.Number, err)
	}
	return nil
}

// InsertIssue stores an issue row
func (r *EvidenceRepository) InsertIssue(ctx context.Context, issue *Issue) error {
	labels, err := database.MarshalStringList(issue.Labels)
	if err != nil {
		return err
	}

	query := `INSERT INTO issues (id, repository_id, number, title, author, state,
		labels, created_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.silverDB.ExecContext(ctx, query,
		issue.ID, issue.RepositoryID, issue.Number, issue.Title, issue.Author, issue.State,
		labels, database.UnixNanos(issue.CreatedAt), database.NullUnixNanos(issue.ClosedAt))
	if err != nil {
		return fmt.Errorf("failed to insert issue #%d: %w", issue.Number, err)
	}
	return nil
}

// InsertDocChange stores a documentation change row
func (r *EvidenceRepository) InsertDocChange(ctx context.Context, dc *DocumentationChange) error {
	query := `INSERT INTO documentation_changes (id, repository_id, path, change_type, summary, author, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.silverDB.ExecContext(ctx, query,
		dc.ID, dc.RepositoryID, dc.Path, dc.ChangeType, dc.Summary, dc.Author,
		database.UnixNanos(dc.OccurredAt))
	if err != nil {
		return fmt.Errorf("failed to insert documentation change: %w", err)
	}
	return nil
}

// InsertEventFact stores an event fact row
func (r *EvidenceRepository) InsertEventFact(ctx context.Context, fact *EventFact) error {
	query := `INSERT INTO event_facts (id, repository_id, event_type, source, occurred_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)`

	payload := fact.Payload
	if payload == "" {
		payload = "{}"
	}
	_, err := r.silverDB.ExecContext(ctx, query,
		fact.ID, fact.RepositoryID, fact.EventType, fact.Source,
		database.UnixNanos(fact.OccurredAt), payload)
	if err != nil {
		return fmt.Errorf("failed to insert event fact: %w", err)
	}
	return nil
}

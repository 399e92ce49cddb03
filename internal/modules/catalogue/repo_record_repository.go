package catalogue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// RepoRecordRepository handles repository reference rows in the catalogue database
type RepoRecordRepository struct {
	catalogueDB *sql.DB
	log         zerolog.Logger
}

const repoRecordColumns = `id, owner, name, slug, default_branch, documentation_paths, created_at, updated_at`

// NewRepoRecordRepository creates a new repository record repository
func NewRepoRecordRepository(catalogueDB *sql.DB, log zerolog.Logger) *RepoRecordRepository {
	return &RepoRecordRepository{
		catalogueDB: catalogueDB,
		log:         log.With().Str("repo", "repository_record").Logger(),
	}
}

// GetBySlug returns a repository record by slug, or nil when absent
func (r *RepoRecordRepository) GetBySlug(ctx context.Context, slug string) (*RepositoryRecord, error) {
	query := "SELECT " + repoRecordColumns + " FROM repository_records WHERE slug = ?"

	rows, err := r.catalogueDB.QueryContext(ctx, query, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, fmt.Errorf("failed to query repository record by slug: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // Record not found
	}

	rec, err := scanRepoRecord(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan repository record: %w", err)
	}
	return &rec, nil
}

// ListAll returns every repository record ordered by slug
func (r *RepoRecordRepository) ListAll(ctx context.Context) ([]RepositoryRecord, error) {
	return r.ListAllTx(ctx, r.catalogueDB)
}

// ListAllTx is ListAll running on an explicit transaction or connection
func (r *RepoRecordRepository) ListAllTx(ctx context.Context, q database.Queryer) ([]RepositoryRecord, error) {
	query := "SELECT " + repoRecordColumns + " FROM repository_records ORDER BY slug"

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository records: %w", err)
	}
	defer rows.Close()

	return collectRepoRecords(rows)
}

// ListByIDs returns the repository records for a set of IDs
func (r *RepoRecordRepository) ListByIDs(ctx context.Context, ids []string) ([]RepositoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := "SELECT " + repoRecordColumns + " FROM repository_records WHERE id IN (" + placeholders + ") ORDER BY slug"

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.catalogueDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository records by ids: %w", err)
	}
	defer rows.Close()

	return collectRepoRecords(rows)
}

// CreateTx inserts a repository record row
func (r *RepoRecordRepository) CreateTx(ctx context.Context, q database.Queryer, rec *RepositoryRecord) error {
	docs, err := database.MarshalStringList(rec.DocumentationPaths)
	if err != nil {
		return err
	}

	query := `INSERT INTO repository_records (id, owner, name, slug, default_branch,
		documentation_paths, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = q.ExecContext(ctx, query,
		rec.ID, rec.Owner, rec.Name, rec.Slug, rec.DefaultBranch, docs,
		database.UnixNanos(rec.CreatedAt), database.UnixNanos(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert repository record %s: %w", rec.Slug, err)
	}
	return nil
}

// UpdateTx rewrites the mutable fields of a repository record row
func (r *RepoRecordRepository) UpdateTx(ctx context.Context, q database.Queryer, rec *RepositoryRecord) error {
	docs, err := database.MarshalStringList(rec.DocumentationPaths)
	if err != nil {
		return err
	}

	query := `UPDATE repository_records SET default_branch = ?, documentation_paths = ?, updated_at = ? WHERE id = ?`

	_, err = q.ExecContext(ctx, query,
		rec.DefaultBranch, docs, database.UnixNanos(rec.UpdatedAt), rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update repository record %s: %w", rec.Slug, err)
	}
	return nil
}

// DeleteTx removes a repository record row
func (r *RepoRecordRepository) DeleteTx(ctx context.Context, q database.Queryer, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM repository_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete repository record: %w", err)
	}
	return nil
}

func collectRepoRecords(rows *sql.Rows) ([]RepositoryRecord, error) {
	var records []RepositoryRecord
	for rows.Next() {
		rec, err := scanRepoRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRepoRecord(rows *sql.Rows) (RepositoryRecord, error) {
	var rec RepositoryRecord
	var docs string
	var createdAt, updatedAt int64

	if err := rows.Scan(&rec.ID, &rec.Owner, &rec.Name, &rec.Slug, &rec.DefaultBranch,
		&docs, &createdAt, &updatedAt); err != nil {
		return RepositoryRecord{}, err
	}

	paths, err := database.UnmarshalStringList(docs)
	if err != nil {
		return RepositoryRecord{}, err
	}
	rec.DocumentationPaths = paths
	rec.CreatedAt = database.FromUnixNanos(createdAt)
	rec.UpdatedAt = database.FromUnixNanos(updatedAt)
	return rec, nil
}

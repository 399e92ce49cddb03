package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// RepoRepository handles repository rows in the silver database
type RepoRepository struct {
	silverDB *sql.DB
	log      zerolog.Logger
}

const repoColumns = `id, owner, name, slug, default_branch, estate_id,
catalogue_repository_id, ingestion_enabled, documentation_paths,
last_synced_at, created_at, updated_at`

// NewRepoRepository creates a new silver repository store
func NewRepoRepository(silverDB *sql.DB, log zerolog.Logger) *RepoRepository {
	return &RepoRepository{
		silverDB: silverDB,
		log:      log.With().Str("repo", "registry").Logger(),
	}
}

// GetByID returns a repository row by ID, or nil when absent
func (r *RepoRepository) GetByID(ctx context.Context, id string) (*RepoInfo, error) {
	query := "SELECT " + repoColumns + " FROM repositories WHERE id = ?"

	rows, err := r.silverDB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // Repository not found
	}

	repo, err := scanRepo(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan repository: %w", err)
	}
	return &repo, nil
}

// GetBySlug returns the oldest repository row for a slug, or nil when the
// slug is unknown. Shared repositories have one row per estate; the oldest
// row is the stable pick.
func (r *RepoRepository) GetBySlug(ctx context.Context, slug string) (*RepoInfo, error) {
	query := "SELECT " + repoColumns + " FROM repositories WHERE slug = ? ORDER BY created_at, id LIMIT 1"

	rows, err := r.silverDB.QueryContext(ctx, query, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository by slug: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	repo, err := scanRepo(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan repository: %w", err)
	}
	return &repo, nil
}

// ExistsBySlug reports whether any row carries the slug
func (r *RepoRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var count int
	err := r.silverDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM repositories WHERE slug = ?`, slug).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count repositories by slug: %w", err)
	}
	return count > 0, nil
}

// List returns repository rows matching the options, ordered by owner then
// name. onlyEnabled restricts to rows with ingestion switched on.
func (r *RepoRepository) List(ctx context.Context, opts ListOptions, onlyEnabled bool) ([]RepoInfo, error) {
	query := "SELECT " + repoColumns + " FROM repositories"

	var conds []string
	var args []interface{}
	if onlyEnabled {
		conds = append(conds, "ingestion_enabled = 1")
	}
	if opts.EstateID != nil {
		conds = append(conds, "estate_id = ?")
		args = append(args, *opts.EstateID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY owner, name LIMIT ? OFFSET ?"

	limit := opts.Limit
	if limit == 0 {
		limit = -1 // SQLite: no limit
	}
	args = append(args, limit, opts.Offset)

	rows, err := r.silverDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	defer rows.Close()

	return collectRepos(rows)
}

// ListForEstateTx returns every row owned by an estate, on an explicit
// transaction or connection
func (r *RepoRepository) ListForEstateTx(ctx context.Context, q database.Queryer, estateID string) ([]RepoInfo, error) {
	query := "SELECT " + repoColumns + " FROM repositories WHERE estate_id = ? ORDER BY owner, name"

	rows, err := q.QueryContext(ctx, query, estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories for estate: %w", err)
	}
	defer rows.Close()

	return collectRepos(rows)
}

// ListByCatalogueIDs returns the estate's rows linked to the given
// catalogue repository records, keyed by catalogue repository ID
func (r *RepoRepository) ListByCatalogueIDs(ctx context.Context, catalogueIDs []string, estateID string) (map[string]RepoInfo, error) {
	if len(catalogueIDs) == 0 {
		return map[string]RepoInfo{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(catalogueIDs)), ",")
	query := "SELECT " + repoColumns + ` FROM repositories
		WHERE estate_id = ? AND catalogue_repository_id IN (` + placeholders + `)`

	args := make([]interface{}, 0, len(catalogueIDs)+1)
	args = append(args, estateID)
	for _, id := range catalogueIDs {
		args = append(args, id)
	}

	rows, err := r.silverDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories by catalogue ids: %w", err)
	}
	defer rows.Close()

	repos, err := collectRepos(rows)
	if err != nil {
		return nil, err
	}

	byCatalogueID := make(map[string]RepoInfo, len(repos))
	for _, repo := range repos {
		if repo.CatalogueRepositoryID != nil {
			byCatalogueID[*repo.CatalogueRepositoryID] = repo
		}
	}
	return byCatalogueID, nil
}

// SetIngestionBySlug flips the ingestion flag on every row carrying the
// slug. Returns the number of rows whose flag actually changed.
func (r *RepoRepository) SetIngestionBySlug(ctx context.Context, slug string, enabled bool, now time.Time) (int64, error) {
	query := `UPDATE repositories SET ingestion_enabled = ?, updated_at = ?
		WHERE slug = ? AND ingestion_enabled != ?`

	flag := 0
	if enabled {
		flag = 1
	}
	res, err := r.silverDB.ExecContext(ctx, query, flag, database.UnixNanos(now), slug, flag)
	if err != nil {
		return 0, fmt.Errorf("failed to update ingestion flag: %w", err)
	}
	changed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return changed, nil
}

// DeactivateTx switches ingestion off for a row the catalogue no longer
// references, leaving the catalogue link and history in place
func (r *RepoRepository) DeactivateTx(ctx context.Context, q database.Queryer, id string, now time.Time) error {
	query := `UPDATE repositories SET ingestion_enabled = 0, last_synced_at = ?, updated_at = ? WHERE id = ?`

	if _, err := q.ExecContext(ctx, query, database.UnixNanos(now), database.UnixNanos(now), id); err != nil {
		return fmt.Errorf("failed to deactivate repository: %w", err)
	}
	return nil
}

// CreateTx inserts a repository row
func (r *RepoRepository) CreateTx(ctx context.Context, q database.Queryer, repo *RepoInfo) error {
	docs, err := database.MarshalStringList(repo.DocumentationPaths)
	if err != nil {
		return err
	}

	query := `INSERT INTO repositories (id, owner, name, slug, default_branch, estate_id,
		catalogue_repository_id, ingestion_enabled, documentation_paths,
		last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	enabled := 0
	if repo.IngestionEnabled {
		enabled = 1
	}
	_, err = q.ExecContext(ctx, query,
		repo.ID, repo.Owner, repo.Name, repo.Slug, repo.DefaultBranch,
		nullableString(repo.EstateID), nullableString(repo.CatalogueRepositoryID),
		enabled, docs, database.NullUnixNanos(repo.LastSyncedAt),
		database.UnixNanos(repo.CreatedAt), database.UnixNanos(repo.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert repository %s: %w", repo.Slug, err)
	}
	return nil
}

// UpdateSyncTx rewrites the catalogue-owned fields of a repository row
func (r *RepoRepository) UpdateSyncTx(ctx context.Context, q database.Queryer, repo *RepoInfo) error {
	docs, err := database.MarshalStringList(repo.DocumentationPaths)
	if err != nil {
		return err
	}

	query := `UPDATE repositories SET default_branch = ?, catalogue_repository_id = ?,
		ingestion_enabled = ?, documentation_paths = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ?`

	enabled := 0
	if repo.IngestionEnabled {
		enabled = 1
	}
	_, err = q.ExecContext(ctx, query,
		repo.DefaultBranch, nullableString(repo.CatalogueRepositoryID),
		enabled, docs, database.NullUnixNanos(repo.LastSyncedAt),
		database.UnixNanos(repo.UpdatedAt), repo.ID)
	if err != nil {
		return fmt.Errorf("failed to update repository %s: %w", repo.Slug, err)
	}
	return nil
}

func collectRepos(rows *sql.Rows) ([]RepoInfo, error) {
	var repos []RepoInfo
	for rows.Next() {
		repo, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		repos = append(repos, repo)
	}
	return repos, rows.Err()
}

func scanRepo(rows *sql.Rows) (RepoInfo, error) {
	var repo RepoInfo
	var estateID, catalogueID sql.NullString
	var enabled int
	var docs string
	var lastSynced sql.NullInt64
	var createdAt, updatedAt int64

	if err := rows.Scan(&repo.ID, &repo.Owner, &repo.Name, &repo.Slug, &repo.DefaultBranch,
		&estateID, &catalogueID, &enabled, &docs, &lastSynced, &createdAt, &updatedAt); err != nil {
		return RepoInfo{}, err
	}

	if estateID.Valid {
		repo.EstateID = &estateID.String
	}
	if catalogueID.Valid {
		repo.CatalogueRepositoryID = &catalogueID.String
	}
	repo.IngestionEnabled = enabled != 0

	paths, err := database.UnmarshalStringList(docs)
	if err != nil {
		return RepoInfo{}, err
	}
	repo.DocumentationPaths = paths
	repo.LastSyncedAt = database.FromNullUnixNanos(lastSynced)
	repo.CreatedAt = database.FromUnixNanos(createdAt)
	repo.UpdatedAt = database.FromUnixNanos(updatedAt)
	return repo, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

package catalogue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// ProjectRepository handles project rows in the catalogue database
type ProjectRepository struct {
	catalogueDB *sql.DB
	log         zerolog.Logger
}

const projectColumns = `id, estate_id, key, name, description, programme,
noise, status_preferences, documentation_paths, created_at, updated_at`

// NewProjectRepository creates a new project repository
func NewProjectRepository(catalogueDB *sql.DB, log zerolog.Logger) *ProjectRepository {
	return &ProjectRepository{
		catalogueDB: catalogueDB,
		log:         log.With().Str("repo", "project").Logger(),
	}
}

// GetByKey returns a project by (estate, key), or nil when absent
func (r *ProjectRepository) GetByKey(ctx context.Context, estateID, key string) (*ProjectRecord, error) {
	query := "SELECT " + projectColumns + " FROM projects WHERE estate_id = ? AND key = ?"

	rows, err := r.catalogueDB.QueryContext(ctx, query, estateID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query project by key: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // Project not found
	}

	project, err := scanProject(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return &project, nil
}

// ListForEstate returns every project of an estate ordered by key
func (r *ProjectRepository) ListForEstate(ctx context.Context, estateID string) ([]ProjectRecord, error) {
	return r.ListForEstateTx(ctx, r.catalogueDB, estateID)
}

// ListForEstateTx is ListForEstate running on an explicit transaction or connection
func (r *ProjectRepository) ListForEstateTx(ctx context.Context, q database.Queryer, estateID string) ([]ProjectRecord, error) {
	query := "SELECT " + projectColumns + " FROM projects WHERE estate_id = ? ORDER BY key"

	rows, err := q.QueryContext(ctx, query, estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects for estate: %w", err)
	}
	defer rows.Close()

	var projects []ProjectRecord
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// CreateTx inserts a project row
func (r *ProjectRepository) CreateTx(ctx context.Context, q database.Queryer, project *ProjectRecord) error {
	docs, err := database.MarshalStringList(project.DocumentationPaths)
	if err != nil {
		return err
	}

	query := `INSERT INTO projects (id, estate_id, key, name, description, programme,
		noise, status_preferences, documentation_paths, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = q.ExecContext(ctx, query,
		project.ID, project.EstateID, project.Key, project.Name, project.Description, project.Programme,
		project.Noise, project.StatusPreferences, docs,
		database.UnixNanos(project.CreatedAt), database.UnixNanos(project.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert project %s: %w", project.Key, err)
	}
	return nil
}

// UpdateTx rewrites the mutable fields of a project row
func (r *ProjectRepository) UpdateTx(ctx context.Context, q database.Queryer, project *ProjectRecord) error {
	docs, err := database.MarshalStringList(project.DocumentationPaths)
	if err != nil {
		return err
	}

	query := `UPDATE projects SET name = ?, description = ?, programme = ?,
		noise = ?, status_preferences = ?, documentation_paths = ?, updated_at = ?
		WHERE id = ?`

	_, err = q.ExecContext(ctx, query,
		project.Name, project.Description, project.Programme,
		project.Noise, project.StatusPreferences, docs,
		database.UnixNanos(project.UpdatedAt), project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project %s: %w", project.Key, err)
	}
	return nil
}

// DeleteTx removes a project row. Components and edges are removed by the
// caller first so the deletion order stays explicit.
func (r *ProjectRepository) DeleteTx(ctx context.Context, q database.Queryer, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func scanProject(rows *sql.Rows) (ProjectRecord, error) {
	var project ProjectRecord
	var docs string
	var createdAt, updatedAt int64

	if err := rows.Scan(&project.ID, &project.EstateID, &project.Key, &project.Name,
		&project.Description, &project.Programme, &project.Noise, &project.StatusPreferences,
		&docs, &createdAt, &updatedAt); err != nil {
		return ProjectRecord{}, err
	}

	paths, err := database.UnmarshalStringList(docs)
	if err != nil {
		return ProjectRecord{}, err
	}
	project.DocumentationPaths = paths
	project.CreatedAt = database.FromUnixNanos(createdAt)
	project.UpdatedAt = database.FromUnixNanos(updatedAt)
	return project, nil
}

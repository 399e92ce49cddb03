package catalogue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// ComponentRepository handles component rows in the catalogue database
type ComponentRepository struct {
	catalogueDB *sql.DB
	log         zerolog.Logger
}

const componentColumns = `id, project_id, key, name, type, lifecycle, description,
repository_id, notes, position, created_at, updated_at`

// NewComponentRepository creates a new component repository
func NewComponentRepository(catalogueDB *sql.DB, log zerolog.Logger) *ComponentRepository {
	return &ComponentRepository{
		catalogueDB: catalogueDB,
		log:         log.With().Str("repo", "component").Logger(),
	}
}

// ListForProject returns the components of a project in document order
func (r *ComponentRepository) ListForProject(ctx context.Context, projectID string) ([]ComponentRecord, error) {
	return r.ListForProjectTx(ctx, r.catalogueDB, projectID)
}

// ListForProjectTx is ListForProject running on an explicit transaction or connection
func (r *ComponentRepository) ListForProjectTx(ctx context.Context, q database.Queryer, projectID string) ([]ComponentRecord, error) {
	query := "SELECT " + componentColumns + " FROM components WHERE project_id = ? ORDER BY position, key"

	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query components for project: %w", err)
	}
	defer rows.Close()

	return collectComponents(rows)
}

// ListForEstate returns every component of an estate joined through its projects
func (r *ComponentRepository) ListForEstate(ctx context.Context, estateID string) ([]ComponentRecord, error) {
	query := "SELECT " + prefixColumns(componentColumns, "c") + ` FROM components c
		JOIN projects p ON p.id = c.project_id
		WHERE p.estate_id = ?
		ORDER BY p.key, c.position, c.key`

	rows, err := r.catalogueDB.QueryContext(ctx, query, estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query components for estate: %w", err)
	}
	defer rows.Close()

	return collectComponents(rows)
}

// CountForRepositoryInOtherEstatesTx counts components outside the given
// estate that still reference a repository record. Used by the importer to
// decide whether an orphaned repository row is safe to prune.
func (r *ComponentRepository) CountForRepositoryInOtherEstatesTx(ctx context.Context, q database.Queryer, repositoryID, estateID string) (int, error) {
	query := `SELECT COUNT(*) FROM components c
		JOIN projects p ON p.id = c.project_id
		WHERE c.repository_id = ? AND p.estate_id != ?`

	var count int
	if err := q.QueryRowContext(ctx, query, repositoryID, estateID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count repository references: %w", err)
	}
	return count, nil
}

// CreateTx inserts a component row
func (r *ComponentRepository) CreateTx(ctx context.Context, q database.Queryer, comp *ComponentRecord) error {
	notes, err := database.MarshalStringList(comp.Notes)
	if err != nil {
		return err
	}

	query := `INSERT INTO components (id, project_id, key, name, type, lifecycle, description,
		repository_id, notes, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = q.ExecContext(ctx, query,
		comp.ID, comp.ProjectID, comp.Key, comp.Name, comp.Type, comp.Lifecycle, comp.Description,
		nullableString(comp.RepositoryID), notes, comp.Position,
		database.UnixNanos(comp.CreatedAt), database.UnixNanos(comp.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert component %s: %w", comp.Key, err)
	}
	return nil
}

// UpdateTx rewrites the mutable fields of a component row
func (r *ComponentRepository) UpdateTx(ctx context.Context, q database.Queryer, comp *ComponentRecord) error {
	notes, err := database.MarshalStringList(comp.Notes)
	if err != nil {
		return err
	}

	query := `UPDATE components SET name = ?, type = ?, lifecycle = ?, description = ?,
		repository_id = ?, notes = ?, position = ?, updated_at = ?
		WHERE id = ?`

	_, err = q.ExecContext(ctx, query,
		comp.Name, comp.Type, comp.Lifecycle, comp.Description,
		nullableString(comp.RepositoryID), notes, comp.Position,
		database.UnixNanos(comp.UpdatedAt), comp.ID)
	if err != nil {
		return fmt.Errorf("failed to update component %s: %w", comp.Key, err)
	}
	return nil
}

// UpdatePositionTx moves a component within its project without touching
// anything else. Pure reordering is not a content change.
func (r *ComponentRepository) UpdatePositionTx(ctx context.Context, q database.Queryer, id string, position int) error {
	if _, err := q.ExecContext(ctx, `UPDATE components SET position = ? WHERE id = ?`, position, id); err != nil {
		return fmt.Errorf("failed to update component position: %w", err)
	}
	return nil
}

// DeleteTx removes a component row
func (r *ComponentRepository) DeleteTx(ctx context.Context, q database.Queryer, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM components WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete component: %w", err)
	}
	return nil
}

// DeleteForProjectTx removes every component of a project
func (r *ComponentRepository) DeleteForProjectTx(ctx context.Context, q database.Queryer, projectID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM components WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to delete components for project: %w", err)
	}
	return nil
}

func collectComponents(rows *sql.Rows) ([]ComponentRecord, error) {
	var comps []ComponentRecord
	for rows.Next() {
		comp, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan component: %w", err)
		}
		comps = append(comps, comp)
	}
	return comps, rows.Err()
}

func scanComponent(rows *sql.Rows) (ComponentRecord, error) {
	var comp ComponentRecord
	var repoID sql.NullString
	var notes string
	var createdAt, updatedAt int64

	if err := rows.Scan(&comp.ID, &comp.ProjectID, &comp.Key, &comp.Name, &comp.Type,
		&comp.Lifecycle, &comp.Description, &repoID, &notes, &comp.Position,
		&createdAt, &updatedAt); err != nil {
		return ComponentRecord{}, err
	}

	if repoID.Valid {
		comp.RepositoryID = &repoID.String
	}
	parsed, err := database.UnmarshalStringList(notes)
	if err != nil {
		return ComponentRecord{}, err
	}
	comp.Notes = parsed
	comp.CreatedAt = database.FromUnixNanos(createdAt)
	comp.UpdatedAt = database.FromUnixNanos(updatedAt)
	return comp, nil
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// prefixColumns rewrites a column list to qualify each column with a table
// alias, for queries that join.
func prefixColumns(columns, alias string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

package catalogue

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// ComponentEdgeRepository handles dependency edge rows in the catalogue database
type ComponentEdgeRepository struct {
	catalogueDB *sql.DB
	log         zerolog.Logger
}

const edgeColumns = `id, from_component_id, to_component_id, relationship, kind, rationale, created_at, updated_at`

// NewComponentEdgeRepository creates a new component edge repository
func NewComponentEdgeRepository(catalogueDB *sql.DB, log zerolog.Logger) *ComponentEdgeRepository {
	return &ComponentEdgeRepository{
		catalogueDB: catalogueDB,
		log:         log.With().Str("repo", "component_edge").Logger(),
	}
}

// ListFromComponents returns every edge originating from the given components
func (r *ComponentEdgeRepository) ListFromComponents(ctx context.Context, componentIDs []string) ([]ComponentEdgeRecord, error) {
	return r.ListFromComponentsTx(ctx, r.catalogueDB, componentIDs)
}

// ListFromComponentsTx is ListFromComponents running on an explicit transaction or connection
func (r *ComponentEdgeRepository) ListFromComponentsTx(ctx context.Context, q database.Queryer, componentIDs []string) ([]ComponentEdgeRecord, error) {
	if len(componentIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(componentIDs)), ",")
	query := "SELECT " + edgeColumns + " FROM component_edges WHERE from_component_id IN (" + placeholders + ")" +
		" ORDER BY from_component_id, to_component_id, relationship"

	args := make([]interface{}, len(componentIDs))
	for i, id := range componentIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query component edges: %w", err)
	}
	defer rows.Close()

	var edges []ComponentEdgeRecord
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan component edge: %w", err)
		}
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// CreateTx inserts an edge row
func (r *ComponentEdgeRepository) CreateTx(ctx context.Context, q database.Queryer, edge *ComponentEdgeRecord) error {
	query := `INSERT INTO component_edges (id, from_component_id, to_component_id,
		relationship, kind, rationale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		edge.ID, edge.FromComponentID, edge.ToComponentID,
		edge.Relationship, edge.Kind, edge.Rationale,
		database.UnixNanos(edge.CreatedAt), database.UnixNanos(edge.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert component edge: %w", err)
	}
	return nil
}

// UpdateTx rewrites the kind and rationale of an edge row
func (r *ComponentEdgeRepository) UpdateTx(ctx context.Context, q database.Queryer, edge *ComponentEdgeRecord) error {
	query := `UPDATE component_edges SET kind = ?, rationale = ?, updated_at = ? WHERE id = ?`

	_, err := q.ExecContext(ctx, query,
		edge.Kind, edge.Rationale, database.UnixNanos(edge.UpdatedAt), edge.ID)
	if err != nil {
		return fmt.Errorf("failed to update component edge: %w", err)
	}
	return nil
}

// DeleteTx removes an edge row
func (r *ComponentEdgeRepository) DeleteTx(ctx context.Context, q database.Queryer, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM component_edges WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete component edge: %w", err)
	}
	return nil
}

// DeleteTouchingComponentTx removes every edge that starts or ends at a component
func (r *ComponentEdgeRepository) DeleteTouchingComponentTx(ctx context.Context, q database.Queryer, componentID string) error {
	query := `DELETE FROM component_edges WHERE from_component_id = ? OR to_component_id = ?`
	if _, err := q.ExecContext(ctx, query, componentID, componentID); err != nil {
		return fmt.Errorf("failed to delete edges for component: %w", err)
	}
	return nil
}

func scanEdge(rows *sql.Rows) (ComponentEdgeRecord, error) {
	var edge ComponentEdgeRecord
	var createdAt, updatedAt int64

	if err := rows.Scan(&edge.ID, &edge.FromComponentID, &edge.ToComponentID,
		&edge.Relationship, &edge.Kind, &edge.Rationale, &createdAt, &updatedAt); err != nil {
		return ComponentEdgeRecord{}, err
	}
	edge.CreatedAt = database.FromUnixNanos(createdAt)
	edge.UpdatedAt = database.FromUnixNanos(updatedAt)
	return edge, nil
}

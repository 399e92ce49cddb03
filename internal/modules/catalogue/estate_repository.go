package catalogue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// EstateRepository handles estate rows in the catalogue database
type EstateRepository struct {
	catalogueDB *sql.DB
	log         zerolog.Logger
}

const estateColumns = `id, key, name, created_at, updated_at`

// NewEstateRepository creates a new estate repository
func NewEstateRepository(catalogueDB *sql.DB, log zerolog.Logger) *EstateRepository {
	return &EstateRepository{
		catalogueDB: catalogueDB,
		log:         log.With().Str("repo", "estate").Logger(),
	}
}

// GetByKey returns an estate by its key, or nil when absent
func (r *EstateRepository) GetByKey(ctx context.Context, key string) (*Estate, error) {
	return r.GetByKeyTx(ctx, r.catalogueDB, key)
}

// GetByKeyTx is GetByKey running on an explicit transaction or connection
func (r *EstateRepository) GetByKeyTx(ctx context.Context, q database.Queryer, key string) (*Estate, error) {
	query := "SELECT " + estateColumns + " FROM estates WHERE key = ?"

	rows, err := q.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query estate by key: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // Estate not found
	}

	estate, err := scanEstate(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan estate: %w", err)
	}
	return &estate, nil
}

// GetByID returns an estate by its ID, or nil when absent
func (r *EstateRepository) GetByID(ctx context.Context, id string) (*Estate, error) {
	query := "SELECT " + estateColumns + " FROM estates WHERE id = ?"

	rows, err := r.catalogueDB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query estate by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	estate, err := scanEstate(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan estate: %w", err)
	}
	return &estate, nil
}

// ListAll returns every estate ordered by key
func (r *EstateRepository) ListAll(ctx context.Context) ([]Estate, error) {
	query := "SELECT " + estateColumns + " FROM estates ORDER BY key"

	rows, err := r.catalogueDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query estates: %w", err)
	}
	defer rows.Close()

	var estates []Estate
	for rows.Next() {
		estate, err := scanEstate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan estate: %w", err)
		}
		estates = append(estates, estate)
	}
	return estates, rows.Err()
}

// CreateTx inserts an estate row
func (r *EstateRepository) CreateTx(ctx context.Context, q database.Queryer, estate *Estate) error {
	query := `INSERT INTO estates (id, key, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		estate.ID, estate.Key, estate.Name,
		database.UnixNanos(estate.CreatedAt), database.UnixNanos(estate.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert estate %s: %w", estate.Key, err)
	}
	return nil
}

// UpdateNameTx updates the display name of an estate
func (r *EstateRepository) UpdateNameTx(ctx context.Context, q database.Queryer, id, name string, now time.Time) error {
	query := `UPDATE estates SET name = ?, updated_at = ? WHERE id = ?`

	_, err := q.ExecContext(ctx, query, name, database.UnixNanos(now), id)
	if err != nil {
		return fmt.Errorf("failed to update estate name: %w", err)
	}
	return nil
}

func scanEstate(rows *sql.Rows) (Estate, error) {
	var estate Estate
	var createdAt, updatedAt int64

	if err := rows.Scan(&estate.ID, &estate.Key, &estate.Name, &createdAt, &updatedAt); err != nil {
		return Estate{}, err
	}
	estate.CreatedAt = database.FromUnixNanos(createdAt)
	estate.UpdatedAt = database.FromUnixNanos(updatedAt)
	return estate, nil
}

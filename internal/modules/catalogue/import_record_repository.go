package catalogue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// ImportRecordRepository handles catalogue import markers in the catalogue database
type ImportRecordRepository struct {
	catalogueDB *sql.DB
	log         zerolog.Logger
}

const importRecordColumns = `id, estate_id, commit_sha, imported_at`

// NewImportRecordRepository creates a new import record repository
func NewImportRecordRepository(catalogueDB *sql.DB, log zerolog.Logger) *ImportRecordRepository {
	return &ImportRecordRepository{
		catalogueDB: catalogueDB,
		log:         log.With().Str("repo", "catalogue_import").Logger(),
	}
}

// Exists reports whether a commit has already been imported for an estate
func (r *ImportRecordRepository) Exists(ctx context.Context, estateID, commitSHA string) (bool, error) {
	return r.ExistsTx(ctx, r.catalogueDB, estateID, commitSHA)
}

// ExistsTx is Exists running on an explicit transaction or connection
func (r *ImportRecordRepository) ExistsTx(ctx context.Context, q database.Queryer, estateID, commitSHA string) (bool, error) {
	query := `SELECT COUNT(*) FROM catalogue_imports WHERE estate_id = ? AND commit_sha = ?`

	var count int
	if err := q.QueryRowContext(ctx, query, estateID, commitSHA).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check catalogue import record: %w", err)
	}
	return count > 0, nil
}

// LatestForEstate returns the most recent import record for an estate, or nil
func (r *ImportRecordRepository) LatestForEstate(ctx context.Context, estateID string) (*CatalogueImportRecord, error) {
	query := "SELECT " + importRecordColumns + " FROM catalogue_imports WHERE estate_id = ? ORDER BY imported_at DESC, id LIMIT 1"

	rows, err := r.catalogueDB.QueryContext(ctx, query, estateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest catalogue import: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err() // No imports yet
	}

	rec, err := scanImportRecord(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan catalogue import record: %w", err)
	}
	return &rec, nil
}

// CreateTx inserts an import marker. Violating the (estate_id, commit_sha)
// unique constraint is how a lost race with a concurrent importer surfaces.
func (r *ImportRecordRepository) CreateTx(ctx context.Context, q database.Queryer, rec *CatalogueImportRecord) error {
	query := `INSERT INTO catalogue_imports (id, estate_id, commit_sha, imported_at) VALUES (?, ?, ?, ?)`

	_, err := q.ExecContext(ctx, query,
		rec.ID, rec.EstateID, rec.CommitSHA, database.UnixNanos(rec.ImportedAt))
	if err != nil {
		return fmt.Errorf("failed to insert catalogue import record: %w", err)
	}
	return nil
}

func scanImportRecord(rows *sql.Rows) (CatalogueImportRecord, error) {
	var rec CatalogueImportRecord
	var importedAt int64

	if err := rows.Scan(&rec.ID, &rec.EstateID, &rec.CommitSHA, &importedAt); err != nil {
		return CatalogueImportRecord{}, err
	}
	rec.ImportedAt = database.FromUnixNanos(importedAt)
	return rec, nil
}

package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/config"
	"github.com/wildside/ghillie/internal/database"
)

// InitializeDatabases opens the three databases and applies schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. catalogue.db - Estate structure (estates, projects, components, edges)
	catalogueDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(database.NameCatalogue),
		Profile: database.ProfileStandard,
		Name:    database.NameCatalogue,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalogue database: %w", err)
	}
	container.CatalogueDB = catalogueDB

	// 2. silver.db - Evidence facts and the repository registry
	// Ledger profile: evidence rows are append-only and feed every report
	silverDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(database.NameSilver),
		Profile: database.ProfileLedger,
		Name:    database.NameSilver,
	})
	if err != nil {
		catalogueDB.Close()
		return nil, fmt.Errorf("failed to initialize silver database: %w", err)
	}
	container.SilverDB = silverDB

	// 3. gold.db - Reports, coverage ledger, review markers
	// Ledger profile: the report history is the product of record
	goldDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(database.NameGold),
		Profile: database.ProfileLedger,
		Name:    database.NameGold,
	})
	if err != nil {
		catalogueDB.Close()
		silverDB.Close()
		return nil, fmt.Errorf("failed to initialize gold database: %w", err)
	}
	container.GoldDB = goldDB

	// Apply schemas (single source of truth in database/schema.go)
	for _, db := range []*database.DB{catalogueDB, silverDB, goldDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
		}
	}

	log.Info().Msg("All databases initialized and schemas applied")

	return container, nil
}

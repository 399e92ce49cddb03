package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/evidence"
	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/internal/modules/reporting"
)

// InitializeRepositories creates the data access layer over the three
// databases. Catalogue repositories share the catalogue connection so the
// importer can run them inside one transaction.
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.CatalogueDB == nil || container.SilverDB == nil || container.GoldDB == nil {
		return fmt.Errorf("databases must be initialized before repositories")
	}

	catalogueConn := container.CatalogueDB.Conn()
	container.Estates = catalogue.NewEstateRepository(catalogueConn, log)
	container.Projects = catalogue.NewProjectRepository(catalogueConn, log)
	container.Components = catalogue.NewComponentRepository(catalogueConn, log)
	container.Edges = catalogue.NewComponentEdgeRepository(catalogueConn, log)
	container.RepoRecords = catalogue.NewRepoRecordRepository(catalogueConn, log)
	container.ImportRecords = catalogue.NewImportRecordRepository(catalogueConn, log)

	silverConn := container.SilverDB.Conn()
	container.Repos = registry.NewRepoRepository(silverConn, log)
	container.Activity = evidence.NewEvidenceRepository(silverConn, log)

	goldConn := container.GoldDB.Conn()
	container.History = evidence.NewReportHistoryRepository(goldConn, log)
	container.Reports = reporting.NewReportRepository(goldConn, log)
	container.Coverage = reporting.NewCoverageRepository(goldConn, log)
	container.Reviews = reporting.NewReviewRepository(goldConn, log)

	log.Info().Msg("All repositories initialized")

	return nil
}

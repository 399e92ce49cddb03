// Package di wires the application together: databases, repositories,
// services, and scheduler jobs, in that order. The Container is the single
// source of truth for all instances and is handed to the HTTP server and
// the scheduler.
package di

import (
	"github.com/wildside/ghillie/internal/clients/s3store"
	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/evidence"
	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/internal/modules/reporting"
	"github.com/wildside/ghillie/internal/reliability"
	"github.com/wildside/ghillie/internal/watcher"
)

// Container holds all dependencies for the application.
//
// Architecture:
// - Databases: medallion split (catalogue, silver, gold), SQLite with
//   WAL mode and profile-specific PRAGMAs
// - Repositories: data access layer over the three databases
// - Ports: event publisher, report sink, object store, status model
// - Services: importer, registry, evidence bundling, report orchestration,
//   catalogue watching, backups
//
// Optional pieces stay nil when unconfigured: ObjectStore and Backups
// without S3 credentials, Sink without any sink target, Watcher without a
// catalogue checkout.
type Container struct {
	// Databases
	CatalogueDB *database.DB // Estate structure (estates, projects, components, edges)
	SilverDB    *database.DB // Normalised evidence facts and the repository registry
	GoldDB      *database.DB // Generated reports, coverage ledger, review markers

	// Repositories
	Estates       *catalogue.EstateRepository
	Projects      *catalogue.ProjectRepository
	Components    *catalogue.ComponentRepository
	Edges         *catalogue.ComponentEdgeRepository
	RepoRecords   *catalogue.RepoRecordRepository
	ImportRecords *catalogue.ImportRecordRepository
	Repos         *registry.RepoRepository
	Activity      *evidence.EvidenceRepository
	History       *evidence.ReportHistoryRepository
	Reports       *reporting.ReportRepository
	Coverage      *reporting.CoverageRepository
	Reviews       *reporting.ReviewRepository

	// Ports - swappable adapters behind domain interfaces
	Publisher   domain.EventPublisher // Redis in production, gated stub in dev
	Sink        domain.ReportSink     // Filesystem, S3, both, or nil
	ObjectStore *s3store.Client       // Shared by the S3 sink and backups
	Model       reporting.StatusModel

	// Services
	Importer     *catalogue.Importer
	Registry     *registry.Service
	Builder      *evidence.RepoBundleBuilder
	Orchestrator *reporting.Orchestrator
	Watcher      *watcher.Watcher
	Backups      *reliability.BackupService
	Maintenance  *reliability.MaintenanceService
}

// Databases returns the three databases keyed by name, for health checks,
// maintenance sweeps, and backups
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		database.NameCatalogue: c.CatalogueDB,
		database.NameSilver:    c.SilverDB,
		database.NameGold:      c.GoldDB,
	}
}

// Close releases everything holding a connection. Safe on a partially
// wired container.
func (c *Container) Close() {
	if c.Publisher != nil {
		c.Publisher.Close()
	}
	for _, db := range []*database.DB{c.CatalogueDB, c.SilverDB, c.GoldDB} {
		if db != nil {
			db.Close()
		}
	}
}

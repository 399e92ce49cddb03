// Package main is a one-shot catalogue utility: validate a catalogue
// document, import it into an estate, and sync the repository registry.
// Intended for CI pipelines and first-time setup; the daemon's watcher
// does the same work continuously.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/config"
	"github.com/wildside/ghillie/internal/di"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/pkg/logger"
)

func main() {
	var (
		file         = flag.String("file", "catalogue.yaml", "path to the catalogue document")
		estate       = flag.String("estate", "", "estate key to import into")
		commit       = flag.String("commit", "", "commit SHA for idempotent re-imports")
		validateOnly = flag.Bool("validate-only", false, "validate the document and exit")
		skipSync     = flag.Bool("skip-sync", false, "import without syncing the registry")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", Pretty: true})

	doc, err := document.LoadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to load catalogue document")
	}

	doc.Normalise()
	if err := document.Validate(doc); err != nil {
		var validationErr *document.ValidationError
		if errors.As(err, &validationErr) {
			for _, issue := range validationErr.Issues {
				fmt.Fprintln(os.Stderr, "  - "+issue)
			}
		}
		log.Fatal().Int("issues", issueCount(err)).Str("file", *file).Msg("Catalogue document is invalid")
	}

	if *validateOnly {
		log.Info().Str("file", *file).Msg("Catalogue document is valid")
		return
	}

	if *estate == "" {
		log.Fatal().Msg("-estate is required unless -validate-only is set")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize databases")
	}
	defer container.Close()

	if err := di.InitializeRepositories(container, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize repositories")
	}

	// One-shot runs publish no events, so the importer and registry get a
	// nil publisher rather than a broker connection
	importer := catalogue.NewImporter(container.CatalogueDB,
		container.Estates, container.Projects, container.Components,
		container.Edges, container.RepoRecords, container.ImportRecords, nil, log)
	registrySvc := registry.NewService(container.SilverDB,
		container.Repos, container.Estates, container.Components,
		container.RepoRecords, nil, log)

	ctx := context.Background()

	result, err := importer.Import(ctx, *estate, doc, *commit)
	if err != nil {
		log.Fatal().Err(err).Str("estate", *estate).Msg("Import failed")
	}
	if result.Skipped {
		log.Info().
			Str("estate", result.EstateKey).
			Str("commit_sha", result.CommitSHA).
			Msg("Commit already imported, nothing to do")
		return
	}
	log.Info().
		Str("estate", result.EstateKey).
		Int("projects_created", result.Projects.Created).
		Int("projects_updated", result.Projects.Updated).
		Int("components_created", result.Components.Created).
		Int("components_updated", result.Components.Updated).
		Int("repositories_created", result.Repositories.Created).
		Msg("Catalogue imported")

	if *skipSync {
		return
	}

	syncResult, err := registrySvc.SyncFromCatalogue(ctx, *estate)
	if err != nil {
		log.Fatal().Err(err).Str("estate", *estate).Msg("Registry sync failed")
	}
	log.Info().
		Str("estate", syncResult.EstateKey).
		Int("created", syncResult.Created).
		Int("updated", syncResult.Updated).
		Int("deactivated", syncResult.Deactivated).
		Msg("Registry synced")
}

func issueCount(err error) int {
	var validationErr *document.ValidationError
	if errors.As(err, &validationErr) {
		return len(validationErr.Issues)
	}
	return 0
}

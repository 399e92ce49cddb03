package di

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/clients/anthropic"
	"github.com/wildside/ghillie/internal/clients/s3store"
	"github.com/wildside/ghillie/internal/config"
	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/events"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/evidence"
	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/internal/modules/reporting"
	"github.com/wildside/ghillie/internal/reliability"
	"github.com/wildside/ghillie/internal/sinks"
	"github.com/wildside/ghillie/internal/watcher"
)

// InitializeServices creates the business logic layer: ports first, then
// the importer, registry, orchestrator, and the optional watcher and
// backup services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container.Estates == nil {
		return fmt.Errorf("repositories must be initialized before services")
	}

	publisher, err := buildPublisher(cfg, log)
	if err != nil {
		return err
	}
	container.Publisher = publisher

	if cfg.S3.Enabled() {
		store, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize object store: %w", err)
		}
		container.ObjectStore = store
	}

	sink, err := buildSink(container, cfg, log)
	if err != nil {
		return err
	}
	container.Sink = sink

	model, err := buildModel(cfg, log)
	if err != nil {
		return err
	}
	container.Model = model

	container.Importer = catalogue.NewImporter(container.CatalogueDB,
		container.Estates, container.Projects, container.Components,
		container.Edges, container.RepoRecords, container.ImportRecords,
		container.Publisher, log)

	container.Registry = registry.NewService(container.SilverDB,
		container.Repos, container.Estates, container.Components,
		container.RepoRecords, container.Publisher, log)

	container.Builder = evidence.NewRepoBundleBuilder(container.Repos,
		container.Activity, container.History, cfg.Reporting.MaxPreviousReports, log)

	container.Orchestrator = reporting.NewOrchestrator(container.GoldDB,
		container.Reports, container.Coverage, container.Reviews,
		container.Builder, container.Repos, container.Model,
		container.Sink, container.Publisher,
		reporting.Config{
			WindowDays:            cfg.Reporting.WindowDays,
			ValidationMaxAttempts: cfg.Reporting.ValidationMaxAttempts,
			ModelTimeout:          time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
			MaxConcurrent:         cfg.Reporting.MaxConcurrentReports,
		}, log)

	if cfg.Watcher.CatalogueDir != "" {
		w, err := watcher.NewWatcher(watcher.Config{
			Dir:       cfg.Watcher.CatalogueDir,
			File:      cfg.Watcher.CatalogueFile,
			EstateKey: cfg.Watcher.EstateKey,
		}, container.Estates, container.ImportRecords, container.Importer,
			container.Registry, log)
		if err != nil {
			return fmt.Errorf("failed to initialize catalogue watcher: %w", err)
		}
		container.Watcher = w
	}

	if container.ObjectStore != nil {
		container.Backups = reliability.NewBackupService(container.Databases(),
			container.ObjectStore, cfg.Backup.RetentionDays, log)
	}
	container.Maintenance = reliability.NewMaintenanceService(container.Databases(), log)

	log.Info().Msg("All services initialized")

	return nil
}

// buildPublisher picks the broker adapter. No Redis address means the
// gated stub; refusing to run silently without a broker is the default.
func buildPublisher(cfg *config.Config, log zerolog.Logger) (domain.EventPublisher, error) {
	if cfg.Broker.RedisAddr != "" {
		return events.NewRedisPublisher(cfg.Broker.RedisAddr, cfg.Broker.RedisPassword, log), nil
	}
	if !cfg.Broker.AllowStub {
		return nil, fmt.Errorf("GHILLIE_REDIS_ADDR is not set; set GHILLIE_ALLOW_STUB_BROKER=true to run without a broker")
	}
	stub, err := events.NewStubPublisher(log)
	if err != nil {
		return nil, err
	}
	return stub, nil
}

// buildSink composes the configured report sinks. Zero sinks is valid:
// reports then live only in the gold database.
func buildSink(container *Container, cfg *config.Config, log zerolog.Logger) (domain.ReportSink, error) {
	var targets []domain.ReportSink

	if cfg.Sink.Path != "" {
		fs, err := sinks.NewFilesystemSink(cfg.Sink.Path, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize filesystem sink: %w", err)
		}
		targets = append(targets, fs)
	}
	if container.ObjectStore != nil {
		targets = append(targets, sinks.NewS3Sink(container.ObjectStore, cfg.S3.Prefix, log))
	}

	switch len(targets) {
	case 0:
		return nil, nil
	case 1:
		return targets[0], nil
	default:
		return sinks.NewMultiSink(targets...), nil
	}
}

func buildModel(cfg *config.Config, log zerolog.Logger) (reporting.StatusModel, error) {
	switch cfg.Model.Provider {
	case "anthropic":
		client, err := anthropic.NewStatusClient(cfg.Model.APIKey, cfg.Model.ModelID, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize anthropic model client: %w", err)
		}
		return client, nil
	case "stub", "":
		return reporting.StubModel{}, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}

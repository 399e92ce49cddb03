// Package main is the entry point for the Ghillie estate reporting service.
// Ghillie imports engineering estate catalogues, keeps a repository registry
// in sync with them, and turns repository evidence into periodic status
// reports with minimal human intervention.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wildside/ghillie/internal/config"
	"github.com/wildside/ghillie/internal/di"
	"github.com/wildside/ghillie/internal/scheduler"
	"github.com/wildside/ghillie/internal/server"
	"github.com/wildside/ghillie/pkg/logger"
)

// walCheckpointSchedule runs the maintenance sweep hourly, offset from the
// registry sync so the two never contend for the write lock
const walCheckpointSchedule = "0 45 * * * *"

// main orchestrates the system startup sequence:
// 1. Loads configuration from environment variables
// 2. Initializes logging
// 3. Wires all dependencies via the DI container (databases, repositories,
//    services, jobs)
// 4. Starts the HTTP server
// 5. Registers background jobs on their cron schedules and starts the
//    scheduler
// 6. Waits for a shutdown signal and shuts down gracefully
//
// The application uses a three-database medallion architecture:
// - catalogue.db: Estate structure (estates, projects, components, edges)
// - silver.db: Normalised evidence facts and the repository registry
// - gold.db: Generated reports, coverage ledger, review markers
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use a fallback logger so the configuration error is still visible
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Ghillie")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		DataDir:      cfg.DataDir,
		Databases:    container.Databases(),
		Estates:      container.Estates,
		Importer:     container.Importer,
		Registry:     container.Registry,
		Orchestrator: container.Orchestrator,
		Reports:      container.Reports,
		Reviews:      container.Reviews,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Background jobs on their cron schedules. The watch and backup jobs
	// are nil when their services are unconfigured.
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.Schedules.Reporting, jobs.EstateReporting); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule estate reporting")
	}
	if err := sched.AddJob(cfg.Schedules.RegistrySync, jobs.RegistrySync); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule registry sync")
	}
	if err := sched.AddJob(walCheckpointSchedule, jobs.CheckWALCheckpoints); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule WAL checkpoint sweep")
	}
	if jobs.CatalogueWatch != nil {
		if err := sched.AddJob(cfg.Schedules.Watch, jobs.CatalogueWatch); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule catalogue watch")
		}
	}
	if jobs.Backup != nil {
		if err := sched.AddJob(cfg.Schedules.Backup, jobs.Backup); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backups")
		}
	}
	sched.Start()

	// Import the watched catalogue now rather than waiting for the first
	// scheduled poll
	if jobs.CatalogueWatch != nil {
		go func() {
			if err := sched.RunNow(jobs.CatalogueWatch); err != nil {
				log.Warn().Err(err).Msg("Initial catalogue poll failed")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no job starts mid-shutdown; Stop waits
	// for running jobs to finish
	sched.Stop()

	// Graceful shutdown with a 10 second deadline for in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

package reliability

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

// MaintenanceService runs the periodic checks that keep WAL files small
// between backups
type MaintenanceService struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewMaintenanceService creates a maintenance service over the named
// databases
func NewMaintenanceService(databases map[string]*database.DB, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// CheckWALCheckpoints runs a passive checkpoint on every database and
// reports the WAL backlog. Passive checkpoints never block writers, so this
// is safe while reports are being generated. Every database is attempted;
// the first error is returned after the full pass.
func (s *MaintenanceService) CheckWALCheckpoints(ctx context.Context) error {
	var firstErr error

	for _, name := range sortedDatabaseNames(s.databases) {
		db := s.databases[name]

		var busy, logFrames, checkpointed int
		err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").
			Scan(&busy, &logFrames, &checkpointed)
		if err != nil {
			s.log.Warn().Str("database", name).Err(err).Msg("WAL checkpoint failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("wal checkpoint failed for %s: %w", name, err)
			}
			continue
		}

		event := s.log.Debug()
		if busy == 1 {
			event = s.log.Warn()
		}
		event.
			Str("database", name).
			Int("log_frames", logFrames).
			Int("checkpointed", checkpointed).
			Bool("blocked", busy == 1).
			Msg("WAL checkpoint")
	}
	return firstErr
}

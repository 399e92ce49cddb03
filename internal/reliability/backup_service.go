// Package reliability keeps the SQLite files healthy and recoverable:
// compacted snapshots shipped to object storage with retention, and
// periodic WAL checkpoint checks between backups.
package reliability

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/database"
)

const (
	backupKeyPrefix  = "backups"
	backupDateLayout = "2006-01-02"

	// Never pruned regardless of age
	minBackupsToKeep = 3

	// DefaultRetentionDays is how long snapshots beyond the minimum are kept
	DefaultRetentionDays = 30
)

// ObjectStore is the slice of the object storage client the backup service
// needs. *s3store.Client satisfies it.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// BackupInfo describes one uploaded snapshot
type BackupInfo struct {
	Key       string
	Database  string
	Date      time.Time
	SizeBytes int64
}

// BackupService ships compacted database snapshots to object storage and
// prunes old ones. Snapshots are taken with VACUUM INTO so the source
// databases stay online throughout.
type BackupService struct {
	databases     map[string]*database.DB
	store         ObjectStore
	retentionDays int
	log           zerolog.Logger
}

// NewBackupService creates a backup service over the named databases.
// A retentionDays of zero or less falls back to DefaultRetentionDays.
func NewBackupService(databases map[string]*database.DB, store ObjectStore, retentionDays int, log zerolog.Logger) *BackupService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &BackupService{
		databases:     databases,
		store:         store,
		retentionDays: retentionDays,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// BackupAll snapshots and uploads every database, then rotates that
// database's old uploads. Every database is attempted even when an earlier
// one fails; the first error is returned after the full pass.
func (s *BackupService) BackupAll(ctx context.Context) error {
	started := time.Now()
	var firstErr error

	for _, name := range sortedDatabaseNames(s.databases) {
		if err := s.backupDatabase(ctx, name, s.databases[name]); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Backup failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := s.rotate(ctx, name); err != nil {
			s.log.Warn().Str("database", name).Err(err).Msg("Backup rotation failed")
		}
	}

	if firstErr == nil {
		s.log.Info().
			Dur("duration_ms", time.Since(started)).
			Int("databases", len(s.databases)).
			Msg("Backup run complete")
	}
	return firstErr
}

func (s *BackupService) backupDatabase(ctx context.Context, name string, db *database.DB) error {
	tempDir, err := os.MkdirTemp("", "ghillie-backup-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	snapshotPath := filepath.Join(tempDir, name+".db")
	if err := db.VacuumInto(snapshotPath); err != nil {
		return err
	}

	f, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat snapshot: %w", err)
	}

	key := BackupKey(name, time.Now().UTC())
	if err := s.store.Upload(ctx, key, f, info.Size()); err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}

	s.log.Info().
		Str("database", name).
		Str("key", key).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Snapshot uploaded")
	return nil
}

// BackupKey returns the object key for a database snapshot taken on the
// given day
func BackupKey(name string, day time.Time) string {
	return path.Join(backupKeyPrefix, name, day.Format(backupDateLayout), name+".db")
}

// rotate deletes snapshots older than the retention horizon, always keeping
// the newest minBackupsToKeep regardless of age
func (s *BackupService) rotate(ctx context.Context, name string) error {
	backups, err := s.ListBackups(ctx, name)
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	for i, b := range backups {
		if i < minBackupsToKeep || !b.Date.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, b.Key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", b.Key, err)
		}
		s.log.Info().Str("database", name).Str("key", b.Key).Msg("Old snapshot pruned")
	}
	return nil
}

// ListBackups returns the stored snapshots for one database, newest first.
// Objects whose keys do not follow the backup layout are skipped.
func (s *BackupService) ListBackups(ctx context.Context, name string) ([]BackupInfo, error) {
	prefix := path.Join(backupKeyPrefix, name) + "/"
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups for %s: %w", name, err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		date, ok := parseBackupKey(*obj.Key, name)
		if !ok {
			s.log.Warn().Str("key", *obj.Key).Msg("Skipping object with unexpected key layout")
			continue
		}
		info := BackupInfo{Key: *obj.Key, Database: name, Date: date}
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		backups = append(backups, info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Date.After(backups[j].Date)
	})
	return backups, nil
}

func parseBackupKey(key, name string) (time.Time, bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != backupKeyPrefix || parts[1] != name {
		return time.Time{}, false
	}
	date, err := time.Parse(backupDateLayout, parts[2])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func sortedDatabaseNames(databases map[string]*database.DB) []string {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

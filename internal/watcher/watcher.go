// Package watcher polls a local git checkout of the catalogue repository
// and re-imports the catalogue when the checkout advances past the last
// imported commit.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/registry"
)

const gitTimeout = 10 * time.Second

// Config locates the checkout and names the estate its catalogue belongs to
type Config struct {
	Dir       string
	File      string
	EstateKey string
}

// PollResult describes one poll. Unchanged means the checkout HEAD matched
// the estate's last import and nothing was done. Import and Sync are set
// when a new commit was imported.
type PollResult struct {
	CommitSHA string                  `json:"commit_sha"`
	Unchanged bool                    `json:"unchanged"`
	Import    *catalogue.ImportResult `json:"import,omitempty"`
	Sync      *registry.SyncResult    `json:"sync,omitempty"`
}

// Watcher compares the checkout HEAD against the estate's import history
// and drives an import plus registry sync when they differ
type Watcher struct {
	cfg      Config
	estates  *catalogue.EstateRepository
	imports  *catalogue.ImportRecordRepository
	importer *catalogue.Importer
	registry *registry.Service
	log      zerolog.Logger
}

// NewWatcher creates a watcher over a local catalogue checkout
func NewWatcher(
	cfg Config,
	estates *catalogue.EstateRepository,
	imports *catalogue.ImportRecordRepository,
	importer *catalogue.Importer,
	registrySvc *registry.Service,
	log zerolog.Logger,
) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watcher requires a catalogue directory")
	}
	if cfg.File == "" {
		return nil, errors.New("watcher requires a catalogue file name")
	}
	if cfg.EstateKey == "" {
		return nil, errors.New("watcher requires an estate key")
	}
	return &Watcher{
		cfg:      cfg,
		estates:  estates,
		imports:  imports,
		importer: importer,
		registry: registrySvc,
		log:      log.With().Str("module", "watcher").Logger(),
	}, nil
}

// Poll resolves the checkout HEAD and, when it differs from the estate's
// last imported commit, loads and imports the catalogue file at that commit
// and syncs the registry. Re-polling an already imported commit is a no-op.
func (w *Watcher) Poll(ctx context.Context) (*PollResult, error) {
	head, err := w.head(ctx)
	if err != nil {
		return nil, err
	}

	estate, err := w.estates.GetByKey(ctx, w.cfg.EstateKey)
	if err != nil {
		return nil, err
	}
	if estate != nil {
		rec, err := w.imports.LatestForEstate(ctx, estate.ID)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.CommitSHA == head {
			w.log.Debug().
				Str("estate", w.cfg.EstateKey).
				Str("commit", head).
				Msg("Catalogue unchanged")
			return &PollResult{CommitSHA: head, Unchanged: true}, nil
		}
	}

	doc, err := document.LoadFile(filepath.Join(w.cfg.Dir, w.cfg.File))
	if err != nil {
		return nil, err
	}

	imported, err := w.importer.Import(ctx, w.cfg.EstateKey, doc, head)
	if err != nil {
		return nil, err
	}
	result := &PollResult{CommitSHA: head, Import: imported}
	if imported.Skipped {
		// Lost an import race; the winner syncs the registry
		return result, nil
	}

	synced, err := w.registry.SyncFromCatalogue(ctx, w.cfg.EstateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sync registry after import: %w", err)
	}
	result.Sync = synced

	w.log.Info().
		Str("estate", w.cfg.EstateKey).
		Str("commit", head).
		Int("repos_created", synced.Created).
		Int("repos_updated", synced.Updated).
		Int("repos_deactivated", synced.Deactivated).
		Msg("Catalogue change imported")
	return result, nil
}

// head resolves the checkout's current commit
func (w *Watcher) head(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", "-C", w.cfg.Dir, "rev-parse", "HEAD").Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("failed to resolve catalogue HEAD: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("failed to resolve catalogue HEAD: %w", err)
	}

	sha := strings.TrimSpace(string(out))
	if sha == "" {
		return "", errors.New("failed to resolve catalogue HEAD: empty output")
	}
	return sha, nil
}

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/modules/catalogue"
)

// Service synchronises the silver repository registry from the catalogue
// and exposes the registry's read and toggle operations. The catalogue side
// is read outside any transaction; the silver side is written inside one.
type Service struct {
	silverDB    *database.DB
	repos       *RepoRepository
	estates     *catalogue.EstateRepository
	components  *catalogue.ComponentRepository
	repoRecords *catalogue.RepoRecordRepository
	publisher   domain.EventPublisher
	log         zerolog.Logger
}

// NewService creates a registry service. The publisher may be nil.
func NewService(
	silverDB *database.DB,
	repos *RepoRepository,
	estates *catalogue.EstateRepository,
	components *catalogue.ComponentRepository,
	repoRecords *catalogue.RepoRecordRepository,
	publisher domain.EventPublisher,
	log zerolog.Logger,
) *Service {
	return &Service{
		silverDB:    silverDB,
		repos:       repos,
		estates:     estates,
		components:  components,
		repoRecords: repoRecords,
		publisher:   publisher,
		log:         log.With().Str("module", "registry").Logger(),
	}
}

// SyncFromCatalogue brings the estate's registry rows in line with its
// catalogue: repositories referenced by at least one component get a row,
// ingestion mirrors whether any referencing component is still undeprecated,
// and rows the catalogue no longer references are switched off but kept.
// Rows without a catalogue link are never touched.
func (s *Service) SyncFromCatalogue(ctx context.Context, estateKey string) (*SyncResult, error) {
	estate, err := s.estates.GetByKey(ctx, estateKey)
	if err != nil {
		return nil, &SyncError{EstateKey: estateKey, Err: err}
	}
	if estate == nil {
		return nil, &SyncError{EstateKey: estateKey, Err: fmt.Errorf("estate %q not found", estateKey)}
	}

	desired, err := s.desiredState(ctx, estate.ID)
	if err != nil {
		return nil, &SyncError{EstateKey: estateKey, Err: err}
	}

	result := &SyncResult{EstateKey: estateKey}
	now := time.Now().UTC()

	err = database.WithTransactionContext(ctx, s.silverDB.Conn(), func(tx *sql.Tx) error {
		existing, err := s.repos.ListForEstateTx(ctx, tx, estate.ID)
		if err != nil {
			return err
		}
		existingBySlug := make(map[string]RepoInfo, len(existing))
		for _, row := range existing {
			existingBySlug[row.Slug] = row
		}

		seen := make(map[string]bool, len(desired))
		for _, d := range desired {
			seen[d.record.Slug] = true

			ex, ok := existingBySlug[d.record.Slug]
			if !ok {
				row := &RepoInfo{
					ID:                    uuid.NewString(),
					Owner:                 d.record.Owner,
					Name:                  d.record.Name,
					Slug:                  d.record.Slug,
					DefaultBranch:         d.record.DefaultBranch,
					EstateID:              &estate.ID,
					CatalogueRepositoryID: &d.record.ID,
					IngestionEnabled:      d.active,
					DocumentationPaths:    d.record.DocumentationPaths,
					LastSyncedAt:          &now,
					CreatedAt:             now,
					UpdatedAt:             now,
				}
				if err := s.repos.CreateTx(ctx, tx, row); err != nil {
					return err
				}
				result.Created++
				continue
			}

			changed := ex.DefaultBranch != d.record.DefaultBranch ||
				!equalStringPtr(ex.CatalogueRepositoryID, &d.record.ID) ||
				ex.IngestionEnabled != d.active ||
				!equalStrings(ex.DocumentationPaths, d.record.DocumentationPaths)
			if !changed {
				continue
			}

			row := ex
			row.DefaultBranch = d.record.DefaultBranch
			row.CatalogueRepositoryID = &d.record.ID
			row.IngestionEnabled = d.active
			row.DocumentationPaths = d.record.DocumentationPaths
			row.LastSyncedAt = &now
			row.UpdatedAt = now
			if err := s.repos.UpdateSyncTx(ctx, tx, &row); err != nil {
				return err
			}
			result.Updated++
		}

		for _, ex := range existing {
			if seen[ex.Slug] {
				continue
			}
			if ex.CatalogueRepositoryID == nil {
				continue // ad-hoc row, not ours to manage
			}
			if !ex.IngestionEnabled {
				continue
			}
			if err := s.repos.DeactivateTx(ctx, tx, ex.ID, now); err != nil {
				return err
			}
			result.Deactivated++
		}
		return nil
	})
	if err != nil {
		return nil, &SyncError{EstateKey: estateKey, Err: err}
	}

	s.log.Info().
		Str("estate", estateKey).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deactivated", result.Deactivated).
		Msg("Registry sync complete")

	s.publishSynced(ctx, result)
	return result, nil
}

type desiredRepo struct {
	record catalogue.RepositoryRecord
	active bool
}

// desiredState reads the estate's catalogue and derives the registry rows
// it should have: one per referenced repository record, active while any
// referencing component is not deprecated.
func (s *Service) desiredState(ctx context.Context, estateID string) ([]desiredRepo, error) {
	comps, err := s.components.ListForEstate(ctx, estateID)
	if err != nil {
		return nil, err
	}

	activeByRepoID := make(map[string]bool)
	for _, comp := range comps {
		if comp.RepositoryID == nil {
			continue
		}
		id := *comp.RepositoryID
		if _, ok := activeByRepoID[id]; !ok {
			activeByRepoID[id] = false
		}
		if comp.Lifecycle != string(document.LifecycleDeprecated) {
			activeByRepoID[id] = true
		}
	}

	ids := make([]string, 0, len(activeByRepoID))
	for id := range activeByRepoID {
		ids = append(ids, id)
	}
	records, err := s.repoRecords.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	desired := make([]desiredRepo, 0, len(records))
	for _, rec := range records {
		desired = append(desired, desiredRepo{record: rec, active: activeByRepoID[rec.ID]})
	}
	return desired, nil
}

// EnableIngestion switches ingestion on for a repository. Returns whether
// any row actually changed.
func (s *Service) EnableIngestion(ctx context.Context, owner, name string) (bool, error) {
	return s.setIngestion(ctx, owner, name, true)
}

// DisableIngestion switches ingestion off for a repository. Returns whether
// any row actually changed.
func (s *Service) DisableIngestion(ctx context.Context, owner, name string) (bool, error) {
	return s.setIngestion(ctx, owner, name, false)
}

func (s *Service) setIngestion(ctx context.Context, owner, name string, enabled bool) (bool, error) {
	slug := repoSlug(owner, name)

	exists, err := s.repos.ExistsBySlug(ctx, slug)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, &RepositoryNotFoundError{Owner: owner, Name: name}
	}

	changed, err := s.repos.SetIngestionBySlug(ctx, slug, enabled, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if changed > 0 {
		s.log.Info().Str("slug", slug).Bool("enabled", enabled).Msg("Ingestion flag changed")
	}
	return changed > 0, nil
}

// ListActiveRepositories returns ingestion-enabled rows ordered by owner
// then name
func (s *Service) ListActiveRepositories(ctx context.Context, opts ListOptions) ([]RepoInfo, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, &NegativePaginationError{Limit: opts.Limit, Offset: opts.Offset}
	}
	return s.repos.List(ctx, opts, true)
}

// ListAllRepositories returns every row ordered by owner then name
func (s *Service) ListAllRepositories(ctx context.Context, opts ListOptions) ([]RepoInfo, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, &NegativePaginationError{Limit: opts.Limit, Offset: opts.Offset}
	}
	return s.repos.List(ctx, opts, false)
}

// GetRepositoryBySlug resolves an owner/name slug to a registry row. A
// malformed slug resolves to nothing without touching the database.
func (s *Service) GetRepositoryBySlug(ctx context.Context, slug string) (*RepoInfo, error) {
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil
	}
	return s.repos.GetBySlug(ctx, repoSlug(parts[0], parts[1]))
}

func (s *Service) publishSynced(ctx context.Context, result *SyncResult) {
	if s.publisher == nil {
		return
	}
	data := &domain.RegistrySyncedData{
		EstateKey:   result.EstateKey,
		Created:     result.Created,
		Updated:     result.Updated,
		Deactivated: result.Deactivated,
	}
	if err := s.publisher.Publish(ctx, data); err != nil {
		s.log.Warn().Err(err).Msg("Failed to publish registry sync event")
	}
}

func repoSlug(owner, name string) string {
	return strings.ToLower(strings.TrimSpace(owner) + "/" + strings.TrimSpace(name))
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

package catalogue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/domain"
)

// errAlreadyImported aborts a reconciliation whose commit was imported before.
// The transaction rolls back having written nothing.
var errAlreadyImported = errors.New("catalogue commit already imported")

// ChangeCounts tallies row-level changes for one entity kind during an import
type ChangeCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// ImportResult summarises one reconciliation run. A skipped run carries zero
// counts.
type ImportResult struct {
	EstateID     string       `json:"estate_id"`
	EstateKey    string       `json:"estate_key"`
	CommitSHA    string       `json:"commit_sha,omitempty"`
	Skipped      bool         `json:"skipped"`
	Projects     ChangeCounts `json:"projects"`
	Components   ChangeCounts `json:"components"`
	Repositories ChangeCounts `json:"repositories"`
	Edges        ChangeCounts `json:"edges"`
}

// Importer reconciles validated catalogue documents into the catalogue
// database. Each Import call runs validation first, then a single
// transaction covering estate, projects, components, repository records,
// edges and the import marker. A failure at any point leaves the stored
// state untouched.
type Importer struct {
	db            *database.DB
	estates       *EstateRepository
	projects      *ProjectRepository
	components    *ComponentRepository
	edges         *ComponentEdgeRepository
	repoRecords   *RepoRecordRepository
	importRecords *ImportRecordRepository
	publisher     domain.EventPublisher
	log           zerolog.Logger
}

// NewImporter creates a catalogue importer. The publisher may be nil, in
// which case no events are emitted.
func NewImporter(
	db *database.DB,
	estates *EstateRepository,
	projects *ProjectRepository,
	components *ComponentRepository,
	edges *ComponentEdgeRepository,
	repoRecords *RepoRecordRepository,
	importRecords *ImportRecordRepository,
	publisher domain.EventPublisher,
	log zerolog.Logger,
) *Importer {
	return &Importer{
		db:            db,
		estates:       estates,
		projects:      projects,
		components:    components,
		edges:         edges,
		repoRecords:   repoRecords,
		importRecords: importRecords,
		publisher:     publisher,
		log:           log.With().Str("module", "catalogue_import").Logger(),
	}
}

// Import validates a catalogue document and reconciles it into the stored
// state of the estate named by estateKey. When commitSHA is non-empty and
// that commit was already imported for the estate, the call returns a
// Skipped result without touching the database. Concurrent imports of the
// same commit are safe: the loser of the race hits the unique constraint on
// the import marker, rolls back, and also reports Skipped.
func (s *Importer) Import(ctx context.Context, estateKey string, doc *document.Catalogue, commitSHA string) (*ImportResult, error) {
	doc.Normalise()
	if err := document.Validate(doc); err != nil {
		return nil, err
	}

	result := &ImportResult{EstateKey: estateKey, CommitSHA: commitSHA}

	err := database.WithTransactionContext(ctx, s.db.Conn(), func(tx *sql.Tx) error {
		return s.reconcile(ctx, tx, estateKey, doc, commitSHA, result)
	})
	if err != nil {
		if errors.Is(err, errAlreadyImported) || isDuplicateImportError(err) {
			s.log.Info().
				Str("estate", estateKey).
				Str("commit", commitSHA).
				Msg("Catalogue commit already imported, skipping")
			skipped := &ImportResult{
				EstateID:  result.EstateID,
				EstateKey: estateKey,
				CommitSHA: commitSHA,
				Skipped:   true,
			}
			s.publishImported(ctx, skipped)
			return skipped, nil
		}
		return nil, err
	}

	s.log.Info().
		Str("estate", estateKey).
		Str("commit", commitSHA).
		Interface("projects", result.Projects).
		Interface("components", result.Components).
		Interface("repositories", result.Repositories).
		Interface("edges", result.Edges).
		Msg("Catalogue import complete")

	s.publishImported(ctx, result)
	return result, nil
}

// reconcile runs the ordered phases of an import inside one transaction:
// estate upsert, project reconciliation, component and repository
// reconciliation, repository pruning, edge reconciliation, import marker.
func (s *Importer) reconcile(ctx context.Context, tx *sql.Tx, estateKey string, doc *document.Catalogue, commitSHA string, result *ImportResult) error {
	now := time.Now().UTC()

	estate, err := s.estates.GetByKeyTx(ctx, tx, estateKey)
	if err != nil {
		return err
	}
	if estate != nil && commitSHA != "" {
		imported, err := s.importRecords.ExistsTx(ctx, tx, estate.ID, commitSHA)
		if err != nil {
			return err
		}
		if imported {
			result.EstateID = estate.ID
			return errAlreadyImported
		}
	}

	if estate == nil {
		estate = &Estate{
			ID:        uuid.NewString(),
			Key:       estateKey,
			Name:      estateDisplayName(estateKey),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.estates.CreateTx(ctx, tx, estate); err != nil {
			return err
		}
	} else if name := estateDisplayName(estateKey); estate.Name != name {
		if err := s.estates.UpdateNameTx(ctx, tx, estate.ID, name, now); err != nil {
			return err
		}
	}
	result.EstateID = estate.ID

	projectIDs, err := s.reconcileProjects(ctx, tx, estate.ID, doc, now, result)
	if err != nil {
		return err
	}

	componentIDs, err := s.reconcileComponents(ctx, tx, estate.ID, doc, projectIDs, now, result)
	if err != nil {
		return err
	}

	if err := s.reconcileEdges(ctx, tx, estateKey, doc, componentIDs, now, result); err != nil {
		return err
	}

	if commitSHA != "" {
		rec := &CatalogueImportRecord{
			ID:         uuid.NewString(),
			EstateID:   estate.ID,
			CommitSHA:  commitSHA,
			ImportedAt: now,
		}
		if err := s.importRecords.CreateTx(ctx, tx, rec); err != nil {
			return err
		}
	}
	return nil
}

// reconcileProjects upserts incoming projects by key and deletes stored
// projects absent from the document, together with their components and
// edges. Returns the project ID for every incoming key.
func (s *Importer) reconcileProjects(ctx context.Context, tx *sql.Tx, estateID string, doc *document.Catalogue, now time.Time, result *ImportResult) (map[string]string, error) {
	existing, err := s.projects.ListForEstateTx(ctx, tx, estateID)
	if err != nil {
		return nil, err
	}
	existingByKey := make(map[string]ProjectRecord, len(existing))
	for _, p := range existing {
		existingByKey[p.Key] = p
	}

	ids := make(map[string]string, len(doc.Projects))
	incoming := make(map[string]bool, len(doc.Projects))

	for _, p := range doc.Projects {
		incoming[p.Key] = true

		noise, err := marshalNoise(p.Noise)
		if err != nil {
			return nil, err
		}
		status, err := marshalStatus(p.Status)
		if err != nil {
			return nil, err
		}

		if ex, ok := existingByKey[p.Key]; ok {
			ids[p.Key] = ex.ID
			if ex.Name != p.Name || ex.Description != p.Description || ex.Programme != p.Programme ||
				ex.Noise != noise || ex.StatusPreferences != status ||
				!equalStringSlices(ex.DocumentationPaths, p.DocumentationPaths) {
				rec := ex
				rec.Name = p.Name
				rec.Description = p.Description
				rec.Programme = p.Programme
				rec.Noise = noise
				rec.StatusPreferences = status
				rec.DocumentationPaths = p.DocumentationPaths
				rec.UpdatedAt = now
				if err := s.projects.UpdateTx(ctx, tx, &rec); err != nil {
					return nil, err
				}
				result.Projects.Updated++
			}
			continue
		}

		rec := &ProjectRecord{
			ID:                 uuid.NewString(),
			EstateID:           estateID,
			Key:                p.Key,
			Name:               p.Name,
			Description:        p.Description,
			Programme:          p.Programme,
			Noise:              noise,
			StatusPreferences:  status,
			DocumentationPaths: p.DocumentationPaths,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.projects.CreateTx(ctx, tx, rec); err != nil {
			return nil, err
		}
		ids[p.Key] = rec.ID
		result.Projects.Created++
	}

	for _, ex := range existing {
		if incoming[ex.Key] {
			continue
		}
		if err := s.deleteProjectTree(ctx, tx, ex.ID); err != nil {
			return nil, err
		}
		result.Projects.Deleted++
	}
	return ids, nil
}

// deleteProjectTree removes a project together with its components and any
// edges touching them. Deletion order is children first so the statements
// stay valid regardless of foreign key enforcement.
func (s *Importer) deleteProjectTree(ctx context.Context, tx *sql.Tx, projectID string) error {
	comps, err := s.components.ListForProjectTx(ctx, tx, projectID)
	if err != nil {
		return err
	}
	for _, comp := range comps {
		if err := s.edges.DeleteTouchingComponentTx(ctx, tx, comp.ID); err != nil {
			return err
		}
	}
	if err := s.components.DeleteForProjectTx(ctx, tx, projectID); err != nil {
		return err
	}
	return s.projects.DeleteTx(ctx, tx, projectID)
}

// reconcileComponents walks the document's projects in order, upserting
// components and the repository records they reference, deletes stored
// components absent from their project's incoming set, and finally prunes
// repository records nothing references any more. Returns the component ID
// for every incoming component key.
func (s *Importer) reconcileComponents(ctx context.Context, tx *sql.Tx, estateID string, doc *document.Catalogue, projectIDs map[string]string, now time.Time, result *ImportResult) (map[string]string, error) {
	storedRepos, err := s.repoRecords.ListAllTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	repoBySlug := make(map[string]*RepositoryRecord, len(storedRepos))
	initialRepoIDs := make([]string, 0, len(storedRepos))
	for i := range storedRepos {
		rec := &storedRepos[i]
		repoBySlug[rec.Slug] = rec
		initialRepoIDs = append(initialRepoIDs, rec.ID)
	}

	componentIDs := make(map[string]string)
	referencedRepoIDs := make(map[string]bool)
	var deletions []ComponentRecord

	for _, p := range doc.Projects {
		projectID := projectIDs[p.Key]

		existing, err := s.components.ListForProjectTx(ctx, tx, projectID)
		if err != nil {
			return nil, err
		}
		existingByKey := make(map[string]ComponentRecord, len(existing))
		for _, c := range existing {
			existingByKey[c.Key] = c
		}

		incoming := make(map[string]bool, len(p.Components))
		for position, comp := range p.Components {
			incoming[comp.Key] = true

			var repoID *string
			if comp.Repository != nil {
				rec, err := s.ensureRepositoryRecord(ctx, tx, repoBySlug, comp.Repository, now, result)
				if err != nil {
					return nil, err
				}
				repoID = &rec.ID
				referencedRepoIDs[rec.ID] = true
			}

			if ex, ok := existingByKey[comp.Key]; ok {
				componentIDs[comp.Key] = ex.ID
				changed := ex.Name != comp.Name ||
					ex.Type != string(comp.Type) ||
					ex.Lifecycle != string(comp.Lifecycle) ||
					ex.Description != comp.Description ||
					!equalStringSlices(ex.Notes, comp.Notes) ||
					!equalStringPtrs(ex.RepositoryID, repoID)
				if changed {
					rec := ex
					rec.Name = comp.Name
					rec.Type = string(comp.Type)
					rec.Lifecycle = string(comp.Lifecycle)
					rec.Description = comp.Description
					rec.RepositoryID = repoID
					rec.Notes = comp.Notes
					rec.Position = position
					rec.UpdatedAt = now
					if err := s.components.UpdateTx(ctx, tx, &rec); err != nil {
						return nil, err
					}
					result.Components.Updated++
				} else if ex.Position != position {
					// Pure reordering is persisted but not counted as a change
					if err := s.components.UpdatePositionTx(ctx, tx, ex.ID, position); err != nil {
						return nil, err
					}
				}
				continue
			}

			rec := &ComponentRecord{
				ID:           uuid.NewString(),
				ProjectID:    projectID,
				Key:          comp.Key,
				Name:         comp.Name,
				Type:         string(comp.Type),
				Lifecycle:    string(comp.Lifecycle),
				Description:  comp.Description,
				RepositoryID: repoID,
				Notes:        comp.Notes,
				Position:     position,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.components.CreateTx(ctx, tx, rec); err != nil {
				return nil, err
			}
			componentIDs[comp.Key] = rec.ID
			result.Components.Created++
		}

		for _, ex := range existing {
			if !incoming[ex.Key] {
				deletions = append(deletions, ex)
			}
		}
	}

	// Deletions run after every project has been reconciled so edges from
	// surviving components to doomed ones are all visible at once.
	for _, doomed := range deletions {
		if err := s.edges.DeleteTouchingComponentTx(ctx, tx, doomed.ID); err != nil {
			return nil, err
		}
		if err := s.components.DeleteTx(ctx, tx, doomed.ID); err != nil {
			return nil, err
		}
		result.Components.Deleted++
	}

	// Prune repository records that were stored before this import and are
	// no longer referenced by this estate, unless another estate still
	// references them.
	for _, id := range initialRepoIDs {
		if referencedRepoIDs[id] {
			continue
		}
		count, err := s.components.CountForRepositoryInOtherEstatesTx(ctx, tx, id, estateID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}
		if err := s.repoRecords.DeleteTx(ctx, tx, id); err != nil {
			return nil, err
		}
		result.Repositories.Deleted++
	}

	return componentIDs, nil
}

// ensureRepositoryRecord upserts the shared repository record for a
// component's repository block, keyed by slug. Documentation paths are
// deduplicated preserving first occurrence.
func (s *Importer) ensureRepositoryRecord(ctx context.Context, tx *sql.Tx, repoBySlug map[string]*RepositoryRecord, repo *document.Repository, now time.Time, result *ImportResult) (*RepositoryRecord, error) {
	slug := repo.Slug()
	docs := dedupeStrings(repo.DocumentationPaths)

	if rec, ok := repoBySlug[slug]; ok {
		if rec.DefaultBranch != repo.DefaultBranch || !equalStringSlices(rec.DocumentationPaths, docs) {
			rec.DefaultBranch = repo.DefaultBranch
			rec.DocumentationPaths = docs
			rec.UpdatedAt = now
			if err := s.repoRecords.UpdateTx(ctx, tx, rec); err != nil {
				return nil, err
			}
			result.Repositories.Updated++
		}
		return rec, nil
	}

	rec := &RepositoryRecord{
		ID:                 uuid.NewString(),
		Owner:              repo.Owner,
		Name:               repo.Name,
		Slug:               slug,
		DefaultBranch:      repo.DefaultBranch,
		DocumentationPaths: docs,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repoRecords.CreateTx(ctx, tx, rec); err != nil {
		return nil, err
	}
	repoBySlug[slug] = rec
	result.Repositories.Created++
	return rec, nil
}

// reconcileEdges diffs the document's dependency edges against the stored
// ones for this estate's components. Edge identity is (from, to,
// relationship); kind and rationale changes count as updates.
func (s *Importer) reconcileEdges(ctx context.Context, tx *sql.Tx, estateKey string, doc *document.Catalogue, componentIDs map[string]string, now time.Time, result *ImportResult) error {
	ids := make([]string, 0, len(componentIDs))
	for _, id := range componentIDs {
		ids = append(ids, id)
	}
	stored, err := s.edges.ListFromComponentsTx(ctx, tx, ids)
	if err != nil {
		return err
	}

	type edgeKey struct {
		from, to, relationship string
	}
	existing := make(map[edgeKey]ComponentEdgeRecord, len(stored))
	for _, e := range stored {
		existing[edgeKey{e.FromComponentID, e.ToComponentID, e.Relationship}] = e
	}

	desired := make(map[edgeKey]bool)
	for _, p := range doc.Projects {
		for _, comp := range p.Components {
			fromID, ok := componentIDs[comp.Key]
			if !ok {
				continue
			}
			for _, group := range []struct {
				relationship document.EdgeRelationship
				edges        []document.Edge
			}{
				{document.RelationshipDependsOn, comp.DependsOn},
				{document.RelationshipBlockedBy, comp.BlockedBy},
				{document.RelationshipEmitsEventsTo, comp.EmitsEventsTo},
			} {
				for _, edge := range group.edges {
					toID, ok := componentIDs[edge.Component]
					if !ok {
						return &document.ValidationError{Issues: []string{fmt.Sprintf(
							"edge from %q references unknown component %q: component keys must be globally unique within estate %q",
							comp.Key, edge.Component, estateKey)}}
					}

					key := edgeKey{fromID, toID, string(group.relationship)}
					if desired[key] {
						continue // duplicate declaration, first wins
					}
					desired[key] = true

					if ex, ok := existing[key]; ok {
						if ex.Kind != string(edge.Kind) || ex.Rationale != edge.Rationale {
							rec := ex
							rec.Kind = string(edge.Kind)
							rec.Rationale = edge.Rationale
							rec.UpdatedAt = now
							if err := s.edges.UpdateTx(ctx, tx, &rec); err != nil {
								return err
							}
							result.Edges.Updated++
						}
						continue
					}

					rec := &ComponentEdgeRecord{
						ID:              uuid.NewString(),
						FromComponentID: fromID,
						ToComponentID:   toID,
						Relationship:    string(group.relationship),
						Kind:            string(edge.Kind),
						Rationale:       edge.Rationale,
						CreatedAt:       now,
						UpdatedAt:       now,
					}
					if err := s.edges.CreateTx(ctx, tx, rec); err != nil {
						return err
					}
					result.Edges.Created++
				}
			}
		}
	}

	for _, e := range stored {
		if desired[edgeKey{e.FromComponentID, e.ToComponentID, e.Relationship}] {
			continue
		}
		if err := s.edges.DeleteTx(ctx, tx, e.ID); err != nil {
			return err
		}
		result.Edges.Deleted++
	}
	return nil
}

func (s *Importer) publishImported(ctx context.Context, result *ImportResult) {
	if s.publisher == nil {
		return
	}
	data := &domain.CatalogueImportedData{
		EstateKey: result.EstateKey,
		CommitSHA: result.CommitSHA,
		Skipped:   result.Skipped,
		Created:   result.Projects.Created + result.Components.Created + result.Repositories.Created + result.Edges.Created,
		Updated:   result.Projects.Updated + result.Components.Updated + result.Repositories.Updated + result.Edges.Updated,
		Deleted:   result.Projects.Deleted + result.Components.Deleted + result.Repositories.Deleted + result.Edges.Deleted,
	}
	if err := s.publisher.Publish(ctx, data); err != nil {
		s.log.Warn().Err(err).Msg("Failed to publish catalogue import event")
	}
}

// estateDisplayName derives a human-readable name from an estate key. The
// catalogue document itself carries no estate block, so the key is the only
// naming input.
func estateDisplayName(key string) string {
	parts := strings.Split(key, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// Preference blocks are stored serialised and diffed as strings. A nil
// block serialises to {} so presence changes diff cleanly.

func marshalNoise(n *document.NoiseFilters) (string, error) {
	if n == nil {
		return "{}", nil
	}
	out, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to marshal noise filters: %w", err)
	}
	return string(out), nil
}

func marshalStatus(p *document.StatusPreferences) (string, error) {
	if p == nil {
		return "{}", nil
	}
	out, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal status preferences: %w", err)
	}
	return string(out), nil
}

// isDuplicateImportError detects a lost race on the import marker's unique
// constraint. SQLite reports the violated columns in the error text.
func isDuplicateImportError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "catalogue_imports")
}

// dedupeStrings removes duplicates preserving first occurrence
func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func equalStringSlices(a, b []string) bool {
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

func equalStringPtrs(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

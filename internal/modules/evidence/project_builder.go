package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/registry"
)

// ProjectBundleBuilder assembles project-scope evidence bundles by joining
// catalogue structure with each repository's most recent report. Catalogue
// and silver/gold reads go through separate database handles.
type ProjectBundleBuilder struct {
	projects           *catalogue.ProjectRepository
	components         *catalogue.ComponentRepository
	edges              *catalogue.ComponentEdgeRepository
	silverRepos        *registry.RepoRepository
	history            *ReportHistoryRepository
	maxPreviousReports int
	log                zerolog.Logger
}

// NewProjectBundleBuilder creates a new project evidence builder
func NewProjectBundleBuilder(projects *catalogue.ProjectRepository, components *catalogue.ComponentRepository, edges *catalogue.ComponentEdgeRepository, silverRepos *registry.RepoRepository, history *ReportHistoryRepository, maxPreviousReports int, log zerolog.Logger) *ProjectBundleBuilder {
	if maxPreviousReports <= 0 {
		maxPreviousReports = DefaultMaxPreviousReports
	}
	return &ProjectBundleBuilder{
		projects:           projects,
		components:         components,
		edges:              edges,
		silverRepos:        silverRepos,
		history:            history,
		maxPreviousReports: maxPreviousReports,
		log:                log.With().Str("module", "evidence").Logger(),
	}
}

// BuildBundle gathers everything a project-scope report needs
func (b *ProjectBundleBuilder) BuildBundle(ctx context.Context, projectKey, estateID string) (*ProjectEvidenceBundle, error) {
	project, err := b.projects.GetByKey(ctx, estateID, projectKey)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, &NotFoundError{Kind: "project", ID: projectKey}
	}

	comps, err := b.components.ListForProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	componentIDs := make([]string, 0, len(comps))
	keyByComponentID := make(map[string]string, len(comps))
	var catalogueRepoIDs []string
	seenRepoIDs := make(map[string]bool)
	for _, comp := range comps {
		componentIDs = append(componentIDs, comp.ID)
		keyByComponentID[comp.ID] = comp.Key
		if comp.RepositoryID != nil && !seenRepoIDs[*comp.RepositoryID] {
			seenRepoIDs[*comp.RepositoryID] = true
			catalogueRepoIDs = append(catalogueRepoIDs, *comp.RepositoryID)
		}
	}

	edges, err := b.edges.ListFromComponents(ctx, componentIDs)
	if err != nil {
		return nil, err
	}

	silverByCatalogueID, err := b.silverRepos.ListByCatalogueIDs(ctx, catalogueRepoIDs, estateID)
	if err != nil {
		return nil, err
	}

	silverRepoIDs := make([]string, 0, len(silverByCatalogueID))
	for _, repo := range silverByCatalogueID {
		silverRepoIDs = append(silverRepoIDs, repo.ID)
	}
	latestReports, err := b.history.LatestRepositoryReports(ctx, silverRepoIDs)
	if err != nil {
		return nil, err
	}

	previous, err := b.history.PreviousProjectReports(ctx, projectKey, estateID, b.maxPreviousReports)
	if err != nil {
		return nil, err
	}

	noise, err := parseNoiseFilters(project.Noise)
	if err != nil {
		return nil, fmt.Errorf("failed to parse noise filters for project %s: %w", projectKey, err)
	}
	prefs, err := parseStatusPreferences(project.StatusPreferences)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status preferences for project %s: %w", projectKey, err)
	}

	bundle := &ProjectEvidenceBundle{
		Project: ProjectMetadata{
			ID:                 project.ID,
			Key:                project.Key,
			Name:               project.Name,
			Description:        project.Description,
			Programme:          project.Programme,
			EstateID:           project.EstateID,
			DocumentationPaths: project.DocumentationPaths,
			Noise:              noise,
			StatusPreferences:  prefs,
		},
		PreviousReports: previous,
		GeneratedAt:     time.Now().UTC(),
	}

	for _, comp := range comps {
		ce := ComponentEvidence{
			Key:         comp.Key,
			Name:        comp.Name,
			Type:        comp.Type,
			Lifecycle:   comp.Lifecycle,
			Description: comp.Description,
			Notes:       comp.Notes,
		}
		if comp.RepositoryID != nil {
			if silver, ok := silverByCatalogueID[*comp.RepositoryID]; ok {
				if latest, ok := latestReports[silver.ID]; ok {
					ce.Repository = &ComponentRepositorySummary{
						RepositoryID: silver.ID,
						Slug:         silver.Slug,
						ReportID:     latest.ReportID,
						WindowStart:  latest.WindowStart,
						WindowEnd:    latest.WindowEnd,
						GeneratedAt:  latest.GeneratedAt,
						Status:       latest.Status,
						Summary:      latest.Summary,
					}
				}
			}
		}
		bundle.Components = append(bundle.Components, ce)
	}

	for _, edge := range edges {
		toKey, ok := keyByComponentID[edge.ToComponentID]
		if !ok {
			continue // Target lives in another project
		}
		bundle.Dependencies = append(bundle.Dependencies, ComponentDependencyEvidence{
			FromKey:      keyByComponentID[edge.FromComponentID],
			ToKey:        toKey,
			Relationship: edge.Relationship,
			Kind:         edge.Kind,
			Rationale:    edge.Rationale,
		})
	}
	sort.Slice(bundle.Dependencies, func(i, j int) bool {
		a, b := bundle.Dependencies[i], bundle.Dependencies[j]
		if a.FromKey != b.FromKey {
			return a.FromKey < b.FromKey
		}
		if a.ToKey != b.ToKey {
			return a.ToKey < b.ToKey
		}
		return a.Relationship < b.Relationship
	})

	b.log.Debug().
		Str("project_key", projectKey).
		Str("estate_id", estateID).
		Int("components", len(bundle.Components)).
		Int("dependencies", len(bundle.Dependencies)).
		Int("previous_reports", len(previous)).
		Msg("Built project evidence bundle")

	return bundle, nil
}

func parseNoiseFilters(raw string) (*document.NoiseFilters, error) {
	if isEmptyJSONObject(raw) {
		return nil, nil
	}
	var filters document.NoiseFilters
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, err
	}
	return &filters, nil
}

func parseStatusPreferences(raw string) (*document.StatusPreferences, error) {
	if isEmptyJSONObject(raw) {
		return nil, nil
	}
	var prefs document.StatusPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

func isEmptyJSONObject(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "" || trimmed == "{}"
}

package evidence

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/modules/registry"
)

const (
	// DefaultMaxPreviousReports bounds how much prior context a bundle carries
	DefaultMaxPreviousReports = 3

	maxSampleTitles   = 5
	sampleTitleLength = 100
)

// RepoBundleBuilder assembles repository-scope evidence bundles from the
// silver activity tables and the gold report history
type RepoBundleBuilder struct {
	repos              *registry.RepoRepository
	activity           *EvidenceRepository
	history            *ReportHistoryRepository
	maxPreviousReports int
	log                zerolog.Logger
}

// NewRepoBundleBuilder creates a new repository evidence builder.
// maxPreviousReports falls back to DefaultMaxPreviousReports when zero or
// negative.
func NewRepoBundleBuilder(repos *registry.RepoRepository, activity *EvidenceRepository, history *ReportHistoryRepository, maxPreviousReports int, log zerolog.Logger) *RepoBundleBuilder {
	if maxPreviousReports <= 0 {
		maxPreviousReports = DefaultMaxPreviousReports
	}
	return &RepoBundleBuilder{
		repos:              repos,
		activity:           activity,
		history:            history,
		maxPreviousReports: maxPreviousReports,
		log:                log.With().Str("module", "evidence").Logger(),
	}
}

// BuildBundle gathers everything a repository-scope report needs for the
// half-open window [start, end)
func (b *RepoBundleBuilder) BuildBundle(ctx context.Context, repositoryID string, start, end time.Time) (*RepositoryEvidenceBundle, error) {
	repo, err := b.repos.GetByID(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, &NotFoundError{Kind: "repository", ID: repositoryID}
	}

	commits, err := b.activity.CommitsInWindow(ctx, repositoryID, start, end)
	if err != nil {
		return nil, err
	}
	prs, err := b.activity.PullRequestsTouchingWindow(ctx, repositoryID, start, end)
	if err != nil {
		return nil, err
	}
	issues, err := b.activity.IssuesTouchingWindow(ctx, repositoryID, start, end)
	if err != nil {
		return nil, err
	}
	docChanges, err := b.activity.DocChangesInWindow(ctx, repositoryID, start, end)
	if err != nil {
		return nil, err
	}
	eventFactIDs, err := b.activity.EventFactIDsInWindow(ctx, repositoryID, start, end)
	if err != nil {
		return nil, err
	}

	previous, err := b.history.PreviousRepositoryReports(ctx, repositoryID, start, b.maxPreviousReports)
	if err != nil {
		return nil, err
	}

	bundle := &RepositoryEvidenceBundle{
		Repository:           *repo,
		WindowStart:          start,
		WindowEnd:            end,
		GeneratedAt:          time.Now().UTC(),
		Commits:              commits,
		PullRequests:         prs,
		Issues:               issues,
		DocumentationChanges: docChanges,
		EventFactIDs:         eventFactIDs,
		WorkTypes:            buildWorkTypeGroupings(commits, prs, issues),
		Activity:             ComputeActivityStats(commits, start, end),
		PreviousReports:      previous,
	}

	b.log.Debug().
		Str("repository_id", repositoryID).
		Time("window_start", start).
		Time("window_end", end).
		Int("commits", len(commits)).
		Int("pull_requests", len(prs)).
		Int("issues", len(issues)).
		Int("event_facts", len(eventFactIDs)).
		Msg("Built repository evidence bundle")

	return bundle, nil
}

// buildWorkTypeGroupings buckets the window's activity by work type. Merge
// commits are skipped; each grouping carries at most five sample titles,
// commits contributing first.
func buildWorkTypeGroupings(commits []Commit, prs []PullRequest, issues []Issue) []WorkTypeGrouping {
	byType := make(map[WorkType]*WorkTypeGrouping)
	grouping := func(wt WorkType) *WorkTypeGrouping {
		g, ok := byType[wt]
		if !ok {
			g = &WorkTypeGrouping{WorkType: wt}
			byType[wt] = g
		}
		return g
	}
	addSample := func(g *WorkTypeGrouping, title string) {
		if len(g.Samples) < maxSampleTitles {
			g.Samples = append(g.Samples, truncateSample(title, sampleTitleLength))
		}
	}

	for _, c := range commits {
		if IsMergeCommit(c.Message) {
			continue
		}
		g := grouping(ClassifyTitle(c.Message))
		g.Commits++
		addSample(g, firstLine(c.Message))
	}
	for _, pr := range prs {
		g := grouping(ClassifyWork(pr.Labels, pr.Title))
		g.PullRequests++
		addSample(g, pr.Title)
	}
	for _, issue := range issues {
		g := grouping(ClassifyWork(issue.Labels, issue.Title))
		g.Issues++
		addSample(g, issue.Title)
	}

	var groupings []WorkTypeGrouping
	for _, wt := range workTypeOrder {
		if g, ok := byType[wt]; ok {
			groupings = append(groupings, *g)
		}
	}
	return groupings
}

package evidence

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/modules/registry"
	testingpkg "github.com/wildside/ghillie/internal/testing"
)

type evidenceFixture struct {
	silverDB   *database.DB
	silverConn *sql.DB
	goldConn   *sql.DB
	repos      *registry.RepoRepository
	activity   *EvidenceRepository
	history    *ReportHistoryRepository
	builder    *RepoBundleBuilder
}

func newEvidenceFixture(t *testing.T) *evidenceFixture {
	t.Helper()

	silverDB, silverCleanup := testingpkg.NewTestDB(t, database.NameSilver)
	t.Cleanup(silverCleanup)
	goldDB, goldCleanup := testingpkg.NewTestDB(t, database.NameGold)
	t.Cleanup(goldCleanup)

	log := zerolog.Nop()
	f := &evidenceFixture{
		silverDB:   silverDB,
		silverConn: silverDB.Conn(),
		goldConn:   goldDB.Conn(),
	}
	f.repos = registry.NewRepoRepository(f.silverConn, log)
	f.activity = NewEvidenceRepository(f.silverConn, log)
	f.history = NewReportHistoryRepository(f.goldConn, log)
	f.builder = NewRepoBundleBuilder(f.repos, f.activity, f.history, 3, log)
	return f
}

func (f *evidenceFixture) seedRepository(t *testing.T, owner, name string) registry.RepoInfo {
	t.Helper()

	now := time.Now().UTC()
	estateID := uuid.NewString()
	catalogueID := uuid.NewString()
	repo := registry.RepoInfo{
		ID:                    uuid.NewString(),
		Owner:                 owner,
		Name:                  name,
		Slug:                  strings.ToLower(owner + "/" + name),
		DefaultBranch:         "main",
		EstateID:              &estateID,
		CatalogueRepositoryID: &catalogueID,
		IngestionEnabled:      true,
		LastSyncedAt:          &now,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, f.repos.CreateTx(context.Background(), f.silverConn, &repo))
	return repo
}

func (f *evidenceFixture) addCommit(t *testing.T, repoID, message string, at time.Time) {
	t.Helper()
	require.NoError(t, f.activity.InsertCommit(context.Background(), &Commit{
		ID:           uuid.NewString(),
		RepositoryID: repoID,
		SHA:          uuid.NewString()[:8],
		Message:      message,
		Author:       "dev",
		CommittedAt:  at,
	}))
}

func (f *evidenceFixture) addEventFact(t *testing.T, repoID string, at time.Time) string {
	t.Helper()
	id := uuid.NewString()
	require.NoError(t, f.activity.InsertEventFact(context.Background(), &EventFact{
		ID:           id,
		RepositoryID: repoID,
		EventType:    "commit",
		Source:       "github",
		OccurredAt:   at,
	}))
	return id
}

type goldReport struct {
	id             string
	scope          string
	repositoryID   string
	projectKey     string
	estateID       string
	windowStart    time.Time
	windowEnd      time.Time
	generatedAt    time.Time
	machineSummary string
	coverage       []string
}

func (f *evidenceFixture) insertReport(t *testing.T, r goldReport) string {
	t.Helper()

	if r.id == "" {
		r.id = uuid.NewString()
	}
	if r.machineSummary == "" {
		r.machineSummary = "{}"
	}
	var repoID interface{}
	if r.repositoryID != "" {
		repoID = r.repositoryID
	}
	_, err := f.goldConn.Exec(
		`INSERT INTO reports (id, scope, repository_id, window_start, window_end, generated_at, machine_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.id, r.scope, repoID,
		database.UnixNanos(r.windowStart), database.UnixNanos(r.windowEnd),
		database.UnixNanos(r.generatedAt), r.machineSummary)
	require.NoError(t, err)

	if r.projectKey != "" {
		_, err = f.goldConn.Exec(
			`INSERT INTO report_projects (report_id, project_key, estate_id) VALUES (?, ?, ?)`,
			r.id, r.projectKey, r.estateID)
		require.NoError(t, err)
	}
	for _, factID := range r.coverage {
		_, err = f.goldConn.Exec(
			`INSERT INTO report_coverage (report_id, event_fact_id) VALUES (?, ?)`,
			r.id, factID)
		require.NoError(t, err)
	}
	return r.id
}

func TestBuildRepositoryBundleRespectsWindow(t *testing.T) {
	f := newEvidenceFixture(t)
	ctx := context.Background()
	repo := f.seedRepository(t, "wildside", "api-gateway")

	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	f.addCommit(t, repo.ID, "before window", start.Add(-time.Hour))
	f.addCommit(t, repo.ID, "at window start", start)
	f.addCommit(t, repo.ID, "mid window", start.AddDate(0, 0, 3))
	f.addCommit(t, repo.ID, "at window end", end)

	// Created before the window but merged inside it
	require.NoError(t, f.activity.InsertPullRequest(ctx, &PullRequest{
		ID: uuid.NewString(), RepositoryID: repo.ID, Number: 7,
		Title: "Old PR merged now", Author: "dev", State: "merged",
		CreatedAt: start.AddDate(0, 0, -10), MergedAt: timePtr(start.Add(time.Hour)),
	}))
	require.NoError(t, f.activity.InsertPullRequest(ctx, &PullRequest{
		ID: uuid.NewString(), RepositoryID: repo.ID, Number: 8,
		Title: "Opened in window", Author: "dev", State: "open",
		CreatedAt: start.AddDate(0, 0, 2),
	}))
	require.NoError(t, f.activity.InsertPullRequest(ctx, &PullRequest{
		ID: uuid.NewString(), RepositoryID: repo.ID, Number: 9,
		Title: "Entirely before", Author: "dev", State: "closed",
		CreatedAt: start.AddDate(0, 0, -20), ClosedAt: timePtr(start.AddDate(0, 0, -15)),
	}))

	require.NoError(t, f.activity.InsertIssue(ctx, &Issue{
		ID: uuid.NewString(), RepositoryID: repo.ID, Number: 30,
		Title: "Closed during window", Author: "dev", State: "closed",
		CreatedAt: start.AddDate(0, 0, -5), ClosedAt: timePtr(start.AddDate(0, 0, 1)),
	}))
	require.NoError(t, f.activity.InsertIssue(ctx, &Issue{
		ID: uuid.NewString(), RepositoryID: repo.ID, Number: 31,
		Title: "After window", Author: "dev", State: "open",
		CreatedAt: end.Add(time.Hour),
	}))

	require.NoError(t, f.activity.InsertDocChange(ctx, &DocumentationChange{
		ID: uuid.NewString(), RepositoryID: repo.ID, Path: "docs/gateway.md",
		ChangeType: "modified", Summary: "Routing notes", Author: "dev",
		OccurredAt: start.AddDate(0, 0, 1),
	}))

	inWindow1 := f.addEventFact(t, repo.ID, start.Add(time.Minute))
	inWindow2 := f.addEventFact(t, repo.ID, start.AddDate(0, 0, 5))
	f.addEventFact(t, repo.ID, end.Add(time.Minute))

	bundle, err := f.builder.BuildBundle(ctx, repo.ID, start, end)
	require.NoError(t, err)

	require.Len(t, bundle.Commits, 2)
	assert.Equal(t, "at window start", bundle.Commits[0].Message)
	assert.Equal(t, "mid window", bundle.Commits[1].Message)

	require.Len(t, bundle.PullRequests, 2)
	assert.Equal(t, 7, bundle.PullRequests[0].Number)
	assert.Equal(t, 8, bundle.PullRequests[1].Number)

	require.Len(t, bundle.Issues, 1)
	assert.Equal(t, 30, bundle.Issues[0].Number)

	require.Len(t, bundle.DocumentationChanges, 1)
	assert.Equal(t, "docs/gateway.md", bundle.DocumentationChanges[0].Path)

	assert.Equal(t, []string{inWindow1, inWindow2}, bundle.EventFactIDs)
	assert.Equal(t, 2, bundle.TotalEventCount())
	assert.False(t, bundle.HasPreviousContext())
	assert.Equal(t, repo.Slug, bundle.Repository.Slug)
	assert.False(t, bundle.GeneratedAt.IsZero())
}

func TestBuildRepositoryBundleGroupsWorkTypes(t *testing.T) {
	f := newEvidenceFixture(t)
	ctx := context.Background()
	repo := f.seedRepository(t, "wildside", "identity-service")

	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	f.addCommit(t, repo.ID, "feat: add session rotation", start.Add(time.Hour))
	f.addCommit(t, repo.ID, "fix: token refresh crash\n\nDetails in the body.", start.Add(2*time.Hour))
	f.addCommit(t, repo.ID, "Merge pull request #12 from wildside/hotfix", start.Add(3*time.Hour))

	require.NoError(t, f.activity.InsertPullRequest(ctx, &PullRequest{
		ID: uuid.NewString(), RepositoryID: repo.ID, Number: 12,
		Title: "Harden token refresh", Author: "dev", State: "merged",
		Labels: []string{"bug"}, CreatedAt: start.Add(time.Hour), MergedAt: timePtr(start.Add(4 * time.Hour)),
	}))
	require.NoError(t, f.activity.InsertPullRequest(ctx, &PullRequest{
		ID: uuid.NewString(), RepositoryID: repo.ID, Number: 13,
		Title: "Add device fingerprinting", Author: "dev", State: "open",
		CreatedAt: start.Add(5 * time.Hour),
	}))
	require.NoError(t, f.activity.InsertIssue(ctx, &Issue{
		ID: uuid.NewString(), RepositoryID: repo.ID, Number: 40,
		Title: "Document the session API", Author: "dev", State: "open",
		Labels: []string{"documentation"}, CreatedAt: start.Add(time.Hour),
	}))

	bundle, err := f.builder.BuildBundle(ctx, repo.ID, start, end)
	require.NoError(t, err)

	// The merge commit stays in the raw commit list but never reaches a grouping
	assert.Len(t, bundle.Commits, 3)

	require.Len(t, bundle.WorkTypes, 3)
	assert.Equal(t, WorkFeature, bundle.WorkTypes[0].WorkType)
	assert.Equal(t, 1, bundle.WorkTypes[0].Commits)
	assert.Equal(t, 1, bundle.WorkTypes[0].PullRequests)
	assert.Equal(t, []string{"feat: add session rotation", "Add device fingerprinting"}, bundle.WorkTypes[0].Samples)

	assert.Equal(t, WorkBug, bundle.WorkTypes[1].WorkType)
	assert.Equal(t, 1, bundle.WorkTypes[1].Commits)
	assert.Equal(t, 1, bundle.WorkTypes[1].PullRequests)
	assert.Equal(t, []string{"fix: token refresh crash", "Harden token refresh"}, bundle.WorkTypes[1].Samples)

	assert.Equal(t, WorkDocumentation, bundle.WorkTypes[2].WorkType)
	assert.Equal(t, 1, bundle.WorkTypes[2].Issues)
}

func TestBuildRepositoryBundleSampleLimits(t *testing.T) {
	f := newEvidenceFixture(t)
	ctx := context.Background()
	repo := f.seedRepository(t, "wildside", "booking-engine")

	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	longSubject := "fix: " + strings.Repeat("x", 150)
	f.addCommit(t, repo.ID, longSubject+"\n\nBody.", start.Add(time.Minute))
	for i := 0; i < 7; i++ {
		f.addCommit(t, repo.ID, "fix: recurring timeout", start.Add(time.Duration(i+2)*time.Hour))
	}

	bundle, err := f.builder.BuildBundle(ctx, repo.ID, start, end)
	require.NoError(t, err)

	require.Len(t, bundle.WorkTypes, 1)
	grouping := bundle.WorkTypes[0]
	assert.Equal(t, WorkBug, grouping.WorkType)
	assert.Equal(t, 8, grouping.Commits)
	require.Len(t, grouping.Samples, 5)
	assert.Len(t, grouping.Samples[0], 100)
	assert.True(t, strings.HasPrefix(grouping.Samples[0], "fix: xxx"))
}

func TestBuildRepositoryBundlePreviousReports(t *testing.T) {
	f := newEvidenceFixture(t)
	ctx := context.Background()
	repo := f.seedRepository(t, "wildside", "events-pipeline")

	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	weekBefore := func(n int) (time.Time, time.Time) {
		e := start.AddDate(0, 0, -7*(n-1))
		return e.AddDate(0, 0, -7), e
	}

	var ids []string
	summaries := []string{
		`{"status":"on_track","summary":"Steady delivery"}`,
		`{"status":"AT_RISK","summary":"Backlog growing"}`,
		`not json`,
		`{"status":"blocked","summary":"Waiting on infra"}`,
	}
	for i, ms := range summaries {
		ws, we := weekBefore(i + 1)
		ids = append(ids, f.insertReport(t, goldReport{
			scope: "repository", repositoryID: repo.ID,
			windowStart: ws, windowEnd: we, generatedAt: we.Add(time.Hour),
			machineSummary: ms,
		}))
	}
	// Coverage rows for the newest prior report
	for i := 0; i < 4; i++ {
		_, err := f.goldConn.Exec(`INSERT INTO report_coverage (report_id, event_fact_id) VALUES (?, ?)`,
			ids[0], uuid.NewString())
		require.NoError(t, err)
	}
	// A report whose window ends after our start must not appear
	f.insertReport(t, goldReport{
		scope: "repository", repositoryID: repo.ID,
		windowStart: start, windowEnd: end, generatedAt: end,
		machineSummary: `{"status":"on_track","summary":"Future"}`,
	})

	bundle, err := f.builder.BuildBundle(ctx, repo.ID, start, end)
	require.NoError(t, err)

	require.Len(t, bundle.PreviousReports, 3)
	assert.True(t, bundle.HasPreviousContext())

	newest := bundle.PreviousReports[0]
	assert.Equal(t, ids[0], newest.ReportID)
	assert.Equal(t, domain.StatusOnTrack, newest.Status)
	assert.Equal(t, "Steady delivery", newest.Summary)
	assert.Equal(t, 4, newest.CoverageCount)

	assert.Equal(t, domain.StatusAtRisk, bundle.PreviousReports[1].Status)
	assert.Equal(t, "Backlog growing", bundle.PreviousReports[1].Summary)

	// Malformed machine summaries degrade to unknown
	assert.Equal(t, domain.StatusUnknown, bundle.PreviousReports[2].Status)
	assert.Empty(t, bundle.PreviousReports[2].Summary)
}

func TestBuildRepositoryBundleMissingRepository(t *testing.T) {
	f := newEvidenceFixture(t)

	_, err := f.builder.BuildBundle(context.Background(), uuid.NewString(),
		time.Now().UTC().AddDate(0, 0, -7), time.Now().UTC())

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "repository", notFound.Kind)
}

func TestBuildRepositoryBundleEmptyWindow(t *testing.T) {
	f := newEvidenceFixture(t)
	repo := f.seedRepository(t, "wildside", "cabin-booker")

	start := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	bundle, err := f.builder.BuildBundle(context.Background(), repo.ID, start, start.AddDate(0, 0, 7))
	require.NoError(t, err)

	assert.Zero(t, bundle.TotalEventCount())
	assert.Empty(t, bundle.Commits)
	assert.Empty(t, bundle.WorkTypes)
	assert.False(t, bundle.HasPreviousContext())
}

func timePtr(ts time.Time) *time.Time {
	return &ts
}

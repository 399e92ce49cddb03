package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/evidence"
	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/internal/modules/reporting"
	testingpkg "github.com/wildside/ghillie/internal/testing"
)

const trailheadCatalogue = `version: 1
projects:
  - key: trailhead
    name: Trailhead
    components:
      - key: trail-api
        name: Trail API
        type: service
        repository:
          owner: wildside
          name: trail-api
`

const badTypeCatalogue = `version: 1
projects:
  - key: trailhead
    name: Trailhead
    components:
      - key: trail-api
        name: Trail API
        type: mainframe
`

type serverFixture struct {
	router   http.Handler
	estates  *catalogue.EstateRepository
	registry *registry.Service
	activity *evidence.EvidenceRepository
	goldDB   *database.DB
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	catalogueDB, cleanupCat := testingpkg.NewTestDB(t, database.NameCatalogue)
	t.Cleanup(cleanupCat)
	silverDB, cleanupSilver := testingpkg.NewTestDB(t, database.NameSilver)
	t.Cleanup(cleanupSilver)
	goldDB, cleanupGold := testingpkg.NewTestDB(t, database.NameGold)
	t.Cleanup(cleanupGold)

	log := zerolog.Nop()
	conn := catalogueDB.Conn()
	estates := catalogue.NewEstateRepository(conn, log)
	projects := catalogue.NewProjectRepository(conn, log)
	components := catalogue.NewComponentRepository(conn, log)
	edges := catalogue.NewComponentEdgeRepository(conn, log)
	repoRecords := catalogue.NewRepoRecordRepository(conn, log)
	importRecords := catalogue.NewImportRecordRepository(conn, log)

	importer := catalogue.NewImporter(catalogueDB,
		estates, projects, components, edges, repoRecords, importRecords, nil, log)

	repos := registry.NewRepoRepository(silverDB.Conn(), log)
	registrySvc := registry.NewService(silverDB, repos, estates, components, repoRecords, nil, log)

	activity := evidence.NewEvidenceRepository(silverDB.Conn(), log)
	history := evidence.NewReportHistoryRepository(goldDB.Conn(), log)
	builder := evidence.NewRepoBundleBuilder(repos, activity, history, 3, log)
	reports := reporting.NewReportRepository(goldDB.Conn(), log)
	coverage := reporting.NewCoverageRepository(goldDB.Conn(), log)
	reviews := reporting.NewReviewRepository(goldDB.Conn(), log)
	orch := reporting.NewOrchestrator(goldDB, reports, coverage, reviews,
		builder, repos, reporting.StubModel{}, nil, nil, reporting.Config{}, log)

	srv := New(Config{
		Log:     log,
		Port:    0,
		DevMode: true,
		DataDir: t.TempDir(),
		Databases: map[string]*database.DB{
			database.NameCatalogue: catalogueDB,
			database.NameSilver:    silverDB,
			database.NameGold:      goldDB,
		},
		Estates:      estates,
		Importer:     importer,
		Registry:     registrySvc,
		Orchestrator: orch,
		Reports:      reports,
		Reviews:      reviews,
	})

	return &serverFixture{
		router:   srv.Router(),
		estates:  estates,
		registry: registrySvc,
		activity: activity,
		goldDB:   goldDB,
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out),
		"body was: %s", rec.Body.String())
}

// importTrailhead imports and syncs the single-repository catalogue so
// registry and reporting endpoints have a wildside/trail-api row to hit
func (f *serverFixture) importTrailhead(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/estates/wildside/import", strings.NewReader(trailheadCatalogue))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/api/estates/wildside/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// addActivity seeds one commit plus its event fact inside the last day,
// making the repository's next reporting window non-empty
func (f *serverFixture) addActivity(t *testing.T, repoID string) {
	t.Helper()
	ctx := context.Background()
	at := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, f.activity.InsertCommit(ctx, &evidence.Commit{
		ID:           uuid.NewString(),
		RepositoryID: repoID,
		SHA:          uuid.NewString()[:8],
		Message:      "feat: add trail search",
		Author:       "dev",
		CommittedAt:  at,
	}))
	require.NoError(t, f.activity.InsertEventFact(ctx, &evidence.EventFact{
		ID:           uuid.NewString(),
		RepositoryID: repoID,
		EventType:    "commit",
		Source:       "github",
		OccurredAt:   at,
	}))
}

func (f *serverFixture) repoID(t *testing.T, slug string) string {
	t.Helper()
	repo, err := f.registry.GetRepositoryBySlug(context.Background(), slug)
	require.NoError(t, err)
	require.NotNil(t, repo)
	return repo.ID
}

func TestHealthReportsAllDatabases(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status    string            `json:"status"`
		Service   string            `json:"service"`
		Databases map[string]string `json:"databases"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ghillie", body.Service)
	require.Len(t, body.Databases, 3)
	for name, state := range body.Databases {
		assert.Equal(t, "ok", state, "database %s", name)
	}
}

func TestHealthDegradesWhenDatabaseCloses(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, f.goldDB.Close())

	rec := f.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status    string            `json:"status"`
		Databases map[string]string `json:"databases"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, "degraded", body.Status)
	assert.NotEqual(t, "ok", body.Databases[database.NameGold])
	assert.Equal(t, "ok", body.Databases[database.NameSilver])
}

func TestSystemStatusIncludesDatabaseStats(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/system/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body SystemStatus
	decodeJSON(t, rec, &body)
	assert.GreaterOrEqual(t, body.UptimeSeconds, int64(0))
	assert.Greater(t, body.Goroutines, 0)
	require.Len(t, body.Databases, 3)
	for name, db := range body.Databases {
		assert.Greater(t, db.SizeBytes, int64(0), "database %s", name)
		assert.Greater(t, db.PageCount, int64(0), "database %s", name)
	}
}

func TestImportCreatesEstate(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/estates/wildside/import?commit_sha=abc123", strings.NewReader(trailheadCatalogue))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result catalogue.ImportResult
	decodeJSON(t, rec, &result)
	assert.Equal(t, "wildside", result.EstateKey)
	assert.Equal(t, "abc123", result.CommitSHA)
	assert.False(t, result.Skipped)
	assert.Equal(t, 1, result.Projects.Created)
	assert.Equal(t, 1, result.Components.Created)
	assert.Equal(t, 1, result.Repositories.Created)

	// Same commit again is a skip, not a duplicate import
	rec = f.do(t, http.MethodPost, "/api/estates/wildside/import?commit_sha=abc123", strings.NewReader(trailheadCatalogue))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &result)
	assert.True(t, result.Skipped)
}

func TestImportRejectsMalformedYAML(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/estates/wildside/import", strings.NewReader("{not yaml: ["))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Contains(t, body["error"], "failed to parse catalogue document")
}

func TestImportSurfacesValidationIssues(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/estates/wildside/import", strings.NewReader(badTypeCatalogue))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error  string   `json:"error"`
		Issues []string `json:"issues"`
	}
	decodeJSON(t, rec, &body)
	require.Len(t, body.Issues, 1)
	assert.Contains(t, body.Issues[0], "invalid type")
}

func TestSyncReturnsCounters(t *testing.T) {
	f := newServerFixture(t)
	rec := f.do(t, http.MethodPost, "/api/estates/wildside/import", strings.NewReader(trailheadCatalogue))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/estates/wildside/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result registry.SyncResult
	decodeJSON(t, rec, &result)
	assert.Equal(t, "wildside", result.EstateKey)
	assert.Equal(t, 1, result.Created)
}

func TestSyncUnknownEstateIs404(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/estates/nowhere/sync", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Contains(t, body["error"], "nowhere")
}

func TestRegistryListAndToggle(t *testing.T) {
	f := newServerFixture(t)
	f.importTrailhead(t)

	rec := f.do(t, http.MethodGet, "/api/registry/repositories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Repositories []registry.RepoInfo `json:"repositories"`
		Count        int                 `json:"count"`
	}
	decodeJSON(t, rec, &listing)
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, "wildside/trail-api", listing.Repositories[0].Slug)
	assert.True(t, listing.Repositories[0].IngestionEnabled)

	rec = f.do(t, http.MethodPost, "/api/registry/repositories/wildside/trail-api/disable", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var toggle map[string]bool
	decodeJSON(t, rec, &toggle)
	assert.True(t, toggle["changed"])

	// Active listing now empty, the full listing still has the row
	rec = f.do(t, http.MethodGet, "/api/registry/repositories", nil)
	decodeJSON(t, rec, &listing)
	assert.Equal(t, 0, listing.Count)

	rec = f.do(t, http.MethodGet, "/api/registry/repositories?active=false", nil)
	decodeJSON(t, rec, &listing)
	assert.Equal(t, 1, listing.Count)

	// Disabling twice changes nothing
	rec = f.do(t, http.MethodPost, "/api/registry/repositories/wildside/trail-api/disable", nil)
	decodeJSON(t, rec, &toggle)
	assert.False(t, toggle["changed"])
}

func TestRegistryListRejectsNegativePagination(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/registry/repositories?limit=-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Contains(t, body["error"], "pagination")
}

func TestRegistryGetUnknownRepositoryIs404(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/registry/repositories/wildside/ghost", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/registry/repositories/wildside/ghost/enable", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRepositoryReportRunAndList(t *testing.T) {
	f := newServerFixture(t)
	f.importTrailhead(t)
	f.addActivity(t, f.repoID(t, "wildside/trail-api"))

	rec := f.do(t, http.MethodPost, "/api/repositories/wildside/trail-api/reports/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report reporting.Report
	decodeJSON(t, rec, &report)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "stub", report.Model)

	rec = f.do(t, http.MethodGet, "/api/repositories/wildside/trail-api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Reports []reporting.Report `json:"reports"`
		Count   int                `json:"count"`
	}
	decodeJSON(t, rec, &listing)
	require.Equal(t, 1, listing.Count)
	assert.Equal(t, report.ID, listing.Reports[0].ID)
}

func TestRepositoryReportRunSkipsEmptyWindow(t *testing.T) {
	f := newServerFixture(t)
	f.importTrailhead(t)

	rec := f.do(t, http.MethodPost, "/api/repositories/wildside/trail-api/reports/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	decodeJSON(t, rec, &body)
	assert.True(t, body["skipped"])
}

func TestRepositoryReportRunUnknownRepositoryIs404(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/repositories/wildside/ghost/reports/run", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportRunRejectsMalformedAsOf(t *testing.T) {
	f := newServerFixture(t)
	f.importTrailhead(t)

	rec := f.do(t, http.MethodPost, "/api/repositories/wildside/trail-api/reports/run?as_of=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Contains(t, body["error"], "as_of")
}

func TestEstateReportRun(t *testing.T) {
	f := newServerFixture(t)
	f.importTrailhead(t)
	f.addActivity(t, f.repoID(t, "wildside/trail-api"))

	rec := f.do(t, http.MethodPost, "/api/estates/wildside/reports/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body estateRunBody
	decodeJSON(t, rec, &body)
	assert.Equal(t, 1, body.Generated)
	assert.Equal(t, 0, body.Skipped)
	assert.Empty(t, body.Failures)
}

func TestEstateReportRunUnknownEstateIs404(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/estates/nowhere/reports/run", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewsEmptyByDefault(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/reviews", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Reviews []reporting.ReviewMarker `json:"reviews"`
		Count   int                      `json:"count"`
	}
	decodeJSON(t, rec, &body)
	assert.Equal(t, 0, body.Count)
}

func TestLivenessOutsideAPIPrefix(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

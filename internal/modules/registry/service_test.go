package registry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/database"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	testingpkg "github.com/wildside/ghillie/internal/testing"
)

type registryFixture struct {
	service  *Service
	importer *catalogue.Importer
	repos    *RepoRepository
	estates  *catalogue.EstateRepository
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()

	catalogueDB, cleanupCat := testingpkg.NewTestDB(t, database.NameCatalogue)
	t.Cleanup(cleanupCat)
	silverDB, cleanupSilver := testingpkg.NewTestDB(t, database.NameSilver)
	t.Cleanup(cleanupSilver)

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

	repos := NewRepoRepository(silverDB.Conn(), log)
	service := NewService(silverDB, repos, estates, components, repoRecords, nil, log)

	return &registryFixture{service: service, importer: importer, repos: repos, estates: estates}
}

func (f *registryFixture) importWildside(t *testing.T, mutate func(*document.Catalogue), sha string) {
	t.Helper()
	cat, err := document.LoadFile("testdata/wildside.yaml")
	require.NoError(t, err)
	if mutate != nil {
		mutate(cat)
	}
	_, err = f.importer.Import(context.Background(), "wildside", cat, sha)
	require.NoError(t, err)
}

func TestSyncCreatesRowsFromCatalogue(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")

	res, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)
	assert.Equal(t, &SyncResult{EstateKey: "wildside", Created: 6}, res)

	rows, err := f.service.ListActiveRepositories(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 6)

	// Ordered by owner then name
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Name
	}
	assert.Equal(t, []string{
		"api-gateway", "booking-engine", "events-pipeline",
		"identity-service", "insights-ui", "notifications",
	}, names)

	for _, row := range rows {
		assert.Equal(t, "wildside", row.Owner)
		assert.True(t, row.IngestionEnabled)
		assert.NotNil(t, row.EstateID)
		assert.NotNil(t, row.CatalogueRepositoryID)
		assert.NotNil(t, row.LastSyncedAt)
	}

	identity := rows[3]
	assert.Equal(t, "trunk", identity.DefaultBranch)
	assert.Equal(t, []string{"docs/auth.md"}, identity.DocumentationPaths)
}

func TestSyncIsIdempotent(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")

	_, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)

	res, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)
	assert.Equal(t, &SyncResult{EstateKey: "wildside"}, res)
}

func TestSyncDeactivatesRemovedRepositoryButKeepsRow(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")

	_, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)

	f.importWildside(t, func(cat *document.Catalogue) {
		platform := &cat.Projects[0]
		platform.Components = platform.Components[:3] // drop notifications
		platform.Components[2].EmitsEventsTo = nil
	}, "sha-2")

	res, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deactivated)
	assert.Equal(t, 0, res.Created)

	// The row survives with ingestion off so its history stays reachable
	all, err := f.service.ListAllRepositories(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	active, err := f.service.ListActiveRepositories(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, active, 5)

	row, err := f.service.GetRepositoryBySlug(ctx, "wildside/notifications")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.IngestionEnabled)
}

func TestSyncDisablesIngestionForDeprecatedComponent(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")

	_, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)

	f.importWildside(t, func(cat *document.Catalogue) {
		cat.Projects[0].Components[1].Lifecycle = document.LifecycleDeprecated
	}, "sha-2")

	res, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	row, err := f.service.GetRepositoryBySlug(ctx, "wildside/identity-service")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.False(t, row.IngestionEnabled)
}

func TestSyncLeavesAdHocRowsAlone(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")

	estate, err := f.estates.GetByKey(ctx, "wildside")
	require.NoError(t, err)
	require.NotNil(t, estate)

	adhoc := &RepoInfo{
		ID:               "adhoc-1",
		Owner:            "contractor",
		Name:             "side-tool",
		Slug:             "contractor/side-tool",
		DefaultBranch:    "main",
		EstateID:         &estate.ID,
		IngestionEnabled: true,
	}
	require.NoError(t, f.repos.CreateTx(ctx, testingpkg.GetRawConnection(f.service.silverDB), adhoc))

	res, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)
	assert.Equal(t, 6, res.Created)
	assert.Equal(t, 0, res.Deactivated)

	row, err := f.service.GetRepositoryBySlug(ctx, "contractor/side-tool")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.IngestionEnabled)
	assert.Nil(t, row.CatalogueRepositoryID)
}

func TestSyncUnknownEstateFails(t *testing.T) {
	f := newRegistryFixture(t)

	_, err := f.service.SyncFromCatalogue(context.Background(), "ghost")
	require.Error(t, err)

	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, "ghost", syncErr.EstateKey)
}

func TestIngestionToggles(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")
	_, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)

	changed, err := f.service.DisableIngestion(ctx, "wildside", "api-gateway")
	require.NoError(t, err)
	assert.True(t, changed)

	// Second disable is a no-op
	changed, err = f.service.DisableIngestion(ctx, "wildside", "api-gateway")
	require.NoError(t, err)
	assert.False(t, changed)

	active, err := f.service.ListActiveRepositories(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, active, 5)

	changed, err = f.service.EnableIngestion(ctx, "Wildside", "API-Gateway")
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = f.service.EnableIngestion(ctx, "wildside", "missing")
	var notFound *RepositoryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestListPagination(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")
	_, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)

	page, err := f.service.ListActiveRepositories(ctx, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "booking-engine", page[0].Name)
	assert.Equal(t, "events-pipeline", page[1].Name)

	_, err = f.service.ListActiveRepositories(ctx, ListOptions{Limit: -1})
	var pageErr *NegativePaginationError
	require.ErrorAs(t, err, &pageErr)

	_, err = f.service.ListAllRepositories(ctx, ListOptions{Offset: -3})
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, -3, pageErr.Offset)
}

func TestGetRepositoryBySlug(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")
	_, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)

	row, err := f.service.GetRepositoryBySlug(ctx, "wildside/api-gateway")
	require.NoError(t, err)
	require.NotNil(t, row)

	// Lookup is case-insensitive
	row, err = f.service.GetRepositoryBySlug(ctx, "Wildside/API-Gateway")
	require.NoError(t, err)
	assert.NotNil(t, row)

	for _, slug := range []string{"nonsense", "a/b/c", "/x", "x/", ""} {
		row, err = f.service.GetRepositoryBySlug(ctx, slug)
		require.NoError(t, err)
		assert.Nil(t, row, "slug %q should resolve to nothing", slug)
	}
}

func TestSyncRestoresManualDisable(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	f.importWildside(t, nil, "sha-1")
	_, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)

	_, err = f.service.DisableIngestion(ctx, "wildside", "api-gateway")
	require.NoError(t, err)

	// Sync mirrors the catalogue, so a still-active component wins over a
	// manual toggle
	res, err := f.service.SyncFromCatalogue(ctx, "wildside")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	row, err := f.service.GetRepositoryBySlug(ctx, "wildside/api-gateway")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.IngestionEnabled)
}

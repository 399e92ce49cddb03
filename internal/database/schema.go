package database

// schemaDDL maps database names to their schema definitions. All statements
// are idempotent so Migrate can run on every startup.
var schemaDDL = map[string]string{
	NameCatalogue: catalogueSchema,
	NameSilver:    silverSchema,
	NameGold:      goldSchema,
}

// catalogueSchema holds the projection of the declarative estate catalogue.
// The importer owns every table here; timestamps are unix nanoseconds UTC.
const catalogueSchema = `
CREATE TABLE IF NOT EXISTS estates (
    id         TEXT PRIMARY KEY,
    key        TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
    id                  TEXT PRIMARY KEY,
    estate_id           TEXT NOT NULL REFERENCES estates(id) ON DELETE CASCADE,
    key                 TEXT NOT NULL,
    name                TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    programme           TEXT NOT NULL DEFAULT '',
    noise               TEXT NOT NULL DEFAULT '{}',
    status_preferences  TEXT NOT NULL DEFAULT '{}',
    documentation_paths TEXT NOT NULL DEFAULT '[]',
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL,
    UNIQUE (estate_id, key)
);

CREATE TABLE IF NOT EXISTS repository_records (
    id                  TEXT PRIMARY KEY,
    owner               TEXT NOT NULL,
    name                TEXT NOT NULL,
    slug                TEXT NOT NULL UNIQUE,
    default_branch      TEXT NOT NULL DEFAULT 'main',
    documentation_paths TEXT NOT NULL DEFAULT '[]',
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS components (
    id            TEXT PRIMARY KEY,
    project_id    TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    key           TEXT NOT NULL,
    name          TEXT NOT NULL,
    type          TEXT NOT NULL DEFAULT 'service',
    lifecycle     TEXT NOT NULL DEFAULT 'active',
    description   TEXT NOT NULL DEFAULT '',
    repository_id TEXT REFERENCES repository_records(id) ON DELETE SET NULL,
    notes         TEXT NOT NULL DEFAULT '[]',
    position      INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL,
    UNIQUE (project_id, key)
);

CREATE INDEX IF NOT EXISTS idx_components_project ON components(project_id);
CREATE INDEX IF NOT EXISTS idx_components_repository ON components(repository_id);

CREATE TABLE IF NOT EXISTS component_edges (
    id                TEXT PRIMARY KEY,
    from_component_id TEXT NOT NULL REFERENCES components(id) ON DELETE CASCADE,
    to_component_id   TEXT NOT NULL REFERENCES components(id) ON DELETE CASCADE,
    relationship      TEXT NOT NULL,
    kind              TEXT NOT NULL DEFAULT 'runtime',
    rationale         TEXT NOT NULL DEFAULT '',
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,
    UNIQUE (from_component_id, to_component_id, relationship)
);

CREATE INDEX IF NOT EXISTS idx_component_edges_from ON component_edges(from_component_id);

CREATE TABLE IF NOT EXISTS catalogue_imports (
    id          TEXT PRIMARY KEY,
    estate_id   TEXT NOT NULL REFERENCES estates(id) ON DELETE CASCADE,
    commit_sha  TEXT NOT NULL,
    imported_at INTEGER NOT NULL,
    UNIQUE (estate_id, commit_sha)
);
`

// silverSchema holds the operational ingestion layer. The registry
// synchroniser owns the repositories table; the event tables are written by
// ingestion and read-only here.
const silverSchema = `
CREATE TABLE IF NOT EXISTS repositories (
    id                      TEXT PRIMARY KEY,
    owner                   TEXT NOT NULL,
    name                    TEXT NOT NULL,
    slug                    TEXT NOT NULL,
    default_branch          TEXT NOT NULL DEFAULT 'main',
    estate_id               TEXT,
    catalogue_repository_id TEXT,
    ingestion_enabled       INTEGER NOT NULL DEFAULT 0,
    documentation_paths     TEXT NOT NULL DEFAULT '[]',
    last_synced_at          INTEGER,
    created_at              INTEGER NOT NULL,
    updated_at              INTEGER NOT NULL,
    UNIQUE (slug, estate_id)
);

CREATE INDEX IF NOT EXISTS idx_repositories_estate ON repositories(estate_id);
CREATE INDEX IF NOT EXISTS idx_repositories_catalogue ON repositories(catalogue_repository_id);

CREATE TABLE IF NOT EXISTS event_facts (
    id            TEXT PRIMARY KEY,
    repository_id TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
    event_type    TEXT NOT NULL,
    source        TEXT NOT NULL DEFAULT '',
    occurred_at   INTEGER NOT NULL,
    payload       TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_event_facts_repo_time ON event_facts(repository_id, occurred_at);

CREATE TABLE IF NOT EXISTS commits (
    id            TEXT PRIMARY KEY,
    repository_id TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
    sha           TEXT NOT NULL,
    message       TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    committed_at  INTEGER NOT NULL,
    UNIQUE (repository_id, sha)
);

CREATE INDEX IF NOT EXISTS idx_commits_repo_time ON commits(repository_id, committed_at);

CREATE TABLE IF NOT EXISTS pull_requests (
    id            TEXT PRIMARY KEY,
    repository_id TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
    number        INTEGER NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    state         TEXT NOT NULL DEFAULT 'open',
    labels        TEXT NOT NULL DEFAULT '[]',
    created_at    INTEGER NOT NULL,
    merged_at     INTEGER,
    closed_at     INTEGER,
    UNIQUE (repository_id, number)
);

CREATE INDEX IF NOT EXISTS idx_pull_requests_repo_created ON pull_requests(repository_id, created_at);

CREATE TABLE IF NOT EXISTS issues (
    id            TEXT PRIMARY KEY,
    repository_id TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
    number        INTEGER NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    state         TEXT NOT NULL DEFAULT 'open',
    labels        TEXT NOT NULL DEFAULT '[]',
    created_at    INTEGER NOT NULL,
    closed_at     INTEGER,
    UNIQUE (repository_id, number)
);

CREATE INDEX IF NOT EXISTS idx_issues_repo_created ON issues(repository_id, created_at);

CREATE TABLE IF NOT EXISTS documentation_changes (
    id            TEXT PRIMARY KEY,
    repository_id TEXT NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
    path          TEXT NOT NULL,
    change_type   TEXT NOT NULL DEFAULT 'modified',
    summary       TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    occurred_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documentation_changes_repo_time ON documentation_changes(repository_id, occurred_at);
`

// goldSchema holds the reporting layer. The orchestrator owns every table.
// References into catalogue and silver are opaque string IDs, never SQL
// foreign keys, so the three databases stay independently relocatable.
const goldSchema = `
CREATE TABLE IF NOT EXISTS reports (
    id                TEXT PRIMARY KEY,
    scope             TEXT NOT NULL,
    repository_id     TEXT,
    project_id        TEXT,
    estate_id         TEXT,
    window_start      INTEGER NOT NULL,
    window_end        INTEGER NOT NULL,
    generated_at      INTEGER NOT NULL,
    model             TEXT NOT NULL DEFAULT '',
    human_text        TEXT,
    machine_summary   TEXT NOT NULL DEFAULT '{}',
    latency_ms        INTEGER,
    prompt_tokens     INTEGER,
    completion_tokens INTEGER,
    total_tokens      INTEGER,
    CHECK (window_end > window_start)
);

CREATE INDEX IF NOT EXISTS idx_reports_repo_window ON reports(repository_id, window_end);
CREATE INDEX IF NOT EXISTS idx_reports_repo_generated ON reports(repository_id, generated_at);

CREATE TABLE IF NOT EXISTS report_projects (
    report_id   TEXT PRIMARY KEY REFERENCES reports(id) ON DELETE CASCADE,
    project_key TEXT NOT NULL,
    estate_id   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_report_projects_key ON report_projects(project_key, estate_id);

CREATE TABLE IF NOT EXISTS report_coverage (
    report_id     TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    event_fact_id TEXT NOT NULL,
    PRIMARY KEY (report_id, event_fact_id)
);

CREATE TABLE IF NOT EXISTS report_reviews (
    id            TEXT PRIMARY KEY,
    repository_id TEXT NOT NULL,
    window_start  INTEGER NOT NULL,
    window_end    INTEGER NOT NULL,
    state         TEXT NOT NULL DEFAULT 'pending',
    attempt_count INTEGER NOT NULL DEFAULT 0,
    issues        TEXT NOT NULL DEFAULT '[]',
    created_at    INTEGER NOT NULL,
    updated_at    INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_report_reviews_pending
    ON report_reviews(repository_id, window_start, window_end)
    WHERE state = 'pending';
`

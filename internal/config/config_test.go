package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBaseEnv pins the data directory to a temp dir and clears the
// variables that would otherwise leak in from the host environment
func setBaseEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GHILLIE_DATA_DIR", dir)
	t.Setenv("GHILLIE_MODEL_PROVIDER", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GHILLIE_CATALOGUE_DIR", "")
	t.Setenv("GHILLIE_REPORTING_WINDOW_DAYS", "")
	t.Setenv("GHILLIE_VALIDATION_MAX_ATTEMPTS", "")
	t.Setenv("GHILLIE_PORT", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8090, cfg.Port)
	assert.False(t, cfg.DevMode)

	assert.Equal(t, 7, cfg.Reporting.WindowDays)
	assert.Equal(t, 2, cfg.Reporting.ValidationMaxAttempts)
	assert.Equal(t, 3, cfg.Reporting.MaxPreviousReports)
	assert.Equal(t, 10, cfg.Reporting.MaxConcurrentReports)

	assert.Equal(t, "stub", cfg.Model.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Model.ModelID)
	assert.Equal(t, 60, cfg.Model.TimeoutSeconds)

	assert.Equal(t, "0 0 6 * * *", cfg.Schedules.Reporting)
	assert.Equal(t, "0 30 * * * *", cfg.Schedules.RegistrySync)
	assert.Equal(t, "0 */5 * * * *", cfg.Schedules.Watch)
	assert.Equal(t, "0 0 3 * * *", cfg.Schedules.Backup)
	assert.Equal(t, 30, cfg.Backup.RetentionDays)

	assert.False(t, cfg.S3.Enabled())
}

func TestLoadCreatesMissingDataDir(t *testing.T) {
	setBaseEnv(t)
	dir := filepath.Join(t.TempDir(), "nested", "data")
	t.Setenv("GHILLIE_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.DirExists(t, cfg.DataDir)
}

func TestLoadIgnoresMalformedIntegers(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GHILLIE_PORT", "not-a-port")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8090, cfg.Port)
}

func TestLoadRejectsNonPositiveWindow(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GHILLIE_REPORTING_WINDOW_DAYS", "-3")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GHILLIE_REPORTING_WINDOW_DAYS")
}

func TestLoadRejectsNonPositiveMaxAttempts(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GHILLIE_VALIDATION_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GHILLIE_VALIDATION_MAX_ATTEMPTS")
}

func TestLoadRequiresAPIKeyForAnthropicProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GHILLIE_MODEL_PROVIDER", "anthropic")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Model.Provider)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
}

func TestLoadRequiresEstateForWatcher(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("GHILLIE_CATALOGUE_DIR", t.TempDir())
	t.Setenv("GHILLIE_CATALOGUE_ESTATE", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GHILLIE_CATALOGUE_ESTATE")

	t.Setenv("GHILLIE_CATALOGUE_ESTATE", "wildside")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "catalogue.yaml", cfg.Watcher.CatalogueFile)
	assert.Equal(t, "wildside", cfg.Watcher.EstateKey)
}

func TestDatabasePath(t *testing.T) {
	dir := setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gold.db"), cfg.DatabasePath("gold"))
}

func TestS3Enabled(t *testing.T) {
	cfg := S3Config{Bucket: "ghillie", AccessKey: "key", SecretKey: "secret"}
	assert.True(t, cfg.Enabled())

	assert.False(t, S3Config{Bucket: "ghillie"}.Enabled())
	assert.False(t, S3Config{AccessKey: "key", SecretKey: "secret"}.Enabled())
}

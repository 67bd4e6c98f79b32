package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDashboardConfigDefaults(t *testing.T) {
	t.Setenv("DASHBOARD_CONFIG_FILE", "")

	cfg, err := LoadDashboardConfig()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.Polling.Deployments)
	assert.Equal(t, 30*time.Second, cfg.Polling.Firewall)
	assert.Equal(t, 30*time.Second, cfg.Polling.Project)
	assert.Equal(t, 5*time.Minute, cfg.Polling.Logs)
	assert.Equal(t, RefreshReportAggregate, cfg.RefreshReporting)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIURL)
}

func TestLoadDashboardConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dashboard.json")
	body := `{
		"addr": ":9000",
		"github": {"owner": "lumia-ai", "repo": "site", "token": "file-token"},
		"vercel": {"project_id": "prj_123"},
		"polling": {"logs": "2m"},
		"refresh_reporting": "per_source"
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("DASHBOARD_CONFIG_FILE", path)
	t.Setenv("GITHUB_TOKEN", "env-token")
	t.Setenv("POLL_FIREWALL_SECONDS", "45")

	cfg, err := LoadDashboardConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "lumia-ai", cfg.GitHub.Owner)
	assert.Equal(t, "site", cfg.GitHub.Repo)
	assert.Equal(t, "env-token", cfg.GitHub.Token, "environment overrides file values")
	assert.Equal(t, "prj_123", cfg.Vercel.ProjectID)
	assert.Equal(t, "https://api.vercel.com", cfg.Vercel.APIURL, "defaults survive a partial file")
	assert.Equal(t, 2*time.Minute, cfg.Polling.Logs)
	assert.Equal(t, 45*time.Second, cfg.Polling.Firewall)
	assert.Equal(t, RefreshReportPerSource, cfg.RefreshReporting)
}

func TestLoadDashboardConfigMissingFile(t *testing.T) {
	t.Setenv("DASHBOARD_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.json"))

	_, err := LoadDashboardConfig()
	require.Error(t, err)
}

func TestDashboardConfigValidate(t *testing.T) {
	cfg := DefaultDashboardConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.RefreshReporting = "loud"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Polling.Logs = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.UpstreamTimeout = -time.Second
	assert.Error(t, bad.Validate())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadFromEnvironment(t *testing.T) {
	cfg, err := Load("", envMap(map[string]string{
		EnvSourceURL:        "https://olukai-store-dev.myshopify.com/admin/api/2024-04/graphql.json",
		EnvSourceToken:      "src-token",
		EnvDestinationURL:   "https://kaenon-dev.myshopify.com/admin/api/2024-04/graphql.json",
		EnvDestinationToken: "dst-token",
	}))
	require.NoError(t, err)

	assert.Equal(t, "src-token", cfg.Source.Token)
	assert.Equal(t, "dst-token", cfg.Destination.Token)
	assert.Equal(t, "olukai-store-dev", cfg.StoreName)
	assert.Equal(t, DefaultSnapshotDir, cfg.SnapshotDir)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultRequestsPerSecond, cfg.RequestsPerSecond)
	require.NoError(t, cfg.Validate(true, true))
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metamigrate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  url: https://from-file.myshopify.com/admin/api/graphql.json
  token: file-token
destination:
  url: https://dest.myshopify.com/admin/api/graphql.json
  token: dest-token
snapshot_dir: /tmp/snapshots
page_size: 100
requests_per_second: 4
request_timeout: 30s
journal: /tmp/journal.db
`), 0644))

	cfg, err := Load(path, envMap(map[string]string{
		EnvSourceToken: "env-token",
		EnvStoreName:   "custom-name",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Source.Token, "environment wins over file")
	assert.Equal(t, "https://from-file.myshopify.com/admin/api/graphql.json", cfg.Source.URL)
	assert.Equal(t, "custom-name", cfg.StoreName)
	assert.Equal(t, "/tmp/snapshots", cfg.SnapshotDir)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 4.0, cfg.RequestsPerSecond)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/tmp/journal.db", cfg.JournalPath)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadInvalidRate(t *testing.T) {
	_, err := Load("", envMap(map[string]string{EnvRequestsPerSecond: "fast"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvRequestsPerSecond)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	err = cfg.Validate(true, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source store not configured")
	assert.Contains(t, err.Error(), "destination store not configured")
	assert.Contains(t, err.Error(), "store name unknown")

	cfg.StoreName = "local"
	assert.NoError(t, cfg.Validate(false, false), "offline commands need no stores")
}

func TestStoreNameFromURL(t *testing.T) {
	assert.Equal(t, "olukai-store-dev", StoreNameFromURL("https://olukai-store-dev.myshopify.com/admin/api/2024-04/graphql.json"))
	assert.Equal(t, "", StoreNameFromURL("http://localhost:8080/graphql"))
}

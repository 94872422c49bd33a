package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	require.NoError(t, config.Validate())
	assert.Equal(t, "sqlite", config.Storage.Type)
	assert.Equal(t, 15, config.Portal.MaxPages)
	assert.Equal(t, 15, config.Portal.WorkCategory)
	assert.Equal(t, 3, config.Search.MaxExtractURLs)
	assert.Equal(t, "ekap.kik.gov.tr", config.Search.ArchiveDomain)
	assert.False(t, config.Portal.HasCredentials())
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	base := writeConfigFile(t, "base.toml", `
[portal]
max_pages = 10
batch_size = 4

[storage.sqlite]
path = "/tmp/base.db"
`)
	override := writeConfigFile(t, "override.toml", `
[portal]
max_pages = 7
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 7, config.Portal.MaxPages)
	assert.Equal(t, 4, config.Portal.BatchSize)
	assert.Equal(t, "/tmp/base.db", config.Storage.SQLite.Path)
	// Untouched values keep their defaults
	assert.Equal(t, "2s", config.Portal.PageDelayMin)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("IHALEBUL_USERNAME", "user")
	t.Setenv("IHALEBUL_PASSWORD", "secret")
	t.Setenv("TAVILY_API_KEY", "tvly-key")
	t.Setenv("TENDERINTEL_PORTAL_MAX_PAGES", "3")
	t.Setenv("TENDERINTEL_LOG_OUTPUT", "stdout, file")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.True(t, config.Portal.HasCredentials())
	assert.Equal(t, "tvly-key", config.Search.APIKey)
	assert.Equal(t, 3, config.Portal.MaxPages)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
}

func TestLoadFromFiles_PrefixedEnvWinsOverLegacyName(t *testing.T) {
	t.Setenv("IHALEBUL_USERNAME", "legacy")
	t.Setenv("TENDERINTEL_PORTAL_USERNAME", "current")

	config, err := LoadFromFiles()
	require.NoError(t, err)
	assert.Equal(t, "current", config.Portal.Username)
}

func TestLoadFromFiles_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown storage type", "[storage]\ntype = \"mysql\"\n"},
		{"postgres without dsn", "[storage]\ntype = \"postgres\"\n"},
		{"inverted delay range", "[portal]\npage_delay_min = \"5s\"\npage_delay_max = \"2s\"\n"},
		{"bad duration", "[portal]\nlist_delay_min = \"soon\"\n"},
		{"zero page cap", "[portal]\nmax_pages = 0\n"},
		{"bad cron", "[schedule]\nbatch = \"every day\"\n"},
		{"malformed toml", "[portal\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, "bad.toml", tt.content)
			_, err := LoadFromFiles(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeConfigFile(t, ".env", "TENDERINTEL_DOTENV_PROBE=loaded\n")
	t.Cleanup(func() { os.Unsetenv("TENDERINTEL_DOTENV_PROBE") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("TENDERINTEL_DOTENV_PROBE"))

	// Missing file is silently ignored
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, ParseDuration("3s", time.Second))
	assert.Equal(t, time.Second, ParseDuration("", time.Second))
	assert.Equal(t, time.Second, ParseDuration("bogus", time.Second))

	lo, hi := DelayRange("2s", "5s", time.Second)
	assert.Equal(t, 2*time.Second, lo)
	assert.Equal(t, 5*time.Second, hi)
}

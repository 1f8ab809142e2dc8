package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SQLITE_DB_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./sitecounts.db", cfg.Database.Path)
	assert.Equal(t, "en", cfg.Site.Locale)
	assert.Equal(t, "UTC", cfg.Site.Timezone)
	assert.Equal(t, "main", cfg.Webhook.Branch)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.Empty(t, cfg.File)
}

func TestLoad_SQLitePathEnvIsDefault(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SQLITE_DB_PATH", "/var/lib/sitecounts/content.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sitecounts/content.db", cfg.Database.Path)
}

func TestLoad_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
server:
  port: 9090
  shutdownTimeout: 10s
site:
  locale: pt-BR
  timezone: America/Sao_Paulo
  baseURL: https://example.test
content:
  dir: ./posts
  watch: true
log:
  level: debug
`)
	t.Setenv("SITECOUNTS_SERVER_PORT", "7070")
	t.Setenv("SITECOUNTS_WEBHOOK_SECRET", "hush")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port, "environment overrides the file")
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "pt-BR", cfg.Site.Locale)
	assert.Equal(t, "https://example.test", cfg.Site.BaseURL)
	assert.Equal(t, "./posts", cfg.Content.Dir)
	assert.True(t, cfg.Content.Watch)
	assert.Equal(t, "hush", cfg.Webhook.Secret)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.Equal(t, path, cfg.File)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "port out of range", body: "server:\n  port: 70000\n"},
		{name: "unknown timezone", body: "site:\n  timezone: Mars/Olympus\n"},
		{name: "bad base url", body: "site:\n  baseURL: not a url\n"},
		{name: "bad log level", body: "log:\n  level: loud\n"},
		{name: "tracing without endpoint", body: "tracing:\n  enabled: true\n  endpoint: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

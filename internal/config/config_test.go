package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8484", cfg.Listen)
	assert.Equal(t, "./wekker.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Sync.IntervalMinutes)
	assert.Equal(t, 48, cfg.Sync.HorizonHours)
	assert.Equal(t, "ics", cfg.Source.Type)
}

func TestLoadFromFile(t *testing.T) {
	content := `
listen: ":9000"
db:
  path: "/tmp/wekker-test.db"
sync:
  intervalminutes: 10
  horizonhours: 24
  calendars:
    - work
source:
  type: ics
  ics:
    - id: work
      url: https://example.com/work.ics
`
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "/tmp/wekker-test.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.Sync.IntervalMinutes)
	assert.Equal(t, 24, cfg.Sync.HorizonHours)
	assert.Equal(t, []string{"work"}, cfg.Sync.Calendars)
	require.Len(t, cfg.Source.ICS, 1)
	assert.Equal(t, "work", cfg.Source.ICS[0].Id)
	assert.Equal(t, "https://example.com/work.ics", cfg.Source.ICS[0].Url)
}

func TestEnvOverridesFile(t *testing.T) {
	content := `
listen: ":9000"
`
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("WEKKER_LISTEN", ":7777")
	t.Setenv("WEKKER_DB_PATH", "/tmp/override.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.Listen)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
}

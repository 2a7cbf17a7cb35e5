package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alexanderramin/rollup/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ROLLUP_DB", "ROLLUP_DB_DRIVER", "ROLLUP_DB_DSN", "ROLLUP_LOG_MODE",
		"ROLLUP_PROPAGATING_STATES",
	} {
		t.Setenv(k, "")
	}
	// t.Setenv cannot unset; LookupEnv must see it missing.
	prev, had := os.LookupEnv("ROLLUP_DEFAULT_SEGMENT")
	require.NoError(t, os.Unsetenv("ROLLUP_DEFAULT_SEGMENT"))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv("ROLLUP_DEFAULT_SEGMENT", prev)
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.NotEmpty(t, cfg.DB.Path)
	assert.Equal(t, domain.DefaultPropagatingStates, cfg.PropagatingStates)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rollup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db:
  driver: postgres
  dsn: postgres://localhost/rollup?sslmode=disable
log_mode: prod
default_segment: emea
propagating_states: [canceled]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://localhost/rollup?sslmode=disable", cfg.DB.DSN)
	assert.Equal(t, "prod", cfg.LogMode)
	assert.Equal(t, "emea", cfg.DefaultSegment)
	assert.Equal(t, []domain.State{domain.StateCanceled}, cfg.PropagatingStates)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "rollup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db:\n  path: /tmp/from-file.db\n"), 0o644))

	t.Setenv("ROLLUP_DB", "/tmp/from-env.db")
	t.Setenv("ROLLUP_LOG_MODE", "dev")
	t.Setenv("ROLLUP_DEFAULT_SEGMENT", "apac")
	t.Setenv("ROLLUP_PROPAGATING_STATES", "canceled, archived")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.DB.Path)
	assert.Equal(t, "dev", cfg.LogMode)
	assert.Equal(t, "apac", cfg.DefaultSegment)
	assert.Equal(t, []domain.State{domain.StateCanceled, domain.StateArchived}, cfg.PropagatingStates)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: [unclosed"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.DB.Driver = "mysql" }, `unknown db driver "mysql"`},
		{"postgres without dsn", func(c *Config) { c.DB.Driver = DriverPostgres }, "db.dsn is required"},
		{"sqlite without path", func(c *Config) { c.DB.Path = "" }, "db.path is required"},
		{"state unknown to tasks", func(c *Config) {
			c.PropagatingStates = []domain.State{domain.StateRejected}
		}, `propagating state "rejected" is not defined for task`},
		{"made up state", func(c *Config) {
			c.PropagatingStates = []domain.State{"paused"}
		}, `"paused" is not defined for project`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

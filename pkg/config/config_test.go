package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "1.2.3")
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "analytics", cfg.Target.Schema)
	assert.Equal(t, 4, cfg.Refresh.Workers)
	assert.Equal(t, 600, cfg.Refresh.TableTimeoutSeconds)
	assert.Equal(t, "postgres", cfg.Source.Driver)
	assert.True(t, cfg.Source.SameWarehouse())
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "0 3 * * *", cfg.Schedule.FullCron)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
env: production
target:
  host: warehouse.internal
  port: 5433
  schema: reporting
refresh:
  workers: 8
  table_timeout_seconds: 120
retry:
  max_attempts: 5
  transient_patterns: "warming up, rate limited"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, "dev")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "warehouse.internal", cfg.Target.Host)
	assert.Equal(t, 5433, cfg.Target.Port)
	assert.Equal(t, "reporting", cfg.Target.Schema)
	assert.Equal(t, 8, cfg.Refresh.Workers)
	assert.Equal(t, []string{"warming up", "rate limited"}, cfg.Retry.TransientPatterns)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target:\n  host: from-file\n"), 0o644))

	t.Setenv("PGHOST", "from-env")
	t.Setenv("PGPASSWORD", "s3cret")

	cfg, err := Load(path, "dev")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Target.Host)
	assert.Equal(t, "s3cret", cfg.Target.Password)
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := &Config{
		Target:  TargetConfig{Schema: "analytics"},
		Source:  SourceConfig{Driver: "postgres"},
		Refresh: RefreshConfig{Workers: 0},
	}
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsEmptySchema(t *testing.T) {
	cfg := &Config{
		Source:  SourceConfig{Driver: "postgres"},
		Refresh: RefreshConfig{Workers: 4},
	}
	assert.Error(t, cfg.validate())
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  driver: oracle\n"), 0o644))

	_, err := Load(path, "dev")
	assert.Error(t, err)
}

func TestConnectionStringPinsSearchPath(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
	require.NoError(t, err)

	conn := cfg.Target.ConnectionString()
	assert.Contains(t, conn, "search_path=analytics")
	assert.Contains(t, conn, "dbname=warehouse")
}

func TestTimeoutAccessors(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "dev")
	require.NoError(t, err)

	assert.Equal(t, float64(600), cfg.Refresh.TableTimeout().Seconds())
	assert.Equal(t, float64(7200), cfg.Refresh.RunTimeout().Seconds())
}

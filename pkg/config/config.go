package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the analytics engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. Secrets
// (passwords, DSNs with credentials) must only come from environment
// variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Target warehouse (PostgreSQL) that owns the derived tables and the
	// refresh log.
	Target TargetConfig `yaml:"target"`

	// Source boundary: read-only access to raw transactional and
	// workforce relations.
	Source SourceConfig `yaml:"source"`

	// Refresh orchestration settings.
	Refresh RefreshConfig `yaml:"refresh"`

	// Retry policy for transient provider failures.
	Retry RetryConfig `yaml:"retry"`

	// Cron schedules for unattended operation.
	Schedule ScheduleConfig `yaml:"schedule"`
}

// TargetConfig holds PostgreSQL configuration for the analytics warehouse.
type TargetConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"analytics"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"warehouse"`
	Schema         string `yaml:"schema" env:"TARGET_SCHEMA" env-default:"analytics"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// SourceConfig holds the read-only source store configuration.
// When the source tables live in the same warehouse as the target, Alias is
// empty and source references render without a database prefix.
type SourceConfig struct {
	// Driver selects the source driver: "postgres" or "sqlserver".
	Driver string `yaml:"driver" env:"SOURCE_DRIVER" env-default:"postgres"`
	// DSN is the full connection string for the source store. Empty means
	// same-warehouse deployment: source relations are read through the
	// target connection.
	DSN string `yaml:"-" env:"SOURCE_DSN"` // Secret - not in YAML
	// Alias is the database prefix substituted for {SOURCE_DB} in query
	// templates. Empty collapses the prefix entirely.
	Alias string `yaml:"alias" env:"SOURCE_ALIAS" env-default:""`
}

// SameWarehouse reports whether source and target share a location.
func (s *SourceConfig) SameWarehouse() bool {
	return s.DSN == ""
}

// RefreshConfig holds orchestration settings.
type RefreshConfig struct {
	// Workers bounds concurrent table materializations within a wave.
	Workers int `yaml:"workers" env:"REFRESH_WORKERS" env-default:"4"`
	// TableTimeoutSeconds bounds a single materialization. A per-table
	// timeout is a non-transient failure.
	TableTimeoutSeconds int `yaml:"table_timeout_seconds" env:"REFRESH_TABLE_TIMEOUT_SECONDS" env-default:"600"`
	// RunTimeoutSeconds bounds total wall-clock for one run. Zero disables.
	RunTimeoutSeconds int `yaml:"run_timeout_seconds" env:"REFRESH_RUN_TIMEOUT_SECONDS" env-default:"7200"`
	// AbsenceRulesPath optionally overrides the built-in ordered
	// absence-pattern rules with a YAML file.
	AbsenceRulesPath string `yaml:"absence_rules_path" env:"ABSENCE_RULES_PATH" env-default:""`
	// DiscoveryReportPath is where discovery writes its JSON report.
	DiscoveryReportPath string `yaml:"discovery_report_path" env:"DISCOVERY_REPORT_PATH" env-default:"discovery_report.json"`
}

// TableTimeout returns the per-table timeout as a duration.
func (r *RefreshConfig) TableTimeout() time.Duration {
	return time.Duration(r.TableTimeoutSeconds) * time.Second
}

// RunTimeout returns the per-run timeout as a duration. Zero means unbounded.
func (r *RefreshConfig) RunTimeout() time.Duration {
	return time.Duration(r.RunTimeoutSeconds) * time.Second
}

// RetryConfig holds the transient-failure retry policy. The transient
// classification list is configuration, not a hardcoded literal.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"max_attempts" env:"RETRY_MAX_ATTEMPTS" env-default:"3"`
	InitialDelayMs int     `yaml:"initial_delay_ms" env:"RETRY_INITIAL_DELAY_MS" env-default:"250"`
	MaxDelayMs     int     `yaml:"max_delay_ms" env:"RETRY_MAX_DELAY_MS" env-default:"5000"`
	Multiplier     float64 `yaml:"multiplier" env:"RETRY_MULTIPLIER" env-default:"2.0"`
	// TransientPatternsStr is a comma-separated list of additional error
	// substrings classified as transient.
	TransientPatternsStr string `yaml:"transient_patterns" env:"RETRY_TRANSIENT_PATTERNS" env-default:""`

	// TransientPatterns is the parsed list (not read from config directly).
	TransientPatterns []string `yaml:"-"`
}

// ScheduleConfig holds cron expressions for unattended refresh runs.
type ScheduleConfig struct {
	// FullCron triggers a full run; empty disables.
	FullCron string `yaml:"full_cron" env:"SCHEDULE_FULL_CRON" env-default:"0 3 * * *"`
	// IncrementalCron triggers an incremental run over the trailing window;
	// empty disables.
	IncrementalCron string `yaml:"incremental_cron" env:"SCHEDULE_INCREMENTAL_CRON" env-default:""`
	// IncrementalLookbackDays is the window an unattended incremental run
	// covers, ending today.
	IncrementalLookbackDays int `yaml:"incremental_lookback_days" env:"SCHEDULE_INCREMENTAL_LOOKBACK_DAYS" env-default:"7"`
}

// Load reads configuration from path with environment variable overrides.
// The version parameter is injected at build time and set on the returned
// Config. A missing file is not an error: env defaults still apply.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg.Retry.TransientPatterns = parsePatterns(cfg.Retry.TransientPatternsStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Refresh.Workers < 1 {
		return fmt.Errorf("refresh.workers must be at least 1, got %d", c.Refresh.Workers)
	}
	if c.Target.Schema == "" {
		return fmt.Errorf("target.schema must not be empty")
	}
	switch c.Source.Driver {
	case "postgres", "sqlserver":
	default:
		return fmt.Errorf("unsupported source driver %q", c.Source.Driver)
	}
	return nil
}

// parsePatterns splits a comma-separated pattern list, trimming whitespace.
func parsePatterns(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// ConnectionString returns a PostgreSQL connection string for the target.
// The search_path is pinned to the target schema so unqualified relations
// (the refresh log, migration bookkeeping) resolve there.
func (c *TargetConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode, c.Schema,
	)
}

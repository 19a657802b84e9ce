package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/config"
	"github.com/kitchensight/analytics-engine/pkg/database"
	"github.com/kitchensight/analytics-engine/pkg/discovery"
	"github.com/kitchensight/analytics-engine/pkg/logging"
	"github.com/kitchensight/analytics-engine/pkg/models"
	"github.com/kitchensight/analytics-engine/pkg/repositories"
	"github.com/kitchensight/analytics-engine/pkg/retry"
	"github.com/kitchensight/analytics-engine/pkg/services"
	"github.com/kitchensight/analytics-engine/pkg/templates"
	"github.com/kitchensight/analytics-engine/pkg/validation"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	var (
		mode       = flag.String("mode", "full", "refresh mode: full | incremental | discover | backfill-groups")
		dateFrom   = flag.String("date-from", "", "incremental window start (YYYY-MM-DD, inclusive)")
		dateTo     = flag.String("date-to", "", "incremental window end (YYYY-MM-DD, exclusive)")
		configPath = flag.String("config", "config.yaml", "path to configuration file")
		schedule   = flag.Bool("schedule", false, "run unattended on the configured cron schedules")
		validate   = flag.Bool("validate", false, "run the validation battery after the refresh")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath, Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	refreshMode := models.RefreshMode(*mode)
	if !models.IsValidRefreshMode(refreshMode) {
		logger.Fatal("Unknown refresh mode", zap.String("mode", *mode))
	}
	dateRange, err := parseDateRange(*dateFrom, *dateTo)
	if err != nil {
		logger.Fatal("Invalid date range", zap.Error(err))
	}

	logger.Info("Starting analytics engine",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("mode", *mode),
		zap.String("target", logging.SanitizeConnectionString(cfg.Target.ConnectionString())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, refreshMode, dateRange, *schedule, *validate, logger); err != nil {
		logger.Error("Run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	cfg *config.Config,
	mode models.RefreshMode,
	dateRange models.DateRange,
	scheduleMode, runValidation bool,
	logger *zap.Logger,
) error {
	if err := database.RunMigrations(cfg.Target.ConnectionString(), cfg.Target.MigrationsPath, cfg.Target.Schema, logger); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	target, err := database.NewConnection(ctx, &database.PoolConfig{
		URL:            cfg.Target.ConnectionString(),
		MaxConnections: cfg.Target.MaxConnections,
	})
	if err != nil {
		return fmt.Errorf("target connection failed: %w", err)
	}
	defer target.Close()

	// Same-warehouse deployments read source relations through the target
	// pool; split deployments open a second read-only handle.
	var source database.Querier = target
	if !cfg.Source.SameWarehouse() {
		sourceDB, err := database.OpenSource(ctx, cfg.Source.Driver, cfg.Source.DSN)
		if err != nil {
			return fmt.Errorf("source connection failed: %w", err)
		}
		defer sourceDB.Close() //nolint:errcheck
		source = sourceDB
	}

	rules, err := discovery.LoadRules(cfg.Refresh.AbsenceRulesPath)
	if err != nil {
		return err
	}
	ruleSet, err := discovery.NewRuleSet(rules)
	if err != nil {
		return err
	}

	mappingRepo := repositories.NewAbsenceMappingRepository(target)
	logRepo := repositories.NewRefreshLogRepository(target)

	if mode == models.ModeDiscover {
		svc := discovery.NewService(source, mappingRepo, ruleSet,
			cfg.Source.Alias, cfg.Refresh.DiscoveryReportPath, logger)
		report, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		logger.Info("Discovery finished",
			zap.Bool("hasAbsenceData", report.Summary.HasAbsenceData),
			zap.String("recommendation", report.Summary.Recommendation))
		return nil
	}

	store := templates.NewStore(templates.Definitions(), cfg.Source.Alias, cfg.Target.Schema)
	gate := discovery.NewGate(source, ruleSet, cfg.Source.Alias, logger)
	orchestrator := services.NewOrchestrator(store, target, gate, logRepo, services.OrchestratorConfig{
		Workers:      cfg.Refresh.Workers,
		TableTimeout: cfg.Refresh.TableTimeout(),
		RunTimeout:   cfg.Refresh.RunTimeout(),
		TargetSchema: cfg.Target.Schema,
		Retry:        retryConfig(cfg),
	}, logger)

	if scheduleMode {
		scheduler := services.NewScheduler(orchestrator,
			cfg.Schedule.FullCron, cfg.Schedule.IncrementalCron,
			cfg.Schedule.IncrementalLookbackDays, logger)
		return scheduler.Start(ctx)
	}

	summary, err := orchestrator.Run(ctx, mode, dateRange)
	if err != nil {
		return err
	}

	if runValidation {
		// Overlapping parameter windows are a configuration error worth
		// surfacing even though the tables are already materialized.
		resolver := services.NewConfigResolver(
			repositories.NewConfigParameterRepository(target, cfg.Target.Schema), logger)
		if err := resolver.Load(ctx); err != nil {
			return err
		}

		engine := validation.NewEngine(target, cfg.Target.Schema, logger)
		report, err := engine.RunAll(ctx)
		if err != nil {
			return err
		}
		if !report.Passed() {
			logger.Warn("Validation checks reported violations")
		}
	}

	if summary.HasFailures() {
		return fmt.Errorf("refresh run %s finished with %d failed tables", summary.RunID, len(summary.Failed))
	}
	return nil
}

func retryConfig(cfg *config.Config) *retry.Config {
	rc := retry.DefaultConfig()
	if cfg.Retry.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelayMs > 0 {
		rc.InitialDelay = time.Duration(cfg.Retry.InitialDelayMs) * time.Millisecond
	}
	if cfg.Retry.MaxDelayMs > 0 {
		rc.MaxDelay = time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond
	}
	if cfg.Retry.Multiplier > 0 {
		rc.Multiplier = cfg.Retry.Multiplier
	}
	rc.ExtraTransientPatterns = cfg.Retry.TransientPatterns
	return rc
}

func parseDateRange(from, to string) (models.DateRange, error) {
	var r models.DateRange
	if from == "" && to == "" {
		return r, nil
	}
	if from == "" {
		return r, fmt.Errorf("date-to requires date-from")
	}
	parsed, err := time.Parse("2006-01-02", from)
	if err != nil {
		return r, fmt.Errorf("invalid date-from %q: %w", from, err)
	}
	r.From = parsed
	if to != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return r, fmt.Errorf("invalid date-to %q: %w", to, err)
		}
		if !parsed.After(r.From) {
			return r, fmt.Errorf("date-to must be after date-from")
		}
		r.To = parsed
	}
	return r, nil
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// Scheduler triggers unattended refresh runs on cron schedules. Overlap is
// handled by the orchestrator's single-run guard: a tick that lands while a
// run is still in flight is dropped with a warning, never queued.
type Scheduler struct {
	orchestrator    Orchestrator
	fullCron        string
	incrementalCron string
	lookbackDays    int
	logger          *zap.Logger

	cron *cron.Cron
}

// NewScheduler creates a scheduler. Empty cron expressions disable the
// corresponding trigger.
func NewScheduler(orchestrator Orchestrator, fullCron, incrementalCron string, lookbackDays int, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		orchestrator:    orchestrator,
		fullCron:        fullCron,
		incrementalCron: incrementalCron,
		lookbackDays:    lookbackDays,
		logger:          logger.Named("scheduler"),
	}
}

// Start registers the schedules and runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()

	if s.fullCron != "" {
		if _, err := s.cron.AddFunc(s.fullCron, func() {
			s.trigger(ctx, models.ModeFull, models.DateRange{})
		}); err != nil {
			return err
		}
		s.logger.Info("Scheduled full refresh", zap.String("cron", s.fullCron))
	}

	if s.incrementalCron != "" {
		if _, err := s.cron.AddFunc(s.incrementalCron, func() {
			s.trigger(ctx, models.ModeIncremental, s.lookbackRange())
		}); err != nil {
			return err
		}
		s.logger.Info("Scheduled incremental refresh",
			zap.String("cron", s.incrementalCron),
			zap.Int("lookbackDays", s.lookbackDays))
	}

	s.cron.Start()
	<-ctx.Done()

	stopped := s.cron.Stop()
	// Let an in-flight tick finish its bookkeeping.
	<-stopped.Done()
	return ctx.Err()
}

// lookbackRange is the trailing window an unattended incremental run covers,
// ending tomorrow so today's partial data is included.
func (s *Scheduler) lookbackRange() models.DateRange {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return models.DateRange{
		From: today.AddDate(0, 0, -s.lookbackDays),
		To:   today.AddDate(0, 0, 1),
	}
}

func (s *Scheduler) trigger(ctx context.Context, mode models.RefreshMode, dateRange models.DateRange) {
	summary, err := s.orchestrator.Run(ctx, mode, dateRange)
	if err != nil {
		if errors.Is(err, apperrors.ErrRunInProgress) {
			s.logger.Warn("Skipping scheduled run, previous run still in flight",
				zap.String("mode", string(mode)))
			return
		}
		s.logger.Error("Scheduled run failed",
			zap.String("mode", string(mode)),
			zap.Error(err))
		return
	}
	if summary.HasFailures() {
		s.logger.Warn("Scheduled run completed with failures",
			zap.String("mode", string(mode)),
			zap.Strings("failed", summary.Failed))
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

type stubOrchestrator struct {
	runs    []models.RefreshMode
	ranges  []models.DateRange
	summary *models.RunSummary
	err     error
}

func (s *stubOrchestrator) Run(_ context.Context, mode models.RefreshMode, dateRange models.DateRange) (*models.RunSummary, error) {
	s.runs = append(s.runs, mode)
	s.ranges = append(s.ranges, dateRange)
	if s.err != nil {
		return nil, s.err
	}
	if s.summary != nil {
		return s.summary, nil
	}
	return &models.RunSummary{Mode: mode}, nil
}

func TestSchedulerLookbackRange(t *testing.T) {
	s := NewScheduler(&stubOrchestrator{}, "", "", 2, zap.NewNop())

	r := s.lookbackRange()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	assert.Equal(t, today.AddDate(0, 0, -2), r.From)
	assert.Equal(t, today.AddDate(0, 0, 1), r.To)
}

func TestSchedulerTriggerPassesIncrementalWindow(t *testing.T) {
	orch := &stubOrchestrator{}
	s := NewScheduler(orch, "", "", 3, zap.NewNop())

	s.trigger(context.Background(), models.ModeIncremental, s.lookbackRange())

	require.Len(t, orch.runs, 1)
	assert.Equal(t, models.ModeIncremental, orch.runs[0])
	assert.False(t, orch.ranges[0].From.IsZero())
	assert.True(t, orch.ranges[0].To.After(orch.ranges[0].From))
}

func TestSchedulerTriggerDropsOverlappingTicks(t *testing.T) {
	orch := &stubOrchestrator{err: apperrors.ErrRunInProgress}
	s := NewScheduler(orch, "", "", 1, zap.NewNop())

	// Must not panic or retry, just log and move on.
	s.trigger(context.Background(), models.ModeFull, models.DateRange{})

	assert.Len(t, orch.runs, 1)
}

func TestSchedulerTriggerSurvivesRunFailure(t *testing.T) {
	orch := &stubOrchestrator{err: errors.New("target unreachable")}
	s := NewScheduler(orch, "", "", 1, zap.NewNop())

	s.trigger(context.Background(), models.ModeFull, models.DateRange{})
	s.trigger(context.Background(), models.ModeFull, models.DateRange{})

	assert.Len(t, orch.runs, 2)
}

func TestSchedulerStartRejectsBadCron(t *testing.T) {
	s := NewScheduler(&stubOrchestrator{}, "not a cron expr", "", 1, zap.NewNop())

	err := s.Start(context.Background())

	require.Error(t, err)
}

func TestSchedulerStartStopsOnCancel(t *testing.T) {
	s := NewScheduler(&stubOrchestrator{}, "0 3 * * *", "30 * * * *", 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsValidRefreshMode(t *testing.T) {
	for _, m := range ValidRefreshModes {
		assert.True(t, IsValidRefreshMode(m), m)
	}
	assert.False(t, IsValidRefreshMode("partial"))
	assert.False(t, IsValidRefreshMode(""))
}

func TestTableStatusIsTerminal(t *testing.T) {
	assert.False(t, TableStatusPending.IsTerminal())
	assert.False(t, TableStatusRunning.IsTerminal())
	assert.True(t, TableStatusSuccess.IsTerminal())
	assert.True(t, TableStatusFailed.IsTerminal())
	assert.True(t, TableStatusSkipped.IsTerminal())
}

func TestDateRange(t *testing.T) {
	assert.True(t, DateRange{}.IsZero())
	assert.False(t, DateRange{}.Bounded())

	open := DateRange{From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	assert.False(t, open.IsZero())
	assert.False(t, open.Bounded())

	closed := DateRange{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	assert.True(t, closed.Bounded())
}

func TestNewRefreshRun(t *testing.T) {
	run := NewRefreshRun(ModeIncremental, DateRange{})
	assert.NotEqual(t, run.ID.String(), NewRefreshRun(ModeIncremental, DateRange{}).ID.String())
	assert.Equal(t, ModeIncremental, run.Mode)
	assert.False(t, run.StartedAt.IsZero())
}

func TestRunSummaryHasFailures(t *testing.T) {
	s := &RunSummary{Completed: []string{"a"}}
	assert.False(t, s.HasFailures())
	s.Failed = append(s.Failed, "b")
	assert.True(t, s.HasFailures())
}

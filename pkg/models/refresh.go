package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Refresh Mode
// ============================================================================

// RefreshMode selects how much of the table graph a run recomputes.
type RefreshMode string

const (
	// ModeFull recomputes every scheduled table over its entire domain.
	ModeFull RefreshMode = "full"
	// ModeIncremental narrows tier-2 computation to a date window.
	// Tier-3 snapshot tables are always recomputed in full.
	ModeIncremental RefreshMode = "incremental"
	// ModeDiscover runs only the discovery probes and reports findings
	// without materializing any table.
	ModeDiscover RefreshMode = "discover"
	// ModeBackfillGroups refreshes only the product-group subset of the graph.
	ModeBackfillGroups RefreshMode = "backfill-groups"
)

// ValidRefreshModes contains all accepted mode values.
var ValidRefreshModes = []RefreshMode{ModeFull, ModeIncremental, ModeDiscover, ModeBackfillGroups}

// IsValidRefreshMode checks if the given mode is valid.
func IsValidRefreshMode(m RefreshMode) bool {
	for _, v := range ValidRefreshModes {
		if v == m {
			return true
		}
	}
	return false
}

// ============================================================================
// Table Status
// ============================================================================

// TableStatus represents the per-run execution status of one derived table.
type TableStatus string

const (
	TableStatusPending TableStatus = "pending"
	TableStatusRunning TableStatus = "running"
	TableStatusSuccess TableStatus = "success"
	TableStatusFailed  TableStatus = "failed"
	TableStatusSkipped TableStatus = "skipped"
)

// IsTerminal returns true if the status is terminal (success, failed, or skipped).
func (s TableStatus) IsTerminal() bool {
	return s == TableStatusSuccess || s == TableStatusFailed || s == TableStatusSkipped
}

// ============================================================================
// Date Range
// ============================================================================

// DateRange is the inclusive-start, exclusive-end window of an incremental
// run. To may be zero, in which case the range is open-ended.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether no range was requested.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Bounded reports whether the range has an explicit upper bound.
func (r DateRange) Bounded() bool {
	return !r.To.IsZero()
}

// ============================================================================
// Refresh Run
// ============================================================================

// RefreshRun drives exactly one graph traversal. It is created at invocation
// and discarded after completion; durable state lives only in refresh_log rows.
type RefreshRun struct {
	ID        uuid.UUID
	Mode      RefreshMode
	Range     DateRange
	StartedAt time.Time
}

// NewRefreshRun creates a run for the given mode and optional date range.
func NewRefreshRun(mode RefreshMode, dateRange DateRange) *RefreshRun {
	return &RefreshRun{
		ID:        uuid.New(),
		Mode:      mode,
		Range:     dateRange,
		StartedAt: time.Now().UTC(),
	}
}

// ============================================================================
// Refresh Log Entry
// ============================================================================

// RefreshLogEntry is one append-only audit row: one per table per run.
// It is never mutated after FinishedAt is set, except by the orchestrator
// itself when it closes the entry.
type RefreshLogEntry struct {
	ID           int64
	RunID        uuid.UUID
	TableName    string
	Mode         RefreshMode
	Status       TableStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	DurationMs   *int64
	RowCount     *int64
	ErrorMessage *string
}

// ============================================================================
// Run Summary
// ============================================================================

// RunSummary is the operator-facing outcome of a completed run.
type RunSummary struct {
	RunID      uuid.UUID   `json:"run_id"`
	Mode       RefreshMode `json:"mode"`
	Completed  []string    `json:"completed"`
	Failed     []string    `json:"failed"`
	Skipped    []string    `json:"skipped"`
	DurationMs int64       `json:"duration_ms"`
}

// HasFailures returns true if any table failed during the run.
func (s *RunSummary) HasFailures() bool {
	return len(s.Failed) > 0
}

package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrParameterNotFound = errors.New("config parameter not found")
	ErrRunInProgress     = errors.New("a refresh run is already in progress")
)

// ============================================================================
// Configuration-class errors
//
// These abort the entire run before any table executes. Nothing is partially
// computed when one of them is raised.
// ============================================================================

// RenderError reports a malformed placeholder in a query template.
type RenderError struct {
	Table  string
	Reason string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %s", e.Table, e.Reason)
}

// CycleError reports a dependency cycle in the table definitions.
type CycleError struct {
	// Tables that could not be scheduled because of the cycle.
	Tables []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle involving tables: %s", strings.Join(e.Tables, ", "))
}

// TierOrderingError reports a table depending on a higher tier than its own.
type TierOrderingError struct {
	Table    string
	Upstream string
}

func (e *TierOrderingError) Error() string {
	return fmt.Sprintf("tier ordering violation: %s depends on higher-tier table %s", e.Table, e.Upstream)
}

// UnknownUpstreamError reports a declared dependency on an undefined table.
type UnknownUpstreamError struct {
	Table    string
	Upstream string
}

func (e *UnknownUpstreamError) Error() string {
	return fmt.Sprintf("table %s depends on undefined table %s", e.Table, e.Upstream)
}

// OverlapError reports two config parameter rows with intersecting validity
// windows for the same key.
type OverlapError struct {
	Key string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("overlapping validity windows for config parameter %q", e.Key)
}

// IsConfigError reports whether err is a configuration-class error that must
// fail the run fast.
func IsConfigError(err error) bool {
	var re *RenderError
	var ce *CycleError
	var te *TierOrderingError
	var ue *UnknownUpstreamError
	var oe *OverlapError
	return errors.As(err, &re) || errors.As(err, &ce) || errors.As(err, &te) ||
		errors.As(err, &ue) || errors.As(err, &oe)
}

// ============================================================================
// Execution-class errors
//
// These are contained to a single table and its downstream cone.
// ============================================================================

// TransientError wraps a provider failure expected to succeed on retry
// without intervention.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string     { return e.Err.Error() }
func (e *TransientError) Unwrap() error     { return e.Err }
func (e *TransientError) IsRetryable() bool { return true }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// PermissionError reports a write-permission failure from the provider.
// Non-fatal in discovery/schema-only contexts, fatal otherwise. Never retried.
type PermissionError struct {
	Op  string
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied during %s: %v", e.Op, e.Err)
}
func (e *PermissionError) Unwrap() error     { return e.Err }
func (e *PermissionError) IsRetryable() bool { return false }

// IsPermission reports whether err is a PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// TableExecutionError marks a single table failed. It carries the table name
// so log entries and skip reasons stay attributable.
type TableExecutionError struct {
	Table string
	Err   error
}

func (e *TableExecutionError) Error() string {
	return fmt.Sprintf("table %s: %v", e.Table, e.Err)
}
func (e *TableExecutionError) Unwrap() error { return e.Err }

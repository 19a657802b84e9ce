package models

import "time"

// Violation is one offending row reported by a validation check.
type Violation struct {
	// Scope identifies the offending slice, e.g. "2025-01-04/loc-12".
	Scope string `json:"scope"`
	// Detail explains what the check found.
	Detail string `json:"detail"`
}

// CheckResult is the outcome of one validation check. Validation failures
// are reported, never block or roll back a completed run.
type CheckResult struct {
	Name       string      `json:"name"`
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations,omitempty"`
	RanAt      time.Time   `json:"ran_at"`
}

// ValidationReport aggregates the full battery of checks for one run.
type ValidationReport struct {
	Results []CheckResult `json:"results"`
}

// Passed reports whether every check passed.
func (r *ValidationReport) Passed() bool {
	for _, c := range r.Results {
		if !c.Passed {
			return false
		}
	}
	return true
}

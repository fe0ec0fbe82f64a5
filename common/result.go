package common

import "fmt"

// CheckResult represents the outcome of a cross-check on one decoded image
type CheckResult struct {
	Checked bool
	Message string
	Count   int // Number of fields that differ
}

// NewSkipped creates a result for checks that could not run
func NewSkipped(reason string) *CheckResult {
	return &CheckResult{
		Checked: false,
		Message: reason,
		Count:   0,
	}
}

// NewChecked creates a result for a check that ran; count is the number of
// differing fields
func NewChecked(message string, count int) *CheckResult {
	return &CheckResult{
		Checked: true,
		Message: message,
		Count:   count,
	}
}

// Failed reports a check that ran and found differences
func (r *CheckResult) Failed() bool {
	return r.Checked && r.Count > 0
}

// String returns a human-readable representation
func (r *CheckResult) String() string {
	if !r.Checked {
		return fmt.Sprintf("SKIPPED (%s)", r.Message)
	}
	if r.Count > 0 {
		return fmt.Sprintf("MISMATCH (%s, %d fields)", r.Message, r.Count)
	}
	return fmt.Sprintf("OK (%s)", r.Message)
}

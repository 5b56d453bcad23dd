package catalog

import (
	"fmt"
	"strings"
)

// Finding is a single catalog integrity problem
type Finding struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Report collects every integrity problem found while building a catalog,
// so a broken data set is diagnosed in one pass rather than one error at a time.
type Report struct {
	Valid    bool      `json:"valid"`
	Findings []Finding `json:"findings"`
}

// NewReport creates an empty valid report
func NewReport() *Report {
	return &Report{Valid: true, Findings: []Finding{}}
}

// Add records a finding and marks the report invalid
func (r *Report) Add(path, format string, args ...any) {
	r.Findings = append(r.Findings, Finding{Path: path, Message: fmt.Sprintf(format, args...)})
	r.Valid = false
}

// Merge combines another report into this one
func (r *Report) Merge(other *Report) {
	r.Findings = append(r.Findings, other.Findings...)
	r.Valid = r.Valid && other.Valid
}

// Summary returns a one-line description
func (r *Report) Summary() string {
	if r.Valid {
		return "catalog is consistent"
	}
	return fmt.Sprintf("%d integrity problem(s)", len(r.Findings))
}

// Error lists every finding, so an invalid report can be used as an error
func (r *Report) Error() string {
	lines := make([]string, len(r.Findings))
	for i, f := range r.Findings {
		lines[i] = f.Path + ": " + f.Message
	}
	return strings.Join(lines, "; ")
}

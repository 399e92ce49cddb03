// Package domain holds the contracts shared across Ghillie's modules:
// report status semantics, the sink and event-publisher ports, and the
// typed payloads of domain events. Keeping them here breaks import cycles
// between the reporting, sink, and broker packages.
package domain

import (
	"fmt"
	"strings"
)

// ReportStatus is the headline state of a status report
type ReportStatus string

const (
	StatusOnTrack ReportStatus = "on_track"
	StatusAtRisk  ReportStatus = "at_risk"
	StatusBlocked ReportStatus = "blocked"
	StatusUnknown ReportStatus = "unknown"
)

// ParseReportStatus maps free-form status strings onto the known set.
// Matching is case-insensitive; anything unrecognised, including the empty
// string, maps to StatusUnknown.
func ParseReportStatus(s string) ReportStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(StatusOnTrack):
		return StatusOnTrack
	case string(StatusAtRisk):
		return StatusAtRisk
	case string(StatusBlocked):
		return StatusBlocked
	default:
		return StatusUnknown
	}
}

// Valid reports whether the status is one of the known values
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusOnTrack, StatusAtRisk, StatusBlocked, StatusUnknown:
		return true
	}
	return false
}

// Label returns the human-readable form used in rendered reports
func (s ReportStatus) Label() string {
	switch s {
	case StatusOnTrack:
		return "On Track"
	case StatusAtRisk:
		return "At Risk"
	case StatusBlocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// StatusResult is what a status model produces for one evidence bundle.
// The same shape is persisted as a report's machine summary, so rendering
// can be driven from the database record alone.
type StatusResult struct {
	Status     ReportStatus `json:"status"`
	Summary    string       `json:"summary"`
	Highlights []string     `json:"highlights"`
	Risks      []string     `json:"risks"`
	NextSteps  []string     `json:"next_steps"`
}

// Validate returns the list of problems that make the result unusable.
// An empty slice means the result is acceptable. Model adapters must not
// coerce their output before validation runs, otherwise the retry
// discipline never sees invalid statuses.
func (r StatusResult) Validate() []string {
	var issues []string

	if strings.TrimSpace(r.Summary) == "" {
		issues = append(issues, "summary must not be empty")
	}
	if !r.Status.Valid() {
		issues = append(issues, fmt.Sprintf("status %q is not a valid report status", string(r.Status)))
	}
	issues = append(issues, validateStringList("highlights", r.Highlights)...)
	issues = append(issues, validateStringList("risks", r.Risks)...)
	issues = append(issues, validateStringList("next_steps", r.NextSteps)...)

	return issues
}

func validateStringList(field string, values []string) []string {
	var issues []string
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			issues = append(issues, fmt.Sprintf("%s[%d] must be a non-empty string", field, i))
		}
	}
	return issues
}

// InvocationMetrics is the optional token-usage side channel a model
// adapter may expose after each invocation
type InvocationMetrics struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

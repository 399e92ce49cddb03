// Package reporting turns evidence bundles into persisted status reports:
// window computation, model invocation under a validation-retry budget,
// report and coverage persistence, Markdown rendering, and estate-wide
// fan-out.
package reporting

import (
	"time"

	"github.com/wildside/ghillie/internal/domain"
)

// Report scopes
const (
	ScopeRepository = "repository"
	ScopeProject    = "project"
)

// Review marker states
const (
	ReviewStatePending  = "pending"
	ReviewStateResolved = "resolved"
)

// ReportingWindow is the half-open interval [Start, End) a report covers
type ReportingWindow struct {
	Start time.Time
	End   time.Time
}

// Report is one gold report row. MachineSummary is the validated status
// result; HumanText mirrors its summary so rendering needs no model access.
type Report struct {
	ID               string              `json:"id"`
	Scope            string              `json:"scope"`
	RepositoryID     *string             `json:"repository_id,omitempty"`
	ProjectID        *string             `json:"project_id,omitempty"`
	EstateID         *string             `json:"estate_id,omitempty"`
	WindowStart      time.Time           `json:"window_start"`
	WindowEnd        time.Time           `json:"window_end"`
	GeneratedAt      time.Time           `json:"generated_at"`
	Model            string              `json:"model"`
	HumanText        string              `json:"human_text"`
	MachineSummary   domain.StatusResult `json:"machine_summary"`
	LatencyMS        *int64              `json:"latency_ms,omitempty"`
	PromptTokens     *int                `json:"prompt_tokens,omitempty"`
	CompletionTokens *int                `json:"completion_tokens,omitempty"`
	TotalTokens      *int                `json:"total_tokens,omitempty"`
}

// ReviewMarker flags a reporting window whose report could not be validated
// within the attempt budget
type ReviewMarker struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	WindowStart  time.Time `json:"window_start"`
	WindowEnd    time.Time `json:"window_end"`
	State        string    `json:"state"`
	AttemptCount int       `json:"attempt_count"`
	Issues       []string  `json:"issues"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

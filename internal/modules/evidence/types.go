// Package evidence assembles the immutable bundles that feed report
// generation: repository-scope bundles gather windowed activity from the
// silver layer, project-scope bundles join catalogue structure with each
// repository's most recent report.
package evidence

import (
	"fmt"
	"time"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/domain"
	"github.com/wildside/ghillie/internal/modules/registry"
)

// WorkType buckets observed activity by intent
type WorkType string

const (
	WorkFeature       WorkType = "feature"
	WorkBug           WorkType = "bug"
	WorkRefactor      WorkType = "refactor"
	WorkChore         WorkType = "chore"
	WorkDocumentation WorkType = "documentation"
	WorkUnknown       WorkType = "unknown"
)

// workTypeOrder fixes the rendering and grouping order
var workTypeOrder = []WorkType{
	WorkFeature, WorkBug, WorkRefactor, WorkChore, WorkDocumentation, WorkUnknown,
}

// NotFoundError reports a missing repository or project during evidence
// assembly. Kind distinguishes the two.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Commit is one silver commit row
type Commit struct {
	ID           string
	RepositoryID string
	SHA          string
	Message      string
	Author       string
	CommittedAt  time.Time
}

// PullRequest is one silver pull request row
type PullRequest struct {
	ID           string
	RepositoryID string
	Number       int
	Title        string
	Author       string
	State        string
	Labels       []string
	CreatedAt    time.Time
	MergedAt     *time.Time
	ClosedAt     *time.Time
}

// Issue is one silver issue row
type Issue struct {
	ID           string
	RepositoryID string
	Number       int
	Title        string
	Author       string
	State        string
	Labels       []string
	CreatedAt    time.Time
	ClosedAt     *time.Time
}

// DocumentationChange is one silver documentation change row
type DocumentationChange struct {
	ID           string
	RepositoryID string
	Path         string
	ChangeType   string
	Summary      string
	Author       string
	OccurredAt   time.Time
}

// EventFact is one silver event fact row. Reports record coverage against
// these IDs.
type EventFact struct {
	ID           string
	RepositoryID string
	EventType    string
	Source       string
	OccurredAt   time.Time
	Payload      string
}

// WorkTypeGrouping summarises the activity of one observed work type
type WorkTypeGrouping struct {
	WorkType     WorkType `json:"work_type"`
	Commits      int      `json:"commits"`
	PullRequests int      `json:"pull_requests"`
	Issues       int      `json:"issues"`
	Samples      []string `json:"samples"`
}

// ActivityStats describes the commit cadence across the window. Advisory
// input for the status model, never rendered directly.
type ActivityStats struct {
	CommitsPerDayMean   float64 `json:"commits_per_day_mean"`
	CommitsPerDayStdDev float64 `json:"commits_per_day_stddev"`
	ActiveDays          int     `json:"active_days"`
	PeakDay             string  `json:"peak_day,omitempty"`
	PeakCommits         int     `json:"peak_commits,omitempty"`
}

// PreviousReportSummary carries just enough of an earlier report to give
// the model continuity context
type PreviousReportSummary struct {
	ReportID      string              `json:"report_id"`
	WindowStart   time.Time           `json:"window_start"`
	WindowEnd     time.Time           `json:"window_end"`
	GeneratedAt   time.Time           `json:"generated_at"`
	Status        domain.ReportStatus `json:"status"`
	Summary       string              `json:"summary"`
	CoverageCount int                 `json:"coverage_count"`
}

// RepositoryEvidenceBundle is the immutable input for one repository-scope
// report. Windows are half-open [WindowStart, WindowEnd).
type RepositoryEvidenceBundle struct {
	Repository           registry.RepoInfo
	WindowStart          time.Time
	WindowEnd            time.Time
	GeneratedAt          time.Time
	Commits              []Commit
	PullRequests         []PullRequest
	Issues               []Issue
	DocumentationChanges []DocumentationChange
	EventFactIDs         []string
	WorkTypes            []WorkTypeGrouping
	Activity             ActivityStats
	PreviousReports      []PreviousReportSummary
}

// TotalEventCount is the number of event facts the window covers. A zero
// count means the window has nothing to report on.
func (b *RepositoryEvidenceBundle) TotalEventCount() int {
	return len(b.EventFactIDs)
}

// HasPreviousContext reports whether any earlier report feeds this bundle
func (b *RepositoryEvidenceBundle) HasPreviousContext() bool {
	return len(b.PreviousReports) > 0
}

// ProjectMetadata is the project header of a project-scope bundle
type ProjectMetadata struct {
	ID                 string
	Key                string
	Name               string
	Description        string
	Programme          string
	EstateID           string
	DocumentationPaths []string
	Noise              *document.NoiseFilters
	StatusPreferences  *document.StatusPreferences
}

// ComponentRepositorySummary links a component to the most recent report of
// its repository within the same estate
type ComponentRepositorySummary struct {
	RepositoryID string              `json:"repository_id"`
	Slug         string              `json:"slug"`
	ReportID     string              `json:"report_id"`
	WindowStart  time.Time           `json:"window_start"`
	WindowEnd    time.Time           `json:"window_end"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Status       domain.ReportStatus `json:"status"`
	Summary      string              `json:"summary"`
}

// ComponentEvidence is one catalogue component with its latest repository
// report attached when one exists
type ComponentEvidence struct {
	Key         string
	Name        string
	Type        string
	Lifecycle   string
	Description string
	Notes       []string
	Repository  *ComponentRepositorySummary
}

// ComponentDependencyEvidence is one dependency edge between two components
// of the same project
type ComponentDependencyEvidence struct {
	FromKey      string
	ToKey        string
	Relationship string
	Kind         string
	Rationale    string
}

// ProjectEvidenceBundle is the immutable input for one project-scope report
type ProjectEvidenceBundle struct {
	Project         ProjectMetadata
	Components      []ComponentEvidence
	Dependencies    []ComponentDependencyEvidence
	PreviousReports []PreviousReportSummary
	GeneratedAt     time.Time
}

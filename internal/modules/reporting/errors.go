package reporting

import (
	"fmt"
	"strings"
	"time"
)

// InvalidWindowError reports a window whose end does not come after its
// start
type InvalidWindowError struct {
	Start time.Time
	End   time.Time
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("window end %s must be after start %s",
		e.End.UTC().Format(time.RFC3339), e.Start.UTC().Format(time.RFC3339))
}

// ValidationFailedError is raised when the status model could not produce a
// valid result within the attempt budget. ReviewID names the pending review
// marker that records the failure; Issues are from the final attempt.
type ValidationFailedError struct {
	Issues   []string
	Attempts int
	ReviewID string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("status result invalid after %d attempts: %s",
		e.Attempts, strings.Join(e.Issues, "; "))
}

// RepositoryFailure pairs a repository with the error its reporting run
// produced
type RepositoryFailure struct {
	RepositoryID string `json:"repository_id"`
	Slug         string `json:"slug"`
	Err          error  `json:"-"`
}

// EstateRunError aggregates the per-repository failures of an estate-wide
// reporting run. Successful repositories are unaffected.
type EstateRunError struct {
	EstateID string
	Failures []RepositoryFailure
}

func (e *EstateRunError) Error() string {
	slugs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		slugs[i] = f.Slug
	}
	return fmt.Sprintf("estate %s: %d repositories failed to report: %s",
		e.EstateID, len(e.Failures), strings.Join(slugs, ", "))
}

// Unwrap exposes the underlying failures to errors.Is and errors.As
func (e *EstateRunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

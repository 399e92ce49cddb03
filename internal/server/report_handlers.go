package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/internal/modules/reporting"
)

// ReportHandlers handles repository-scoped report runs, report listings,
// and the review queue
type ReportHandlers struct {
	registry     *registry.Service
	orchestrator *reporting.Orchestrator
	reports      *reporting.ReportRepository
	reviews      *reporting.ReviewRepository
	log          zerolog.Logger
}

// NewReportHandlers creates report handlers
func NewReportHandlers(registrySvc *registry.Service, orchestrator *reporting.Orchestrator, reports *reporting.ReportRepository, reviews *reporting.ReviewRepository, log zerolog.Logger) *ReportHandlers {
	return &ReportHandlers{
		registry:     registrySvc,
		orchestrator: orchestrator,
		reports:      reports,
		reviews:      reviews,
		log:          log.With().Str("component", "report_handlers").Logger(),
	}
}

// HandleRun generates the next report for one repository. A window with
// no events is reported as skipped, not an error.
func (h *ReportHandlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.resolveRepository(w, r)
	if !ok {
		return
	}

	asOf, ok := parseAsOf(w, h.log, r)
	if !ok {
		return
	}

	report, err := h.orchestrator.RunForRepository(r.Context(), repo.ID, asOf)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if report == nil {
		writeJSON(w, h.log, http.StatusOK, map[string]bool{"skipped": true})
		return
	}

	writeJSON(w, h.log, http.StatusOK, report)
}

// HandleList returns a repository's reports, newest window first
func (h *ReportHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.resolveRepository(w, r)
	if !ok {
		return
	}

	reports, err := h.reports.ListForRepository(r.Context(), repo.ID, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
}

// HandleListReviews returns review markers, pending ones by default
func (h *ReportHandlers) HandleListReviews(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		state = reporting.ReviewStatePending
	}

	reviews, err := h.reviews.List(r.Context(), state, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"reviews": reviews,
		"count":   len(reviews),
	})
}

func (h *ReportHandlers) resolveRepository(w http.ResponseWriter, r *http.Request) (*registry.RepoInfo, bool) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	repo, err := h.registry.GetRepositoryBySlug(r.Context(), owner+"/"+name)
	if err != nil {
		writeError(w, h.log, err)
		return nil, false
	}
	if repo == nil {
		writeError(w, h.log, &registry.RepositoryNotFoundError{Owner: owner, Name: name})
		return nil, false
	}
	return repo, true
}

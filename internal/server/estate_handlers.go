package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/modules/catalogue"
	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/internal/modules/reporting"
)

// EstateHandlers handles estate-scoped endpoints: registry sync,
// catalogue imports, and estate-wide report runs
type EstateHandlers struct {
	estates      *catalogue.EstateRepository
	importer     *catalogue.Importer
	registry     *registry.Service
	orchestrator *reporting.Orchestrator
	log          zerolog.Logger
}

// NewEstateHandlers creates estate handlers
func NewEstateHandlers(estates *catalogue.EstateRepository, importer *catalogue.Importer, registrySvc *registry.Service, orchestrator *reporting.Orchestrator, log zerolog.Logger) *EstateHandlers {
	return &EstateHandlers{
		estates:      estates,
		importer:     importer,
		registry:     registrySvc,
		orchestrator: orchestrator,
		log:          log.With().Str("component", "estate_handlers").Logger(),
	}
}

// HandleSync reconciles the registry with the estate's catalogue
func (h *EstateHandlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	estate, err := h.estates.GetByKey(r.Context(), key)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if estate == nil {
		writeJSON(w, h.log, http.StatusNotFound, map[string]string{
			"error": "estate " + key + " not found",
		})
		return
	}

	result, err := h.registry.SyncFromCatalogue(r.Context(), key)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, result)
}

// HandleImport imports the YAML catalogue document in the request body
// into the estate, creating the estate on first import. An optional
// commit_sha query parameter enables idempotent re-imports.
func (h *EstateHandlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	commitSHA := r.URL.Query().Get("commit_sha")

	doc, err := document.Load(r.Body)
	if err != nil {
		writeJSON(w, h.log, http.StatusBadRequest, map[string]string{
			"error": "failed to parse catalogue document: " + err.Error(),
		})
		return
	}

	result, err := h.importer.Import(r.Context(), key, doc, commitSHA)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, result)
}

// HandleRunReports generates reports for every active repository in the
// estate. Individual repository failures are listed in the body rather
// than failing the whole run.
func (h *EstateHandlers) HandleRunReports(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	asOf, ok := parseAsOf(w, h.log, r)
	if !ok {
		return
	}

	estate, err := h.estates.GetByKey(r.Context(), key)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if estate == nil {
		writeJSON(w, h.log, http.StatusNotFound, map[string]string{
			"error": "estate " + key + " not found",
		})
		return
	}

	result, err := h.orchestrator.RunForEstate(r.Context(), estate.ID, asOf)
	if err != nil && result == nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, estateRunResponse(result))
}

type estateRunFailure struct {
	RepositoryID string `json:"repository_id"`
	Slug         string `json:"slug"`
	Error        string `json:"error"`
}

type estateRunBody struct {
	EstateID  string             `json:"estate_id"`
	Generated int                `json:"generated"`
	Skipped   int                `json:"skipped"`
	Failures  []estateRunFailure `json:"failures,omitempty"`
}

// estateRunResponse flattens failure errors into strings; error values do
// not survive JSON encoding on their own
func estateRunResponse(result *reporting.EstateRunResult) estateRunBody {
	body := estateRunBody{
		EstateID:  result.EstateID,
		Generated: result.Generated,
		Skipped:   result.Skipped,
	}
	for _, failure := range result.Failures {
		body.Failures = append(body.Failures, estateRunFailure{
			RepositoryID: failure.RepositoryID,
			Slug:         failure.Slug,
			Error:        failure.Err.Error(),
		})
	}
	return body
}

// parseAsOf reads an optional RFC 3339 as_of query parameter. A malformed
// value is a 400 and the second return is false.
func parseAsOf(w http.ResponseWriter, log zerolog.Logger, r *http.Request) (*time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, log, http.StatusBadRequest, map[string]string{
			"error": "as_of must be RFC 3339: " + err.Error(),
		})
		return nil, false
	}
	return &parsed, true
}

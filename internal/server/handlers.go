package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	document "github.com/wildside/ghillie/internal/catalogue"
	"github.com/wildside/ghillie/internal/modules/evidence"
	"github.com/wildside/ghillie/internal/modules/registry"
	"github.com/wildside/ghillie/internal/modules/reporting"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps domain errors onto HTTP statuses. Validation failures
// carry their issues in the body so callers can fix the input; everything
// unrecognised is a 500 with the detail kept in the logs.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var (
		docErr      *document.ValidationError
		genErr      *reporting.ValidationFailedError
		repoErr     *registry.RepositoryNotFoundError
		evidenceErr *evidence.NotFoundError
		pageErr     *registry.NegativePaginationError
	)

	switch {
	case errors.As(err, &docErr):
		writeJSON(w, log, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "catalogue validation failed",
			"issues": docErr.Issues,
		})
	case errors.As(err, &genErr):
		writeJSON(w, log, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":     genErr.Error(),
			"issues":    genErr.Issues,
			"review_id": genErr.ReviewID,
		})
	case errors.As(err, &repoErr):
		writeJSON(w, log, http.StatusNotFound, map[string]string{"error": repoErr.Error()})
	case errors.As(err, &evidenceErr):
		writeJSON(w, log, http.StatusNotFound, map[string]string{"error": evidenceErr.Error()})
	case errors.As(err, &pageErr):
		writeJSON(w, log, http.StatusBadRequest, map[string]string{"error": pageErr.Error()})
	default:
		log.Error().Err(err).Msg("Request failed")
		writeJSON(w, log, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// queryInt parses an optional integer query parameter, falling back to
// def when absent or malformed
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

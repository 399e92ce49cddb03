package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/wildside/ghillie/internal/modules/registry"
)

// RegistryHandlers handles repository registry endpoints
type RegistryHandlers struct {
	registry *registry.Service
	log      zerolog.Logger
}

// NewRegistryHandlers creates registry handlers
func NewRegistryHandlers(svc *registry.Service, log zerolog.Logger) *RegistryHandlers {
	return &RegistryHandlers{
		registry: svc,
		log:      log.With().Str("component", "registry_handlers").Logger(),
	}
}

// HandleList returns registry rows, active-only by default. Pass
// active=false for the full registry including deactivated rows.
func (h *RegistryHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	opts := registry.ListOptions{
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}
	if estateID := r.URL.Query().Get("estate_id"); estateID != "" {
		opts.EstateID = &estateID
	}

	var (
		repos []registry.RepoInfo
		err   error
	)
	if r.URL.Query().Get("active") == "false" {
		repos, err = h.registry.ListAllRepositories(r.Context(), opts)
	} else {
		repos, err = h.registry.ListActiveRepositories(r.Context(), opts)
	}
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"repositories": repos,
		"count":        len(repos),
	})
}

// HandleGet returns one registry row by owner/name
func (h *RegistryHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	repo, err := h.registry.GetRepositoryBySlug(r.Context(), owner+"/"+name)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if repo == nil {
		writeError(w, h.log, &registry.RepositoryNotFoundError{Owner: owner, Name: name})
		return
	}

	writeJSON(w, h.log, http.StatusOK, repo)
}

// HandleEnable switches ingestion on for a repository
func (h *RegistryHandlers) HandleEnable(w http.ResponseWriter, r *http.Request) {
	h.setIngestion(w, r, true)
}

// HandleDisable switches ingestion off for a repository
func (h *RegistryHandlers) HandleDisable(w http.ResponseWriter, r *http.Request) {
	h.setIngestion(w, r, false)
}

func (h *RegistryHandlers) setIngestion(w http.ResponseWriter, r *http.Request, enabled bool) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	var (
		changed bool
		err     error
	)
	if enabled {
		changed, err = h.registry.EnableIngestion(r.Context(), owner, name)
	} else {
		changed, err = h.registry.DisableIngestion(r.Context(), owner, name)
	}
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, h.log, http.StatusOK, map[string]bool{"changed": changed})
}

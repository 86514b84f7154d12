package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joshp123/omhome/internal/coordinator"
	"github.com/joshp123/omhome/internal/core"
	"github.com/joshp123/omhome/internal/entity"
	"github.com/joshp123/omhome/internal/resource"
)

type healthResponse struct {
	Status            string               `json:"status"`
	Version           string               `json:"version,omitempty"`
	LastUpdateSuccess bool                 `json:"last_update_success"`
	LastUpdated       *time.Time           `json:"last_updated,omitempty"`
	LastError         string               `json:"last_error,omitempty"`
	Plugins           []core.PluginSummary `json:"plugins,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:            "ok",
		Version:           s.version,
		LastUpdateSuccess: s.coord.LastUpdateSuccess(),
	}
	if updated := s.coord.LastUpdated(); !updated.IsZero() {
		resp.LastUpdated = &updated
	}
	if err := s.coord.LastError(); err != nil {
		resp.LastError = err.Error()
	}

	healthy := resp.LastUpdateSuccess
	if s.health != nil {
		resp.Plugins = s.health.Summaries()
		healthy = healthy && s.health.Healthy()
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, []core.PluginSummary{})
		return
	}
	writeJSON(w, http.StatusOK, s.health.Summaries())
}

func (s *Server) handlePluginDocs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.health == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown plugin "+id)
		return
	}
	docs, ok := s.health.Docs(id)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "unknown plugin "+id)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docs))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.Data()
	if snap == nil {
		snap = resource.EmptySnapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

type refreshResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
	Queued    bool      `json:"queued,omitempty"`
}

// handleRefresh runs a refresh now. A partial failure still answers 200 with
// the error text; only a total failure is a gateway error. With wait=false the
// refresh is queued on the poll loop and the call answers 202 at once.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if wait := r.URL.Query().Get("wait"); wait != "" {
		block, err := strconv.ParseBool(wait)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "wait must be a boolean")
			return
		}
		if !block {
			s.coord.RequestRefresh()
			resp := refreshResponse{Success: true, Queued: true}
			if snap := s.coord.Data(); snap != nil {
				resp.FetchedAt = snap.FetchedAt
			}
			writeJSON(w, http.StatusAccepted, resp)
			return
		}
	}

	snap, err := s.coord.Refresh(r.Context())
	resp := refreshResponse{Success: err == nil}
	if snap != nil {
		resp.FetchedAt = snap.FetchedAt
	}
	if err != nil {
		resp.Error = err.Error()
		var refreshErr *coordinator.RefreshError
		if !errors.As(err, &refreshErr) || refreshErr.Total() {
			writeError(w, http.StatusBadGateway, ErrCodeGateway, err.Error())
			return
		}
	}
	s.PublishStates()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	if s.diagnostics == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "diagnostics are not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.diagnostics.Report())
}

// handleListEntities accepts an optional ?platform= filter.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	platform := entity.Platform(r.URL.Query().Get("platform"))
	states := s.entities.States()
	out := make([]entity.State, 0, len(states))
	for _, state := range states {
		if platform != "" && state.Platform != platform {
			continue
		}
		out = append(out, state)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	state, err := s.entities.State(chi.URLParam(r, "key"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleEntityAction runs the action named in the path. The body is optional
// and carries the action's arguments.
func (s *Server) handleEntityAction(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var action entity.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	action.Name = chi.URLParam(r, "action")

	log := s.log.WithField("entity", key).WithField("action", action.Name).WithField("request_id", RequestID(r.Context()))
	if err := s.entities.Do(r.Context(), key, action); err != nil {
		log.WithError(err).Info("entity action failed")
		writeDomainError(w, err)
		return
	}

	state, err := s.entities.State(key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.PublishStates()
	writeJSON(w, http.StatusOK, state)
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/store"
)

// RunsHandler handles smoothing requests and run history for a trajectory.
type RunsHandler struct {
	store    *store.Store
	smoother Smoother
	cache    *RunCache
}

// NewRunsHandler creates a new RunsHandler. cache may be nil.
func NewRunsHandler(s *store.Store, smoother Smoother, cache *RunCache) *RunsHandler {
	return &RunsHandler{store: s, smoother: smoother, cache: cache}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths:
//
//	POST /api/trajectories/{id}/smooth
//	GET  /api/trajectories/{id}/runs
//	GET  /api/trajectories/{id}/runs/latest
//	GET  /api/trajectories/{id}/runs/{runID}
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/trajectories/")
	parts := strings.Split(path, "/")

	if len(parts) < 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	trajectoryID := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "smooth":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.smooth(w, r, trajectoryID)
	case len(parts) == 2 && parts[1] == "runs":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r, trajectoryID)
	case len(parts) == 3 && parts[1] == "runs":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if parts[2] == "latest" {
			h.latest(w, r, trajectoryID)
			return
		}
		h.get(w, r, trajectoryID, parts[2])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type runResponse struct {
	ID           string          `json:"id"`
	TrajectoryID string          `json:"trajectory_id"`
	Options      json.RawMessage `json:"options"`
	Parameters   []float64       `json:"parameters,omitempty"`
	Points       [][]float64     `json:"points,omitempty"`
	Residuals    []float64       `json:"residuals"`
	Warnings     int             `json:"warnings"`
	DurationMS   int64           `json:"duration_ms"`
	CreatedAt    string          `json:"created_at"`
}

type listRunsResponse struct {
	Runs []runResponse `json:"runs"`
}

type queuedResponse struct {
	Status       string `json:"status"`
	TrajectoryID string `json:"trajectory_id"`
}

// toRunResponse converts a run; points are omitted from summaries.
func toRunResponse(run *store.Run, withPoints bool) runResponse {
	resp := runResponse{
		ID:           run.ID,
		TrajectoryID: run.TrajectoryID,
		Options:      run.Options,
		Residuals:    run.Residuals,
		Warnings:     run.Warnings,
		DurationMS:   run.Duration.Milliseconds(),
		CreatedAt:    run.CreatedAt.Format(timeFormat),
	}
	if withPoints {
		resp.Parameters = run.Parameters
		resp.Points = run.Points
	}
	return resp
}

// smooth handles POST /api/trajectories/{id}/smooth. The optional body is a
// settings override. With ?async=1 the job is queued and 202 is returned.
func (h *RunsHandler) smooth(w http.ResponseWriter, r *http.Request, trajectoryID string) {
	if h.smoother == nil {
		writeError(w, http.StatusServiceUnavailable, "Smoothing is not available")
		return
	}

	var override *config.SmoothingConfig
	if r.Body != nil {
		var cfg config.SmoothingConfig
		err := decodeJSON(w, r, &cfg)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		default:
			if err := cfg.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			override = &cfg
		}
	}

	if r.URL.Query().Get("async") == "1" {
		if _, err := h.store.Trajectories().GetByID(trajectoryID); err != nil {
			writeSmoothingError(w, err)
			return
		}
		if err := h.smoother.Submit(trajectoryID, override); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, queuedResponse{Status: "queued", TrajectoryID: trajectoryID})
		return
	}

	run, err := h.smoother.SmoothNow(r.Context(), trajectoryID, override)
	if err != nil {
		writeSmoothingError(w, err)
		return
	}
	if h.cache != nil {
		h.cache.Set(run)
	}

	writeJSON(w, http.StatusCreated, toRunResponse(run, true))
}

// list handles GET /api/trajectories/{id}/runs.
func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request, trajectoryID string) {
	if _, err := h.store.Trajectories().GetByID(trajectoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Trajectory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get trajectory")
		return
	}

	runs, err := h.store.Runs().ListByTrajectory(trajectoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	response := listRunsResponse{Runs: make([]runResponse, 0, len(runs))}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run, false))
	}

	writeJSON(w, http.StatusOK, response)
}

// latest handles GET /api/trajectories/{id}/runs/latest.
func (h *RunsHandler) latest(w http.ResponseWriter, r *http.Request, trajectoryID string) {
	if h.cache != nil {
		if run, ok := h.cache.Get(trajectoryID); ok {
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, toRunResponse(run, true))
			return
		}
	}

	run, err := h.store.Runs().Latest(trajectoryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No runs for trajectory")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	if h.cache != nil {
		h.cache.Set(run)
	}

	writeJSON(w, http.StatusOK, toRunResponse(run, true))
}

// get handles GET /api/trajectories/{id}/runs/{runID}.
func (h *RunsHandler) get(w http.ResponseWriter, r *http.Request, trajectoryID, runID string) {
	run, err := h.store.Runs().GetByID(runID)
	if err != nil || run.TrajectoryID != trajectoryID {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(run, true))
}

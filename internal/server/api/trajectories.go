package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/kinesmooth/internal/smoothing"
	"github.com/ayusman/kinesmooth/internal/store"
)

// TrajectoryHandler handles HTTP requests for trajectory resources.
type TrajectoryHandler struct {
	store *store.Store
	cache *RunCache
}

// NewTrajectoryHandler creates a new TrajectoryHandler. Changes to a
// trajectory invalidate its entry in cache, which may be nil.
func NewTrajectoryHandler(s *store.Store, cache *RunCache) *TrajectoryHandler {
	return &TrajectoryHandler{store: s, cache: cache}
}

// ServeHTTP routes /api/trajectories and /api/trajectories/{id}.
func (h *TrajectoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/trajectories")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createTrajectoryRequest struct {
	Name   string      `json:"name"`
	Points [][]float64 `json:"points"`
}

type updateTrajectoryRequest struct {
	Name   string      `json:"name"`
	Points [][]float64 `json:"points"`
}

type trajectoryResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Dimensions int         `json:"dimensions"`
	PointCount int         `json:"point_count"`
	Points     [][]float64 `json:"points,omitempty"`
	CreatedAt  string      `json:"created_at"`
	UpdatedAt  string      `json:"updated_at"`
}

type listTrajectoriesResponse struct {
	Trajectories []trajectoryResponse `json:"trajectories"`
}

func toTrajectoryResponse(t *store.Trajectory) trajectoryResponse {
	return trajectoryResponse{
		ID:         t.ID,
		Name:       t.Name,
		Dimensions: t.Dimensions,
		PointCount: t.PointCount,
		CreatedAt:  t.CreatedAt.Format(timeFormat),
		UpdatedAt:  t.UpdatedAt.Format(timeFormat),
	}
}

// validatePoints rejects empty, ragged or zero-width point lists.
func validatePoints(points [][]float64) error {
	_, err := smoothing.PointSequence(points).Dimensions()
	return err
}

// list handles GET /api/trajectories.
func (h *TrajectoryHandler) list(w http.ResponseWriter, r *http.Request) {
	trajectories, err := h.store.Trajectories().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list trajectories")
		return
	}

	response := listTrajectoriesResponse{
		Trajectories: make([]trajectoryResponse, 0, len(trajectories)),
	}
	for _, t := range trajectories {
		response.Trajectories = append(response.Trajectories, toTrajectoryResponse(t))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/trajectories/{id}, including the points.
func (h *TrajectoryHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	traj, err := h.store.Trajectories().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Trajectory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get trajectory")
		return
	}

	points, err := h.store.Trajectories().GetPoints(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get points")
		return
	}

	response := toTrajectoryResponse(traj)
	response.Points = points
	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/trajectories.
func (h *TrajectoryHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTrajectoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.Points != nil {
		if err := validatePoints(req.Points); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if _, err := h.store.Trajectories().GetByName(req.Name); err == nil {
		writeError(w, http.StatusConflict, "Trajectory name already exists")
		return
	}

	traj := &store.Trajectory{
		ID:   uuid.New().String(),
		Name: req.Name,
	}
	if err := h.store.Trajectories().Create(traj); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create trajectory")
		return
	}

	if req.Points != nil {
		if err := h.store.Trajectories().SetPoints(traj.ID, req.Points); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save points")
			return
		}
		traj.Dimensions = len(req.Points[0])
		traj.PointCount = len(req.Points)
	}

	writeJSON(w, http.StatusCreated, toTrajectoryResponse(traj))
}

// update handles PUT /api/trajectories/{id}. Replacing the points keeps old
// runs but invalidates the cached latest run.
func (h *TrajectoryHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	traj, err := h.store.Trajectories().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Trajectory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get trajectory")
		return
	}

	var req updateTrajectoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Points != nil {
		if err := validatePoints(req.Points); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if req.Name != "" && req.Name != traj.Name {
		traj.Name = req.Name
		if err := h.store.Trajectories().Update(traj); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to update trajectory")
			return
		}
	}

	if req.Points != nil {
		if err := h.store.Trajectories().SetPoints(id, req.Points); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save points")
			return
		}
		if traj, err = h.store.Trajectories().GetByID(id); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get trajectory")
			return
		}
	}

	h.invalidate(id)
	writeJSON(w, http.StatusOK, toTrajectoryResponse(traj))
}

// delete handles DELETE /api/trajectories/{id}.
func (h *TrajectoryHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Trajectories().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Trajectory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete trajectory")
		return
	}

	h.invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *TrajectoryHandler) invalidate(id string) {
	if h.cache != nil {
		h.cache.Invalidate(id)
	}
}

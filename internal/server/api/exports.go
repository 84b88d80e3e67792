package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/kinesmooth/internal/plugin"
	"github.com/ayusman/kinesmooth/internal/store"
)

// ExportHandler handles HTTP requests for export bindings.
type ExportHandler struct {
	store   *store.Store
	plugins *plugin.Manager
}

// NewExportHandler creates a new ExportHandler. When plugins is non-nil,
// bindings must name a discovered plugin and one of its actions.
func NewExportHandler(s *store.Store, plugins *plugin.Manager) *ExportHandler {
	return &ExportHandler{store: s, plugins: plugins}
}

// ServeHTTP routes /api/exports and /api/exports/{id}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/exports")
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

type createExportRequest struct {
	TrajectoryID string          `json:"trajectory_id"`
	PluginName   string          `json:"plugin_name"`
	ActionName   string          `json:"action_name"`
	Config       json.RawMessage `json:"config"`
}

type updateExportRequest struct {
	TrajectoryID string          `json:"trajectory_id"`
	PluginName   string          `json:"plugin_name"`
	ActionName   string          `json:"action_name"`
	Config       json.RawMessage `json:"config"`
	Enabled      *bool           `json:"enabled"`
}

type exportResponse struct {
	ID           string          `json:"id"`
	TrajectoryID string          `json:"trajectory_id"`
	PluginName   string          `json:"plugin_name"`
	ActionName   string          `json:"action_name"`
	Config       json.RawMessage `json:"config"`
	Enabled      bool            `json:"enabled"`
	CreatedAt    string          `json:"created_at"`
}

type listExportsResponse struct {
	Exports []exportResponse `json:"exports"`
}

func toExportResponse(e *store.Export) exportResponse {
	config := e.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return exportResponse{
		ID:           e.ID,
		TrajectoryID: e.TrajectoryID,
		PluginName:   e.PluginName,
		ActionName:   e.ActionName,
		Config:       config,
		Enabled:      e.Enabled,
		CreatedAt:    e.CreatedAt.Format(timeFormat),
	}
}

// checkPlugin verifies the plugin and action exist when a manager is set.
func (h *ExportHandler) checkPlugin(name, action string) string {
	if h.plugins == nil {
		return ""
	}
	p, err := h.plugins.Get(name)
	if err != nil {
		return "Plugin not found"
	}
	if !p.Manifest.HasAction(action) {
		return "Plugin does not support action " + action
	}
	return ""
}

// list handles GET /api/exports.
func (h *ExportHandler) list(w http.ResponseWriter, r *http.Request) {
	exports, err := h.store.Exports().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exports")
		return
	}

	response := listExportsResponse{
		Exports: make([]exportResponse, 0, len(exports)),
	}
	for _, e := range exports {
		response.Exports = append(response.Exports, toExportResponse(e))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/exports/{id}.
func (h *ExportHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	export, err := h.store.Exports().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Export not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get export")
		return
	}

	writeJSON(w, http.StatusOK, toExportResponse(export))
}

// create handles POST /api/exports.
func (h *ExportHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createExportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.TrajectoryID == "" {
		writeError(w, http.StatusBadRequest, "trajectory_id is required")
		return
	}
	if req.PluginName == "" {
		writeError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}
	if req.ActionName == "" {
		writeError(w, http.StatusBadRequest, "action_name is required")
		return
	}
	if msg := h.checkPlugin(req.PluginName, req.ActionName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.store.Trajectories().GetByID(req.TrajectoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "Trajectory not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to verify trajectory")
		return
	}

	existing, err := h.store.Exports().GetByTrajectoryID(req.TrajectoryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check existing export")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "Export already bound to this trajectory")
		return
	}

	config := req.Config
	if config == nil {
		config = json.RawMessage("{}")
	}

	export := &store.Export{
		ID:           uuid.New().String(),
		TrajectoryID: req.TrajectoryID,
		PluginName:   req.PluginName,
		ActionName:   req.ActionName,
		Config:       config,
		Enabled:      true,
	}

	if err := h.store.Exports().Create(export); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create export")
		return
	}

	writeJSON(w, http.StatusCreated, toExportResponse(export))
}

// update handles PUT /api/exports/{id}.
func (h *ExportHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	export, err := h.store.Exports().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Export not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get export")
		return
	}

	var req updateExportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.TrajectoryID != "" && req.TrajectoryID != export.TrajectoryID {
		if _, err := h.store.Trajectories().GetByID(req.TrajectoryID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "Trajectory not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to verify trajectory")
			return
		}
		export.TrajectoryID = req.TrajectoryID
	}
	if req.PluginName != "" {
		export.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		export.ActionName = req.ActionName
	}
	if msg := h.checkPlugin(export.PluginName, export.ActionName); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Config != nil {
		export.Config = req.Config
	}
	if req.Enabled != nil {
		export.Enabled = *req.Enabled
	}

	if err := h.store.Exports().Update(export); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update export")
		return
	}

	writeJSON(w, http.StatusOK, toExportResponse(export))
}

// delete handles DELETE /api/exports/{id}.
func (h *ExportHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Exports().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Export not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete export")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

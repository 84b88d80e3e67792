// Package api provides HTTP API handlers for trajectories, smoothing runs and
// export bindings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/smoothing"
	"github.com/ayusman/kinesmooth/internal/store"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// maxBodyBytes caps request bodies; point payloads can be large.
const maxBodyBytes = 32 << 20

// Smoother runs smoothing for stored trajectories.
type Smoother interface {
	SmoothNow(ctx context.Context, trajectoryID string, override *config.SmoothingConfig) (*store.Run, error)
	Submit(trajectoryID string, override *config.SmoothingConfig) error
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON decodes a size-limited request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeSmoothingError maps smoothing and store errors to status codes.
func writeSmoothingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Trajectory not found")
	case errors.Is(err, smoothing.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, smoothing.ErrNumericalFailure):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Smoothing cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "Smoothing failed")
	}
}

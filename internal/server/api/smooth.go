package api

import (
	"net/http"

	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/quality"
	"github.com/ayusman/kinesmooth/internal/smoothing"
)

// SmoothHandler smooths inline point sequences without storing them.
type SmoothHandler struct {
	base *config.SmoothingConfig
}

// NewSmoothHandler creates a SmoothHandler using base as the default
// settings; nil means defaults.
func NewSmoothHandler(base *config.SmoothingConfig) *SmoothHandler {
	if base == nil {
		base = config.DefaultSmoothingConfig()
	}
	return &SmoothHandler{base: base}
}

type smoothRequest struct {
	Points  [][]float64             `json:"points"`
	Options *config.SmoothingConfig `json:"options"`
}

type smoothResponse struct {
	Options    smoothing.Options            `json:"options"`
	Parameters []float64                    `json:"parameters"`
	Samples    []float64                    `json:"samples"`
	Points     [][]float64                  `json:"points"`
	Channels   []smoothing.FittedCurve      `json:"channels"`
	Residuals  []float64                    `json:"residuals"`
	Warnings   []smoothing.DuplicateWarning `json:"warnings"`
	Deviation  quality.Deviation            `json:"deviation"`
}

// ServeHTTP handles POST /api/smooth.
func (h *SmoothHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req smoothRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	settings := h.base.Merge(req.Options)
	if err := settings.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := settings.Options()
	result, err := smoothing.NewPipeline(opts, nil).Smooth(r.Context(), req.Points)
	if err != nil {
		writeSmoothingError(w, err)
		return
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []smoothing.DuplicateWarning{}
	}

	writeJSON(w, http.StatusOK, smoothResponse{
		Options:    opts,
		Parameters: result.Parameters,
		Samples:    result.Samples,
		Points:     result.Points,
		Channels:   result.Channels,
		Residuals:  result.Residuals,
		Warnings:   warnings,
		Deviation:  quality.Compare(req.Points, result.Points),
	})
}

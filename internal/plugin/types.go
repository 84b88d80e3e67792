// Package plugin discovers and runs export sink plugins. A plugin is a
// directory holding a plugin.json manifest and an executable that reads one
// JSON Request on stdin and writes one JSON Response on stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// HasAction reports whether the manifest declares the named action.
func (m Manifest) HasAction(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a plugin for each completed smoothing run.
type Request struct {
	Action     string          `json:"action"`
	Trajectory string          `json:"trajectory"`
	RunID      string          `json:"run_id,omitempty"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// RunParams is the Params payload of a Request built from a smoothing run.
type RunParams struct {
	Parameters []float64   `json:"parameters"`
	Points     [][]float64 `json:"points"`
	Residuals  []float64   `json:"residuals,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

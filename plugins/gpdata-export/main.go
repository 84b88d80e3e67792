// Package main provides a sink plugin that writes smoothed trajectories as
// comma separated rows readable by gnuplot.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ayusman/kinesmooth/internal/mocap"
	"github.com/ayusman/kinesmooth/internal/plugin"
	"github.com/ayusman/kinesmooth/internal/smoothing"
)

const defaultPath = "/tmp/tdata.gpdata"

// Config is the per-export plugin configuration.
type Config struct {
	Path string `json:"path"`
	// WithParameter prefixes each row with its curve parameter.
	WithParameter bool `json:"with_parameter"`
}

// Result is returned in the response data.
type Result struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(plugin.Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	result, err := handle(&req)
	if err != nil {
		writeResponse(plugin.Response{Error: fmt.Sprintf("action %s failed: %v", req.Action, err)})
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		writeResponse(plugin.Response{Error: err.Error()})
		return
	}
	writeResponse(plugin.Response{Success: true, Data: data})
}

// handle writes or appends the request's points to the configured file.
func handle(req *plugin.Request) (*Result, error) {
	cfg := Config{Path: defaultPath}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		if cfg.Path == "" {
			cfg.Path = defaultPath
		}
	}

	var params plugin.RunParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, fmt.Errorf("failed to parse params: %w", err)
	}
	if len(params.Points) == 0 {
		return nil, fmt.Errorf("no points to write")
	}

	rows := smoothing.PointSequence(params.Points)
	if cfg.WithParameter {
		if len(params.Parameters) != len(params.Points) {
			return nil, fmt.Errorf("have %d parameters for %d points", len(params.Parameters), len(params.Points))
		}
		rows = make(smoothing.PointSequence, len(params.Points))
		for i, p := range params.Points {
			rows[i] = append([]float64{params.Parameters[i]}, p...)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	switch req.Action {
	case "write":
		flags |= os.O_TRUNC
	case "append":
		flags |= os.O_APPEND
	default:
		return nil, fmt.Errorf("unknown action: %s", req.Action)
	}

	f, err := os.OpenFile(cfg.Path, flags, 0644)
	if err != nil {
		return nil, err
	}
	if err := mocap.WriteRows(f, rows); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return &Result{Path: cfg.Path, Rows: len(rows)}, nil
}

func writeResponse(resp plugin.Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}

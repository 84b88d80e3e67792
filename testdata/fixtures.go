// Package testdata embeds sample trajectories used by the end-to-end tests.
package testdata

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"

	"github.com/ayusman/kinesmooth/internal/mocap"
	"github.com/ayusman/kinesmooth/internal/smoothing"
)

//go:embed trajectories/*.txt
var trajectoriesFS embed.FS

// LoadTrajectory loads a sample trajectory by name, without extension.
func LoadTrajectory(name string) (smoothing.PointSequence, error) {
	data, err := trajectoriesFS.ReadFile("trajectories/" + name + ".txt")
	if err != nil {
		return nil, fmt.Errorf("load trajectory %s: %w", name, err)
	}

	points, err := mocap.ReadRows(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse trajectory %s: %w", name, err)
	}
	return points, nil
}

// Names lists the embedded trajectories.
func Names() ([]string, error) {
	entries, err := trajectoriesFS.ReadDir("trajectories")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
	}
	return names, nil
}

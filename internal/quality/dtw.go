// Package quality compares raw and smoothed trajectories.
package quality

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DTWDistance calculates the Dynamic Time Warping distance between two
// n-dimensional paths, normalized by the longer path length.
// Returns infinity if either path is empty or the dimensions differ.
func DTWDistance(a, b [][]float64) float64 {
	n := len(a)
	m := len(b)
	if n == 0 || m == 0 || len(a[0]) != len(b[0]) {
		return math.Inf(1)
	}

	// Two rolling rows of the (n+1) x (m+1) cost matrix.
	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := range prev {
		prev[j] = math.Inf(1)
	}
	prev[0] = 0

	for i := 1; i <= n; i++ {
		curr[0] = math.Inf(1)
		for j := 1; j <= m; j++ {
			cost := floats.Distance(a[i-1], b[j-1], 2)
			curr[j] = cost + min(prev[j], curr[j-1], prev[j-1])
		}
		prev, curr = curr, prev
	}

	return prev[m] / float64(max(n, m))
}

// Resample resamples a path to exactly n points by linear interpolation over
// the sample index.
func Resample(path [][]float64, n int) [][]float64 {
	if len(path) == 0 || n <= 0 {
		return nil
	}
	if len(path) == 1 || n == 1 {
		return [][]float64{append([]float64(nil), path[0]...)}
	}

	out := make([][]float64, n)
	for i := range out {
		pos := float64(i) / float64(n-1) * float64(len(path)-1)
		idx := int(pos)
		if idx >= len(path)-1 {
			idx = len(path) - 2
		}
		frac := pos - float64(idx)

		p1, p2 := path[idx], path[idx+1]
		row := make([]float64, len(p1))
		for d := range row {
			row[d] = p1[d] + frac*(p2[d]-p1[d])
		}
		out[i] = row
	}
	return out
}

// RMS returns the root mean square of values, or zero when empty.
func RMS(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Norm(values, 2) / math.Sqrt(float64(len(values)))
}

// Deviation summarises how far a smoothed path strays from the raw one.
type Deviation struct {
	DTW     float64 `json:"dtw"`
	MaxStep float64 `json:"max_step"`
}

// Compare resamples smoothed onto the raw path length and reports the DTW
// distance together with the largest point-to-point gap.
func Compare(raw, smoothed [][]float64) Deviation {
	aligned := Resample(smoothed, len(raw))
	dev := Deviation{DTW: DTWDistance(raw, aligned)}
	if len(aligned) != len(raw) {
		dev.MaxStep = math.Inf(1)
		return dev
	}
	for i := range raw {
		if len(raw[i]) != len(aligned[i]) {
			dev.MaxStep = math.Inf(1)
			return dev
		}
		dev.MaxStep = max(dev.MaxStep, floats.Distance(raw[i], aligned[i], 2))
	}
	return dev
}

// Package smoothing turns noisy, discretely sampled n-dimensional trajectories
// into smooth curves. A trajectory is parametrized once by cumulative chord
// length and every dimension is then fitted independently with a regularized
// least-squares cubic B-spline sharing that parameter axis.
package smoothing

import (
	"fmt"
	"math"
)

// PointSequence is an ordered list of n-dimensional tuples. Order is the
// sampling order of the trajectory, not a sort key.
type PointSequence [][]float64

// ParameterSequence holds one monotonically increasing parameter per point,
// starting at zero.
type ParameterSequence []float64

// Channel is one dimension of a PointSequence, one scalar per point.
type Channel []float64

// Sample is a single (time, value) observation of a scalar series.
type Sample struct {
	T     float64 `json:"t"`
	Value float64 `json:"value"`
}

// CurvePoint is one evaluation of a fitted curve.
type CurvePoint struct {
	T      float64 `json:"t"`
	Value  float64 `json:"value"`
	StdErr float64 `json:"std_err"`
}

// FittedCurve is the resampled output of a single channel fit.
type FittedCurve []CurvePoint

// Values returns the fitted values in evaluation order.
func (c FittedCurve) Values() []float64 {
	out := make([]float64, len(c))
	for i, p := range c {
		out[i] = p.Value
	}
	return out
}

// Dimensions returns the tuple width shared by all points.
// It fails if the sequence is empty, ragged, zero-width or holds non-finite values.
func (s PointSequence) Dimensions() (int, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("%w: empty point sequence", ErrInvalidArgument)
	}
	dim := len(s[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: point 0 has no coordinates", ErrInvalidArgument)
	}
	for i, p := range s {
		if len(p) != dim {
			return 0, fmt.Errorf("%w: point %d has %d coordinates, expected %d", ErrInvalidArgument, i, len(p), dim)
		}
		for _, v := range p {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: point %d has non-finite coordinate", ErrInvalidArgument, i)
			}
		}
	}
	return dim, nil
}

// Column extracts dimension d as a Channel.
func (s PointSequence) Column(d int) Channel {
	ch := make(Channel, len(s))
	for i, p := range s {
		ch[i] = p[d]
	}
	return ch
}

// Zip recombines equally long channels into a PointSequence.
func Zip(channels []Channel) PointSequence {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	out := make(PointSequence, n)
	for i := range out {
		row := make([]float64, len(channels))
		for d, ch := range channels {
			row[d] = ch[i]
		}
		out[i] = row
	}
	return out
}

package smoothing

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Boxcar applies a moving-average (boxcar FIR) filter of the given order to a
// scalar series.
//
// Each output value is the mean of the next order values starting at the same
// position, so the window shrinks by one sample per step as it approaches the
// tail. Output length equals input length and the time of every output sample
// is copied from the input at the same position. An order of 1 returns the
// input values unchanged.
func Boxcar(series []Sample, order int) ([]Sample, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: series is required", ErrInvalidArgument)
	}
	if order < 1 {
		return nil, fmt.Errorf("%w: order must be >= 1, got %d", ErrInvalidArgument, order)
	}

	values := make([]float64, len(series))
	for i, s := range series {
		values[i] = s.Value
	}
	averaged := boxcar(values, order)

	out := make([]Sample, len(series))
	for i, s := range series {
		out[i] = Sample{T: s.T, Value: averaged[i]}
	}
	return out, nil
}

// BoxcarChannel filters a bare channel runs times with the given order.
// Sample times are the row indexes, which the filter never changes.
func BoxcarChannel(values Channel, order, runs int) (Channel, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: channel is required", ErrInvalidArgument)
	}
	if order < 1 {
		return nil, fmt.Errorf("%w: order must be >= 1, got %d", ErrInvalidArgument, order)
	}
	if runs < 1 {
		return nil, fmt.Errorf("%w: runs must be >= 1, got %d", ErrInvalidArgument, runs)
	}

	out := Channel(values)
	for r := 0; r < runs; r++ {
		out = boxcar(out, order)
	}
	return out, nil
}

func boxcar(values []float64, order int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		end := min(i+order, len(values))
		window := values[i:end]
		out[i] = floats.Sum(window) / float64(len(window))
	}
	return out
}

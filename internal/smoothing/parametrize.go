package smoothing

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// DefaultDegeneracyOffset is added to a parameter that would otherwise equal
// its predecessor. The value is empirical and kept as-is.
const DefaultDegeneracyOffset = 40.0

// DuplicateWarning reports a pair of consecutive points whose chord length
// left the parameter unchanged. It is a diagnostic; the corrected parameter is
// used and processing continues.
type DuplicateWarning struct {
	Index     int       `json:"index"`
	Parameter float64   `json:"parameter"`
	Corrected float64   `json:"corrected"`
	Previous  []float64 `json:"previous"`
	Current   []float64 `json:"current"`
}

func (w DuplicateWarning) String() string {
	return fmt.Sprintf("duplicate point at index %d: t[%d] = t[%d] = %g, corrected to %g (input[%d] = %s, input[%d] = %s)",
		w.Index, w.Index-1, w.Index, w.Parameter, w.Corrected,
		w.Index-1, joinFloats(w.Previous), w.Index, joinFloats(w.Current))
}

// Parametrizer assigns a cumulative chord-length parameter to each point of a
// trajectory.
type Parametrizer struct {
	// Offset is added to a parameter equal to its predecessor. It must be
	// positive and finite.
	Offset float64

	// OnDuplicate receives each correction. When nil, corrections are
	// reported through Logf.
	OnDuplicate func(DuplicateWarning)
}

// NewParametrizer returns a Parametrizer using DefaultDegeneracyOffset.
func NewParametrizer() *Parametrizer {
	return &Parametrizer{Offset: DefaultDegeneracyOffset}
}

// Parametrize returns t with t[0] = 0 and t[i] = t[i-1] + |p[i] - p[i-1]|.
// When a step leaves t unchanged (coincident points, or a distance too small
// to register) the Offset is added and a DuplicateWarning is emitted. The
// returned parameters are strictly increasing.
func (p *Parametrizer) Parametrize(points PointSequence) (ParameterSequence, []DuplicateWarning, error) {
	if !(p.Offset > 0) || math.IsInf(p.Offset, 1) {
		return nil, nil, fmt.Errorf("%w: degeneracy offset must be positive and finite, got %g", ErrInvalidArgument, p.Offset)
	}
	if _, err := points.Dimensions(); err != nil {
		return nil, nil, err
	}

	var warnings []DuplicateWarning
	t := make(ParameterSequence, len(points))
	for i := 1; i < len(points); i++ {
		t[i] = t[i-1] + floats.Distance(points[i], points[i-1], 2)
		if t[i] != t[i-1] {
			continue
		}

		w := DuplicateWarning{
			Index:     i,
			Parameter: t[i],
			Corrected: t[i] + p.Offset,
			Previous:  slices.Clone(points[i-1]),
			Current:   slices.Clone(points[i]),
		}
		if w.Corrected <= t[i-1] {
			return nil, nil, fmt.Errorf("%w: offset %g is lost at parameter %g", ErrInvalidArgument, p.Offset, t[i])
		}
		t[i] = w.Corrected
		warnings = append(warnings, w)
		p.report(w)
	}

	return t, warnings, nil
}

func (p *Parametrizer) report(w DuplicateWarning) {
	if p.OnDuplicate != nil {
		p.OnDuplicate(w)
		return
	}
	Logf("(WW) is the data malformed? %s", w)
}

// Parametrize runs a default Parametrizer over points.
func Parametrize(points PointSequence) (ParameterSequence, []DuplicateWarning, error) {
	return NewParametrizer().Parametrize(points)
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return strings.Join(parts, ", ")
}

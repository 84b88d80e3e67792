package smoothing

import "sort"

// splineOrder is the B-spline order (polynomial degree + 1) used for fitting.
const splineOrder = 4

// bsplineBasis is a clamped B-spline basis with uniformly spaced breakpoints
// over [lo, hi]. The knot vector repeats each end breakpoint order times.
type bsplineBasis struct {
	order int
	knots []float64
	ncoef int
	lo    float64
	hi    float64

	left  []float64
	right []float64
}

// newUniformBasis builds a basis of the given order with ncoef coefficients,
// which implies ncoef-order+2 breakpoints spaced evenly over [lo, hi].
func newUniformBasis(order, ncoef int, lo, hi float64) *bsplineBasis {
	nbreak := ncoef - order + 2
	knots := make([]float64, 0, ncoef+order)
	for i := 0; i < order; i++ {
		knots = append(knots, lo)
	}
	step := (hi - lo) / float64(nbreak-1)
	for i := 1; i < nbreak-1; i++ {
		knots = append(knots, lo+float64(i)*step)
	}
	for i := 0; i < order; i++ {
		knots = append(knots, hi)
	}

	return &bsplineBasis{
		order: order,
		knots: knots,
		ncoef: ncoef,
		lo:    lo,
		hi:    hi,
		left:  make([]float64, order),
		right: make([]float64, order),
	}
}

// breakpoints returns the number of distinct breakpoints including both ends.
func (b *bsplineBasis) breakpoints() int {
	return b.ncoef - b.order + 2
}

// span returns the knot interval index i with knots[i] <= x < knots[i+1],
// clamped to the last non-empty interval at the right end.
func (b *bsplineBasis) span(x float64) int {
	last := b.ncoef - 1
	if x >= b.knots[last+1] {
		return last
	}
	p := b.order - 1
	// First knot strictly greater than x, searched over the interior range.
	i := sort.Search(last+1-p, func(j int) bool { return b.knots[p+1+j] > x })
	return p + i
}

// eval writes all ncoef basis values at x into dst, which must have length
// ncoef. Points outside [lo, hi] are clamped to the nearest end.
func (b *bsplineBasis) eval(x float64, dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
	x = min(max(x, b.lo), b.hi)

	p := b.order - 1
	i := b.span(x)
	n := dst[i-p : i+1]
	n[0] = 1
	for j := 1; j <= p; j++ {
		b.left[j] = x - b.knots[i+1-j]
		b.right[j] = b.knots[i+j] - x
		saved := 0.0
		for r := 0; r < j; r++ {
			tmp := n[r] / (b.right[r+1] + b.left[j-r])
			n[r] = saved + b.right[r+1]*tmp
			saved = b.left[j-r] * tmp
		}
		n[j] = saved
	}
}

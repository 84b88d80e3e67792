package smoothing

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinCoefficients is the smallest basis size a cubic B-spline supports.
const MinCoefficients = splineOrder

// rankTolerance is the relative singular value cutoff below which the design
// matrix is treated as rank deficient.
const rankTolerance = 1e-10

// FitOptions configures a single channel fit.
type FitOptions struct {
	// CoefficientCount is the number of spline coefficients. It must be at
	// least MinCoefficients and smaller than the number of observations.
	CoefficientCount int

	// SampleCount is the number of evenly spaced evaluation points.
	SampleCount int

	// NoiseSigma is the standard deviation of the Gaussian noise added to each
	// observation, and the weight given to each observation in the solve.
	NoiseSigma float64

	// Source drives noise injection. A nil Source draws a fresh random seed.
	Source rand.Source
}

func (o FitOptions) validate(m int) error {
	if o.CoefficientCount < MinCoefficients {
		return fmt.Errorf("%w: coefficient count %d is below the cubic minimum %d", ErrInvalidArgument, o.CoefficientCount, MinCoefficients)
	}
	if o.CoefficientCount >= m {
		return fmt.Errorf("%w: coefficient count %d must be smaller than the %d observations", ErrInvalidArgument, o.CoefficientCount, m)
	}
	if o.SampleCount < 1 {
		return fmt.Errorf("%w: sample count must be >= 1, got %d", ErrInvalidArgument, o.SampleCount)
	}
	if o.NoiseSigma < 0 || math.IsNaN(o.NoiseSigma) || math.IsInf(o.NoiseSigma, 0) {
		return fmt.Errorf("%w: noise sigma must be finite and >= 0, got %g", ErrInvalidArgument, o.NoiseSigma)
	}
	return nil
}

// model is the fitted basis representation of one channel. It lives for the
// duration of a single fit.
type model struct {
	basis *bsplineBasis
	coef  *mat.VecDense
	cov   *mat.SymDense
	buf   []float64
}

// Fit smooths one channel against its parameters with a weighted
// least-squares cubic B-spline and evaluates the result on an even grid of
// SampleCount points over [0, max(params)].
//
// Every observation is perturbed by N(0, NoiseSigma) before the solve, which
// turns an otherwise exact interpolation into a smoothing fit. Results are
// reproducible only when opts.Source is seeded.
func Fit(params ParameterSequence, values Channel, opts FitOptions) (FittedCurve, error) {
	md, err := fitModel(params, values, opts)
	if err != nil {
		return nil, err
	}
	return md.sample(opts.SampleCount), nil
}

func fitModel(params ParameterSequence, values Channel, opts FitOptions) (*model, error) {
	m := len(params)
	if m == 0 || values == nil {
		return nil, fmt.Errorf("%w: parameters and values are required", ErrInvalidArgument)
	}
	if len(values) != m {
		return nil, fmt.Errorf("%w: %d parameters but %d values", ErrInvalidArgument, m, len(values))
	}
	if err := opts.validate(m); err != nil {
		return nil, err
	}
	for i := range params {
		if math.IsNaN(params[i]) || math.IsInf(params[i], 0) || math.IsNaN(values[i]) || math.IsInf(values[i], 0) {
			return nil, fmt.Errorf("%w: non-finite observation at index %d", ErrInvalidArgument, i)
		}
	}
	if lo := floats.Min(params); lo < 0 {
		return nil, fmt.Errorf("%w: parameter %g lies below zero", ErrInvalidArgument, lo)
	}
	hi := floats.Max(params)
	if hi <= 0 {
		return nil, fmt.Errorf("%w: parameters do not span a positive range", ErrInvalidArgument)
	}

	src := opts.Source
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	noise := distuv.Normal{Mu: 0, Sigma: opts.NoiseSigma, Src: src}

	weight := opts.NoiseSigma
	if weight == 0 {
		weight = 1
	}
	sw := math.Sqrt(weight)

	ncoef := opts.CoefficientCount
	basis := newUniformBasis(splineOrder, ncoef, 0, hi)
	row := make([]float64, ncoef)

	// Rows are pre-scaled by sqrt(weight) so an ordinary solve of the scaled
	// system minimises the weighted residual.
	x := mat.NewDense(m, ncoef, nil)
	y := mat.NewVecDense(m, nil)
	for i, t := range params {
		basis.eval(t, row)
		floats.Scale(sw, row)
		x.SetRow(i, row)

		yi := values[i]
		if opts.NoiseSigma > 0 {
			yi += noise.Rand()
		}
		y.SetVec(i, sw*yi)
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, fmt.Errorf("%w: singular value decomposition did not converge", ErrNumericalFailure)
	}
	rank := svd.Rank(rankTolerance)
	if rank < ncoef {
		return nil, fmt.Errorf("%w: design matrix has rank %d, need %d (parameters do not cover every breakpoint interval)",
			ErrNumericalFailure, rank, ncoef)
	}

	var coef mat.VecDense
	svd.SolveVecTo(&coef, y, rank)

	// (XᵀWX)⁻¹ = V Σ⁻² Vᵀ
	var v mat.Dense
	svd.VTo(&v)
	s := svd.Values(nil)
	cov := mat.NewSymDense(ncoef, nil)
	for i := 0; i < ncoef; i++ {
		for j := i; j < ncoef; j++ {
			var sum float64
			for k, sk := range s {
				sum += v.At(i, k) * v.At(j, k) / (sk * sk)
			}
			cov.SetSym(i, j, sum)
		}
	}

	return &model{basis: basis, coef: &coef, cov: cov, buf: row}, nil
}

// eval returns the fitted value at t and its estimated standard error.
func (md *model) eval(t float64) (value, stdErr float64) {
	md.basis.eval(t, md.buf)
	b := mat.NewVecDense(len(md.buf), md.buf)
	value = mat.Dot(b, md.coef)
	variance := mat.Inner(b, md.cov, b)
	if variance > 0 {
		stdErr = math.Sqrt(variance)
	}
	return value, stdErr
}

// sample evaluates the model on n points spread evenly over the basis range.
func (md *model) sample(n int) FittedCurve {
	grid := make([]float64, n)
	if n == 1 {
		grid[0] = md.basis.lo
	} else {
		floats.Span(grid, md.basis.lo, md.basis.hi)
	}

	curve := make(FittedCurve, n)
	for i, t := range grid {
		value, stdErr := md.eval(t)
		curve[i] = CurvePoint{T: t, Value: value, StdErr: stdErr}
	}
	return curve
}

// rmsResidual is the root mean square difference between the model and the
// unperturbed observations.
func (md *model) rmsResidual(params ParameterSequence, values Channel) float64 {
	res := make([]float64, len(params))
	for i, t := range params {
		v, _ := md.eval(t)
		res[i] = values[i] - v
	}
	return floats.Norm(res, 2) / math.Sqrt(float64(len(res)))
}

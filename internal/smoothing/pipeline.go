package smoothing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Default pipeline settings.
const (
	DefaultCoefficientCount = 45
	DefaultNoiseSigma       = 0.1
	DefaultBoxcarRuns       = 1
)

// Options configures a Pipeline.
type Options struct {
	// CoefficientCount is the spline basis size per channel.
	CoefficientCount int `json:"coefficient_count"`

	// SampleCount is the output resolution. Zero means one output point per
	// input point.
	SampleCount int `json:"sample_count"`

	// NoiseSigma is the regularisation noise magnitude.
	NoiseSigma float64 `json:"noise_sigma"`

	// BoxcarOrder enables the moving-average pre-filter when greater than 1.
	BoxcarOrder int `json:"boxcar_order"`

	// BoxcarRuns is how many times the pre-filter is applied.
	BoxcarRuns int `json:"boxcar_runs"`

	// DegeneracyOffset is added to parameters of coincident points.
	DegeneracyOffset float64 `json:"degeneracy_offset"`

	// Seed makes noise injection reproducible. Each channel draws from its
	// own stream derived from the seed and the channel index.
	Seed *uint64 `json:"seed,omitempty"`

	// Parallelism bounds concurrent channel fits. Zero uses GOMAXPROCS.
	Parallelism int `json:"parallelism"`
}

// DefaultOptions returns the settings the smoother was tuned with.
func DefaultOptions() Options {
	return Options{
		CoefficientCount: DefaultCoefficientCount,
		NoiseSigma:       DefaultNoiseSigma,
		BoxcarRuns:       DefaultBoxcarRuns,
		DegeneracyOffset: DefaultDegeneracyOffset,
	}
}

// Result is the output of one pipeline run.
type Result struct {
	// Parameters holds the chord-length parameter of every input point.
	Parameters ParameterSequence `json:"parameters"`
	// Samples holds the shared evaluation grid.
	Samples []float64 `json:"samples"`
	// Points is the smoothed trajectory, one row per evaluation point.
	Points PointSequence `json:"points"`
	// Channels holds the per-dimension fitted curves.
	Channels []FittedCurve `json:"channels"`
	// Warnings lists duplicate-point corrections made while parametrizing.
	Warnings []DuplicateWarning `json:"warnings,omitempty"`
	// Residuals is the RMS fit residual of each channel at the input points.
	Residuals []float64 `json:"residuals"`
}

// Pipeline parametrizes a trajectory once and fits each dimension
// independently against the shared parameter axis.
type Pipeline struct {
	opts         Options
	parametrizer *Parametrizer
}

// NewPipeline creates a Pipeline. OnDuplicate, when non-nil, receives every
// duplicate-point correction in addition to it being recorded on the Result.
// A zero DegeneracyOffset selects DefaultDegeneracyOffset.
func NewPipeline(opts Options, onDuplicate func(DuplicateWarning)) *Pipeline {
	if opts.DegeneracyOffset == 0 {
		opts.DegeneracyOffset = DefaultDegeneracyOffset
	}
	return &Pipeline{
		opts: opts,
		parametrizer: &Parametrizer{
			Offset:      opts.DegeneracyOffset,
			OnDuplicate: onDuplicate,
		},
	}
}

// Smooth runs the full pipeline. A failure in any channel aborts the call and
// no partial result is returned.
func (p *Pipeline) Smooth(ctx context.Context, points PointSequence) (*Result, error) {
	dim, err := points.Dimensions()
	if err != nil {
		return nil, err
	}

	sampleCount := p.opts.SampleCount
	if sampleCount == 0 {
		sampleCount = len(points)
	}

	channels := make([]Channel, dim)
	for d := range channels {
		channels[d] = points.Column(d)
	}
	if p.opts.BoxcarOrder > 1 {
		runs := max(p.opts.BoxcarRuns, 1)
		for d, ch := range channels {
			if channels[d], err = BoxcarChannel(ch, p.opts.BoxcarOrder, runs); err != nil {
				return nil, fmt.Errorf("boxcar filter on dimension %d: %w", d, err)
			}
		}
		points = Zip(channels)
	}

	params, warnings, err := p.parametrizer.Parametrize(points)
	if err != nil {
		return nil, err
	}

	curves := make([]FittedCurve, dim)
	residuals := make([]float64, dim)

	g, gctx := errgroup.WithContext(ctx)
	limit := p.opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)

	for d := 0; d < dim; d++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			opts := FitOptions{
				CoefficientCount: p.opts.CoefficientCount,
				SampleCount:      sampleCount,
				NoiseSigma:       p.opts.NoiseSigma,
				Source:           p.channelSource(d),
			}
			md, err := fitModel(params, channels[d], opts)
			if err != nil {
				return fmt.Errorf("dimension %d: %w", d, err)
			}
			curves[d] = md.sample(sampleCount)
			residuals[d] = md.rmsResidual(params, channels[d])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fitted := make([]Channel, dim)
	for d, c := range curves {
		fitted[d] = c.Values()
	}
	grid := make([]float64, sampleCount)
	for i, cp := range curves[0] {
		grid[i] = cp.T
	}

	return &Result{
		Parameters: params,
		Samples:    grid,
		Points:     Zip(fitted),
		Channels:   curves,
		Warnings:   warnings,
		Residuals:  residuals,
	}, nil
}

// channelSource returns the random stream for dimension d, or nil when no
// seed is configured.
func (p *Pipeline) channelSource(d int) rand.Source {
	if p.opts.Seed == nil {
		return nil
	}
	return rand.NewPCG(*p.opts.Seed, uint64(d))
}

package smoothing

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linspaceParams(n int, hi float64) ParameterSequence {
	p := make(ParameterSequence, n)
	for i := range p {
		p[i] = hi * float64(i) / float64(n-1)
	}
	return p
}

func TestFit_StraightLineRoundTrip(t *testing.T) {
	params := linspaceParams(100, 50)
	values := make(Channel, len(params))
	for i, x := range params {
		values[i] = 2*x + 1
	}

	curve, err := Fit(params, values, FitOptions{
		CoefficientCount: 10,
		SampleCount:      73,
		NoiseSigma:       1e-3,
		Source:           rand.NewPCG(1, 2),
	})
	require.NoError(t, err)
	require.Len(t, curve, 73)

	assert.Equal(t, 0.0, curve[0].T)
	assert.InDelta(t, 50.0, curve[len(curve)-1].T, 1e-12)
	for _, p := range curve {
		assert.InDelta(t, 2*p.T+1, p.Value, 0.02, "t = %g", p.T)
		assert.GreaterOrEqual(t, p.StdErr, 0.0)
	}
}

func TestFit_SmoothsNoisySine(t *testing.T) {
	params := linspaceParams(400, 2*math.Pi)
	rng := rand.New(rand.NewPCG(7, 7))
	values := make(Channel, len(params))
	for i, x := range params {
		values[i] = math.Sin(x) + 0.05*rng.NormFloat64()
	}

	curve, err := Fit(params, values, FitOptions{
		CoefficientCount: 12,
		SampleCount:      50,
		NoiseSigma:       DefaultNoiseSigma,
		Source:           rand.NewPCG(3, 4),
	})
	require.NoError(t, err)

	for _, p := range curve {
		assert.InDelta(t, math.Sin(p.T), p.Value, 0.15, "t = %g", p.T)
	}
}

func TestFit_ZeroSigmaIsDeterministic(t *testing.T) {
	params := linspaceParams(30, 3)
	values := make(Channel, len(params))
	for i, x := range params {
		values[i] = x * x
	}
	opts := FitOptions{CoefficientCount: 6, SampleCount: 20}

	first, err := Fit(params, values, opts)
	require.NoError(t, err)
	second, err := Fit(params, values, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFit_SeededNoiseIsReproducible(t *testing.T) {
	params := linspaceParams(40, 10)
	values := make(Channel, len(params))
	for i, x := range params {
		values[i] = math.Cos(x)
	}
	fit := func(seed uint64) FittedCurve {
		c, err := Fit(params, values, FitOptions{
			CoefficientCount: 8,
			SampleCount:      15,
			NoiseSigma:       0.5,
			Source:           rand.NewPCG(seed, 0),
		})
		require.NoError(t, err)
		return c
	}

	assert.Equal(t, fit(42), fit(42))
	assert.NotEqual(t, fit(42), fit(43))
}

func TestFit_SingleSample(t *testing.T) {
	params := linspaceParams(10, 1)
	values := make(Channel, len(params))

	curve, err := Fit(params, values, FitOptions{CoefficientCount: 4, SampleCount: 1})
	require.NoError(t, err)
	require.Len(t, curve, 1)
	assert.Equal(t, 0.0, curve[0].T)
}

func TestFit_InvalidArguments(t *testing.T) {
	params := linspaceParams(10, 1)
	values := make(Channel, len(params))

	tests := []struct {
		name   string
		params ParameterSequence
		values Channel
		opts   FitOptions
	}{
		{"too few coefficients", params, values, FitOptions{CoefficientCount: 3, SampleCount: 5}},
		{"coefficients equal to observations", params, values, FitOptions{CoefficientCount: 10, SampleCount: 5}},
		{"coefficients above observations", params, values, FitOptions{CoefficientCount: 11, SampleCount: 5}},
		{"no samples", params, values, FitOptions{CoefficientCount: 4}},
		{"negative sigma", params, values, FitOptions{CoefficientCount: 4, SampleCount: 5, NoiseSigma: -1}},
		{"nan sigma", params, values, FitOptions{CoefficientCount: 4, SampleCount: 5, NoiseSigma: math.NaN()}},
		{"length mismatch", params, values[:9], FitOptions{CoefficientCount: 4, SampleCount: 5}},
		{"nil values", params, nil, FitOptions{CoefficientCount: 4, SampleCount: 5}},
		{"flat parameters", make(ParameterSequence, 10), values, FitOptions{CoefficientCount: 4, SampleCount: 5}},
		{"negative parameter", append(ParameterSequence{-1}, params[1:]...), values, FitOptions{CoefficientCount: 4, SampleCount: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Fit(tt.params, tt.values, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestFit_RankDeficient(t *testing.T) {
	// Ten parameters packed near zero and one at the far end leave the
	// interior basis functions without data.
	params := ParameterSequence{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 100}
	values := make(Channel, len(params))

	_, err := Fit(params, values, FitOptions{CoefficientCount: 8, SampleCount: 10})
	assert.ErrorIs(t, err, ErrNumericalFailure)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
}

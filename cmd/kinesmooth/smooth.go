package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ayusman/kinesmooth/internal/config"
	"github.com/ayusman/kinesmooth/internal/mocap"
	"github.com/ayusman/kinesmooth/internal/quality"
	"github.com/ayusman/kinesmooth/internal/render"
	"github.com/ayusman/kinesmooth/internal/smoothing"
)

// smoothFlags are the settings flags shared by smooth and serve. They
// override values loaded from -config only when given explicitly.
type smoothFlags struct {
	configPath  string
	coeffs      int
	samples     int
	sigma       float64
	offset      float64
	boxcar      int
	boxcarRuns  int
	seed        uint64
	parallelism int
}

func (f *smoothFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Settings file (.json, .yaml or .yml)")
	fs.IntVar(&f.coeffs, "coeffs", smoothing.DefaultCoefficientCount, "Spline coefficients per channel")
	fs.IntVar(&f.samples, "samples", 0, "Output points (0 keeps the input length)")
	fs.Float64Var(&f.sigma, "sigma", smoothing.DefaultNoiseSigma, "Regularisation noise sigma")
	fs.Float64Var(&f.offset, "offset", smoothing.DefaultDegeneracyOffset, "Parameter offset for repeated points")
	fs.IntVar(&f.boxcar, "boxcar", 0, "Moving-average pre-filter order (0 or 1 disables)")
	fs.IntVar(&f.boxcarRuns, "boxcar-runs", smoothing.DefaultBoxcarRuns, "Number of pre-filter passes")
	fs.Uint64Var(&f.seed, "seed", 0, "Noise seed for reproducible output")
	fs.IntVar(&f.parallelism, "parallelism", 0, "Concurrent channel fits (0 uses GOMAXPROCS)")
}

// settings loads -config and applies explicitly set flags over it.
func (f *smoothFlags) settings(fs *flag.FlagSet) (*config.SmoothingConfig, error) {
	return f.settingsOver(fs, config.DefaultSmoothingConfig())
}

// settingsOver layers -config and then the explicitly set flags over base.
func (f *smoothFlags) settingsOver(fs *flag.FlagSet, base *config.SmoothingConfig) (*config.SmoothingConfig, error) {
	cfg := base
	if f.configPath != "" {
		loaded, err := config.LoadSmoothingConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = cfg.Merge(loaded)
	}

	override := &config.SmoothingConfig{}
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "coeffs":
			override.CoefficientCount = &f.coeffs
		case "samples":
			override.SampleCount = &f.samples
		case "sigma":
			override.NoiseSigma = &f.sigma
		case "offset":
			override.DegeneracyOffset = &f.offset
		case "boxcar":
			override.BoxcarOrder = &f.boxcar
		case "boxcar-runs":
			override.BoxcarRuns = &f.boxcarRuns
		case "seed":
			override.Seed = &f.seed
		case "parallelism":
			override.Parallelism = &f.parallelism
		}
	})

	cfg = cfg.Merge(override)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runSmooth reads a trajectory, smooths it and writes the resampled rows.
// Duplicate-point warnings always go to stderr.
func runSmooth(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("smooth", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var sf smoothFlags
	sf.register(fs)
	in := fs.String("in", "", "Input trajectory file (default stdin)")
	out := fs.String("out", "", "Output file (default stdout)")
	plotPath := fs.String("plot", "", "Render raw and fitted channels to an image (.png, .jpg, .tiff)")
	labels := fs.String("labels", "", "Comma-separated channel names for the plot")
	verbose := fs.Bool("v", false, "Report fit residuals and deviation on stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sf.settings(fs)
	if err != nil {
		return err
	}

	var points smoothing.PointSequence
	if *in == "" || *in == "-" {
		points, err = mocap.ReadRows(stdin)
	} else {
		points, err = mocap.ReadFile(*in)
	}
	if err != nil {
		return fmt.Errorf("failed to read trajectory: %w", err)
	}
	if len(points) == 0 {
		return errors.New("no samples in input")
	}

	name := *in
	if name == "" {
		name = "stdin"
	}
	logger := log.New(stderr, "", 0)

	pipeline := smoothing.NewPipeline(cfg.Options(), func(w smoothing.DuplicateWarning) {
		logger.Printf("(WW) %s: is the data malformed? %s", name, w)
	})
	res, err := pipeline.Smooth(context.Background(), points)
	if err != nil {
		return err
	}

	if *out == "" {
		err = mocap.WriteRows(stdout, res.Points)
	} else {
		err = mocap.WriteFile(*out, res.Points)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if *plotPath != "" {
		var names []string
		if *labels != "" {
			names = strings.Split(*labels, ",")
		}
		if err := render.Channels(*plotPath, points, res, names); err != nil {
			return fmt.Errorf("failed to render plot: %w", err)
		}
	}

	if *verbose {
		dev := quality.Compare(points, res.Points)
		logger.Printf("%s: %d points -> %d samples, %d duplicate warnings", name, len(points), len(res.Points), len(res.Warnings))
		for d, r := range res.Residuals {
			logger.Printf("  channel %d: rms residual %.6g", d, r)
		}
		logger.Printf("  overall rms residual %.6g", quality.RMS(res.Residuals))
		logger.Printf("  dtw %.6g, max step %.6g", dev.DTW, dev.MaxStep)
	}

	return nil
}


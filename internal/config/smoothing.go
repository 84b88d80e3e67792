// Package config loads smoothing configuration files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/kinesmooth/internal/smoothing"
)

// SmoothingConfig is the file form of the smoothing and application
// settings. Unset fields fall back to defaults through the Get* methods, so
// partial files are safe. The same schema is accepted by the HTTP API as a
// per-request override.
type SmoothingConfig struct {
	// Spline fit
	CoefficientCount *int     `json:"coefficient_count,omitempty" yaml:"coefficient_count,omitempty"`
	SampleCount      *int     `json:"sample_count,omitempty" yaml:"sample_count,omitempty"`
	NoiseSigma       *float64 `json:"noise_sigma,omitempty" yaml:"noise_sigma,omitempty"`
	Seed             *uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	Parallelism      *int     `json:"parallelism,omitempty" yaml:"parallelism,omitempty"`

	// Parametrization
	DegeneracyOffset *float64 `json:"degeneracy_offset,omitempty" yaml:"degeneracy_offset,omitempty"`

	// Boxcar pre-filter
	BoxcarOrder *int `json:"boxcar_order,omitempty" yaml:"boxcar_order,omitempty"`
	BoxcarRuns  *int `json:"boxcar_runs,omitempty" yaml:"boxcar_runs,omitempty"`

	// Background processing
	Workers       *int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	ExportTimeout *string `json:"export_timeout,omitempty" yaml:"export_timeout,omitempty"` // duration string like "5s"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// DefaultSmoothingConfig returns a config with every field set to its default.
func DefaultSmoothingConfig() *SmoothingConfig {
	return &SmoothingConfig{
		CoefficientCount: ptrInt(smoothing.DefaultCoefficientCount),
		SampleCount:      ptrInt(0),
		NoiseSigma:       ptrFloat64(smoothing.DefaultNoiseSigma),
		Parallelism:      ptrInt(0),
		DegeneracyOffset: ptrFloat64(smoothing.DefaultDegeneracyOffset),
		BoxcarOrder:      ptrInt(0),
		BoxcarRuns:       ptrInt(smoothing.DefaultBoxcarRuns),
		Workers:          ptrInt(2),
		ExportTimeout:    ptrString("5s"),
	}
}

// LoadSmoothingConfig loads a SmoothingConfig from a JSON or YAML file.
// The format follows the extension; files over 1MB are rejected.
func LoadSmoothingConfig(path string) (*SmoothingConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &SmoothingConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(cleanPath), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SmoothingConfig) Validate() error {
	if c.CoefficientCount != nil && *c.CoefficientCount < smoothing.MinCoefficients {
		return fmt.Errorf("coefficient_count must be at least %d, got %d", smoothing.MinCoefficients, *c.CoefficientCount)
	}
	if c.SampleCount != nil && *c.SampleCount < 0 {
		return fmt.Errorf("sample_count must be non-negative, got %d", *c.SampleCount)
	}
	if c.NoiseSigma != nil && *c.NoiseSigma < 0 {
		return fmt.Errorf("noise_sigma must be non-negative, got %f", *c.NoiseSigma)
	}
	if c.DegeneracyOffset != nil && *c.DegeneracyOffset <= 0 {
		return fmt.Errorf("degeneracy_offset must be positive, got %f", *c.DegeneracyOffset)
	}
	if c.BoxcarOrder != nil && *c.BoxcarOrder < 0 {
		return fmt.Errorf("boxcar_order must be non-negative, got %d", *c.BoxcarOrder)
	}
	if c.BoxcarRuns != nil && *c.BoxcarRuns < 1 {
		return fmt.Errorf("boxcar_runs must be at least 1, got %d", *c.BoxcarRuns)
	}
	if c.Parallelism != nil && *c.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative, got %d", *c.Parallelism)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.ExportTimeout != nil && *c.ExportTimeout != "" {
		if _, err := time.ParseDuration(*c.ExportTimeout); err != nil {
			return fmt.Errorf("invalid export_timeout '%s': %w", *c.ExportTimeout, err)
		}
	}
	return nil
}

// Merge returns a copy of c with every field set in override replacing the
// corresponding field of c.
func (c *SmoothingConfig) Merge(override *SmoothingConfig) *SmoothingConfig {
	out := *c
	if override == nil {
		return &out
	}
	if override.CoefficientCount != nil {
		out.CoefficientCount = override.CoefficientCount
	}
	if override.SampleCount != nil {
		out.SampleCount = override.SampleCount
	}
	if override.NoiseSigma != nil {
		out.NoiseSigma = override.NoiseSigma
	}
	if override.Seed != nil {
		out.Seed = override.Seed
	}
	if override.Parallelism != nil {
		out.Parallelism = override.Parallelism
	}
	if override.DegeneracyOffset != nil {
		out.DegeneracyOffset = override.DegeneracyOffset
	}
	if override.BoxcarOrder != nil {
		out.BoxcarOrder = override.BoxcarOrder
	}
	if override.BoxcarRuns != nil {
		out.BoxcarRuns = override.BoxcarRuns
	}
	if override.Workers != nil {
		out.Workers = override.Workers
	}
	if override.ExportTimeout != nil {
		out.ExportTimeout = override.ExportTimeout
	}
	return &out
}

// Options converts the config into pipeline options.
func (c *SmoothingConfig) Options() smoothing.Options {
	return smoothing.Options{
		CoefficientCount: c.GetCoefficientCount(),
		SampleCount:      c.GetSampleCount(),
		NoiseSigma:       c.GetNoiseSigma(),
		BoxcarOrder:      c.GetBoxcarOrder(),
		BoxcarRuns:       c.GetBoxcarRuns(),
		DegeneracyOffset: c.GetDegeneracyOffset(),
		Seed:             c.Seed,
		Parallelism:      c.GetParallelism(),
	}
}

// GetCoefficientCount returns the coefficient_count value or the default.
func (c *SmoothingConfig) GetCoefficientCount() int {
	if c.CoefficientCount == nil {
		return smoothing.DefaultCoefficientCount
	}
	return *c.CoefficientCount
}

// GetSampleCount returns the sample_count value or the default (0, one
// output point per input point).
func (c *SmoothingConfig) GetSampleCount() int {
	if c.SampleCount == nil {
		return 0
	}
	return *c.SampleCount
}

// GetNoiseSigma returns the noise_sigma value or the default.
func (c *SmoothingConfig) GetNoiseSigma() float64 {
	if c.NoiseSigma == nil {
		return smoothing.DefaultNoiseSigma
	}
	return *c.NoiseSigma
}

// GetDegeneracyOffset returns the degeneracy_offset value or the default.
func (c *SmoothingConfig) GetDegeneracyOffset() float64 {
	if c.DegeneracyOffset == nil {
		return smoothing.DefaultDegeneracyOffset
	}
	return *c.DegeneracyOffset
}

// GetBoxcarOrder returns the boxcar_order value or the default (disabled).
func (c *SmoothingConfig) GetBoxcarOrder() int {
	if c.BoxcarOrder == nil {
		return 0
	}
	return *c.BoxcarOrder
}

// GetBoxcarRuns returns the boxcar_runs value or the default.
func (c *SmoothingConfig) GetBoxcarRuns() int {
	if c.BoxcarRuns == nil {
		return smoothing.DefaultBoxcarRuns
	}
	return *c.BoxcarRuns
}

// GetParallelism returns the parallelism value or the default (GOMAXPROCS).
func (c *SmoothingConfig) GetParallelism() int {
	if c.Parallelism == nil {
		return 0
	}
	return *c.Parallelism
}

// GetWorkers returns the workers value or the default.
func (c *SmoothingConfig) GetWorkers() int {
	if c.Workers == nil {
		return 2
	}
	return *c.Workers
}

// GetExportTimeout parses and returns the ExportTimeout as a time.Duration.
func (c *SmoothingConfig) GetExportTimeout() time.Duration {
	if c.ExportTimeout == nil || *c.ExportTimeout == "" {
		return 5 * time.Second // default
	}
	d, err := time.ParseDuration(*c.ExportTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

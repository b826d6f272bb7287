// Package config provides configuration loading and management for
// focifinder3d. It handles loading configuration from YAML files,
// provides default values, and maps the file representation onto the
// engine's per-invocation options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"focifinder3d/pkg/centroid"
	"focifinder3d/pkg/findfoci"
	"focifinder3d/pkg/stats"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Background parameters
	Background struct {
		// Method selects the background derivation: absolute, mean,
		// stddev_above_mean, auto or none.
		Method string `yaml:"method"`

		// Parameter is the literal level (absolute) or the stddev
		// multiplier (stddev_above_mean).
		Parameter float64 `yaml:"parameter"`

		// AutoThreshold is the externally computed level used by the
		// auto method.
		AutoThreshold float64 `yaml:"autoThreshold"`

		// StatisticsScope selects which voxels the reported statistics
		// cover when a mask is present: all, inside, outside or both.
		StatisticsScope string `yaml:"statisticsScope"`
	} `yaml:"background"`

	// Search parameters
	Search struct {
		// Method selects the region growth-stopping rule:
		// above_background, fraction_of_peak or half_peak.
		Method string `yaml:"method"`

		// Parameter is the fraction used by fraction_of_peak.
		Parameter float64 `yaml:"parameter"`
	} `yaml:"search"`

	// Merge parameters
	Merge struct {
		// MinSize is the minimum surviving region size in voxels.
		MinSize int `yaml:"minSize"`

		// MinSizeAboveSaddle applies MinSize to the voxel count above
		// each peak's highest saddle as a third merge pass.
		MinSizeAboveSaddle bool `yaml:"minSizeAboveSaddle"`

		// PeakMethod selects the minimum height rule: absolute,
		// relative or relative_above_background.
		PeakMethod string `yaml:"peakMethod"`

		// PeakParameter is its parameter.
		PeakParameter float64 `yaml:"peakParameter"`
	} `yaml:"merge"`

	// Results parameters
	Results struct {
		// MaxPeaks caps the result list; zero or less keeps everything.
		MaxPeaks int `yaml:"maxPeaks"`

		// SortBy orders the result list: intensity, count, max_value,
		// average_intensity, intensity_minus_background,
		// average_intensity_minus_background, x, y, z, saddle_height,
		// count_above_saddle, intensity_above_saddle, absolute_height
		// or relative_height.
		SortBy string `yaml:"sortBy"`

		// RemoveEdgeMaxima discards peaks touching the volume boundary.
		RemoveEdgeMaxima bool `yaml:"removeEdgeMaxima"`
	} `yaml:"results"`

	// Centroid parameters
	Centroid struct {
		// Method selects the relocation strategy: none, original_image,
		// centre_of_mass or gaussian_fit.
		Method string `yaml:"method"`

		// HalfWindow is the centre-of-mass box half-size in voxels.
		HalfWindow int `yaml:"halfWindow"`

		// Projection collapses the core region before a Gaussian fit:
		// max or average.
		Projection string `yaml:"projection"`
	} `yaml:"centroid"`

	// Smoothing parameters
	Smoothing struct {
		// Sigma is the Gaussian pre-filter width in voxels; zero
		// disables smoothing. The topology runs on the smoothed copy
		// while intensities are reported from the original.
		Sigma float64 `yaml:"sigma"`
	} `yaml:"smoothing"`

	// Output parameters
	Output struct {
		// SaveMask renders the label volume as per-slice PNG images.
		SaveMask bool `yaml:"saveMask"`

		// MaskDir is the directory receiving the rendered mask slices.
		MaskDir string `yaml:"maskDir"`

		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Background.Method = "absolute"
	cfg.Background.Parameter = 0
	cfg.Background.StatisticsScope = "all"

	cfg.Search.Method = "above_background"
	cfg.Search.Parameter = 0

	cfg.Merge.MinSize = 3
	cfg.Merge.MinSizeAboveSaddle = false
	cfg.Merge.PeakMethod = "absolute"
	cfg.Merge.PeakParameter = 0

	cfg.Results.MaxPeaks = 50
	cfg.Results.SortBy = "intensity"
	cfg.Results.RemoveEdgeMaxima = false

	cfg.Centroid.Method = "none"
	cfg.Centroid.HalfWindow = 2
	cfg.Centroid.Projection = "max"

	cfg.Smoothing.Sigma = 0

	cfg.Output.SaveMask = false
	cfg.Output.MaskDir = "label_masks"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// EngineOptions maps the file configuration onto the engine's
// per-invocation options, rejecting unknown method names.
func (c *Config) EngineOptions() (findfoci.Options, error) {
	opts := findfoci.DefaultOptions()

	switch strings.ToLower(c.Background.Method) {
	case "absolute", "":
		opts.Background = stats.BackgroundAbsolute
	case "mean":
		opts.Background = stats.BackgroundMean
	case "stddev_above_mean":
		opts.Background = stats.BackgroundStdDevAboveMean
	case "auto":
		opts.Background = stats.BackgroundAuto
	case "none":
		opts.Background = stats.BackgroundNone
	default:
		return opts, fmt.Errorf("unknown background method %q", c.Background.Method)
	}
	opts.BackgroundParameter = c.Background.Parameter
	opts.AutoThreshold = c.Background.AutoThreshold

	switch strings.ToLower(c.Background.StatisticsScope) {
	case "all", "":
		opts.StatisticsScope = stats.ScopeAll
	case "inside":
		opts.StatisticsScope = stats.ScopeInside
	case "outside":
		opts.StatisticsScope = stats.ScopeOutside
	case "both":
		opts.StatisticsScope = stats.ScopeBoth
	default:
		return opts, fmt.Errorf("unknown statistics scope %q", c.Background.StatisticsScope)
	}

	switch strings.ToLower(c.Search.Method) {
	case "above_background", "":
		opts.Search = findfoci.SearchAboveBackground
	case "fraction_of_peak":
		opts.Search = findfoci.SearchFractionOfPeak
	case "half_peak":
		opts.Search = findfoci.SearchHalfPeak
	default:
		return opts, fmt.Errorf("unknown search method %q", c.Search.Method)
	}
	opts.SearchParameter = c.Search.Parameter

	opts.MinSize = c.Merge.MinSize
	opts.MinSizeAboveSaddle = c.Merge.MinSizeAboveSaddle
	switch strings.ToLower(c.Merge.PeakMethod) {
	case "absolute", "":
		opts.Peak = findfoci.PeakAbsolute
	case "relative":
		opts.Peak = findfoci.PeakRelative
	case "relative_above_background":
		opts.Peak = findfoci.PeakRelativeAboveBackground
	default:
		return opts, fmt.Errorf("unknown peak method %q", c.Merge.PeakMethod)
	}
	opts.PeakParameter = c.Merge.PeakParameter

	opts.MaxPeaks = c.Results.MaxPeaks
	opts.RemoveEdgeMaxima = c.Results.RemoveEdgeMaxima
	sortKeys := map[string]findfoci.SortKey{
		"intensity":                          findfoci.SortIntensity,
		"count":                              findfoci.SortCount,
		"max_value":                          findfoci.SortMaxValue,
		"average_intensity":                  findfoci.SortAverageIntensity,
		"intensity_minus_background":         findfoci.SortIntensityMinusBackground,
		"average_intensity_minus_background": findfoci.SortAverageIntensityMinusBackground,
		"x":                                  findfoci.SortX,
		"y":                                  findfoci.SortY,
		"z":                                  findfoci.SortZ,
		"saddle_height":                      findfoci.SortSaddleHeight,
		"count_above_saddle":                 findfoci.SortCountAboveSaddle,
		"intensity_above_saddle":             findfoci.SortIntensityAboveSaddle,
		"absolute_height":                    findfoci.SortAbsoluteHeight,
		"relative_height":                    findfoci.SortRelativeHeight,
	}
	if c.Results.SortBy != "" {
		key, ok := sortKeys[strings.ToLower(c.Results.SortBy)]
		if !ok {
			return opts, fmt.Errorf("unknown sort key %q", c.Results.SortBy)
		}
		opts.Sort = key
	}

	switch strings.ToLower(c.Centroid.Method) {
	case "none", "":
		opts.Centroid = centroid.None
	case "original_image":
		opts.Centroid = centroid.OriginalImage
	case "centre_of_mass":
		opts.Centroid = centroid.CentreOfMass
	case "gaussian_fit":
		opts.Centroid = centroid.GaussianFit
	default:
		return opts, fmt.Errorf("unknown centroid method %q", c.Centroid.Method)
	}
	opts.CentroidParameter = c.Centroid.HalfWindow
	switch strings.ToLower(c.Centroid.Projection) {
	case "max", "":
		opts.CentroidProjection = centroid.MaxProjection
	case "average":
		opts.CentroidProjection = centroid.AverageProjection
	default:
		return opts, fmt.Errorf("unknown projection %q", c.Centroid.Projection)
	}

	return opts, nil
}

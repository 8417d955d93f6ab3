// Package config provides configuration loading and management for
// mrilabelfusion. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// PatchRadiusX/Y/Z is the half-width of the intensity patch compared
		// between the target and each atlas.
		PatchRadiusX int `yaml:"patchRadiusX"`
		PatchRadiusY int `yaml:"patchRadiusY"`
		PatchRadiusZ int `yaml:"patchRadiusZ"`

		// SearchRadiusX/Y/Z is the half-width of the neighborhood PatchMatcher
		// searches within each atlas.
		SearchRadiusX int `yaml:"searchRadiusX"`
		SearchRadiusY int `yaml:"searchRadiusY"`
		SearchRadiusZ int `yaml:"searchRadiusZ"`

		// Alpha is the ridge added to Mx's diagonal before solving for weights.
		Alpha float64 `yaml:"alpha"`

		// Beta is the exponent applied elementwise to Mx.
		Beta float64 `yaml:"beta"`

		// MemoryBudgetMB caps estimated buffer memory; zero means unlimited.
		MemoryBudgetMB int64 `yaml:"memoryBudgetMB"`
	} `yaml:"processing"`

	// Diagnostics controls optional, output-preserving instrumentation.
	Diagnostics struct {
		// GenerateWeightMaps records the per-atlas weight solved at every
		// processed voxel.
		GenerateWeightMaps bool `yaml:"generateWeightMaps"`

		// RetainPosteriors keeps the per-label posterior accumulators in the
		// result instead of discarding them once Output is finalized.
		RetainPosteriors bool `yaml:"retainPosteriors"`

		// BoundaryMesh exports an STL isosurface of the fused label
		// boundary once fusion completes.
		BoundaryMesh bool `yaml:"boundaryMesh"`

		// SmoothWeightMaps applies edge-preserving smoothing to exported
		// weight maps before writing them, for readability.
		SmoothWeightMaps bool `yaml:"smoothWeightMaps"`
	} `yaml:"diagnostics"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Experimental parameters exposed for tuning open numeric questions
	// without a code change.
	Experimental struct {
		// SignMode selects PatchMatcher's anticorrelation handling: either
		// "penalize" (default, preserves the shipped behavior) or
		// "symmetric".
		SignMode string `yaml:"signMode"`
	} `yaml:"experimental"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.PatchRadiusX = 2
	cfg.Processing.PatchRadiusY = 2
	cfg.Processing.PatchRadiusZ = 2
	cfg.Processing.SearchRadiusX = 3
	cfg.Processing.SearchRadiusY = 3
	cfg.Processing.SearchRadiusZ = 3
	cfg.Processing.Alpha = 0.1
	cfg.Processing.Beta = 2.0
	cfg.Processing.MemoryBudgetMB = 0

	cfg.Diagnostics.GenerateWeightMaps = false
	cfg.Diagnostics.RetainPosteriors = false
	cfg.Diagnostics.BoundaryMesh = false
	cfg.Diagnostics.SmoothWeightMaps = false

	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = true

	cfg.Experimental.SignMode = "penalize"

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

// CreateDefaultConfigFile creates a default configuration file at the specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

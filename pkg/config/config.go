// Package config provides configuration loading and management for fdd.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"fdd/internal/fdderr"
)

// Grid modes
const (
	// GridSmooth averages samples per cell and fills empty cells from the
	// nearest sample
	GridSmooth = "smooth"

	// GridPoints gives every cell the value of its nearest sample, with a
	// resolution derived from sample spacing
	GridPoints = "points"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Model hyperparameters
	Model struct {
		// Level is the number of discrete levels of the lifted field
		Level int `yaml:"level"`

		// Lambda weights the smoothness term of the energy
		Lambda float64 `yaml:"lambda"`

		// Nu penalizes the jump set of the energy
		Nu float64 `yaml:"nu"`

		// Iter is the iteration budget of the solver
		Iter int `yaml:"iter"`

		// Tol stops the solver once the convergence gap falls below it
		Tol float64 `yaml:"tol"`

		// Rectangle scales all coordinate axes by one shared factor instead
		// of stretching each axis to [0,1]
		Rectangle bool `yaml:"rectangle"`

		// PickNu selects the boundary threshold policy: "kmeans" or "fixed"
		PickNu string `yaml:"pickNu"`

		// HistogramBins is the number of gradient histogram bins used by the
		// kmeans policy
		HistogramBins int `yaml:"histogramBins"`
	} `yaml:"model"`

	// Grid construction parameters
	Grid struct {
		// Mode is "smooth" or "points"
		Mode string `yaml:"mode"`

		// Resolution is the cell side length in normalized units; zero derives
		// it from the sample count (smooth) or sample spacing (points)
		Resolution float64 `yaml:"resolution"`

		// Qtile is the nearest-neighbour distance quantile used in points mode
		Qtile float64 `yaml:"qtile"`

		// Gridded marks samples that already lie on a lattice
		Gridded bool `yaml:"gridded"`

		// Seed drives the subsample used to estimate sample spacing
		Seed uint32 `yaml:"seed"`
	} `yaml:"grid"`

	// Solver artifact parameters
	Solver struct {
		// Path is the precompiled solver; empty uses the default location
		// next to the executable
		Path string `yaml:"path"`

		// Device forces an execution context: "auto", "discrete",
		// "integrated", "cpu-vector" or "cpu"
		Device string `yaml:"device"`
	} `yaml:"solver"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// JumpsFile is where jump records are written as CSV
		JumpsFile string `yaml:"jumpsFile"`

		// Database is the sqlite file runs are recorded in; empty disables it
		Database string `yaml:"database"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default model parameters
	cfg.Model.Level = 16
	cfg.Model.Lambda = 1
	cfg.Model.Nu = 0.01
	cfg.Model.Iter = 1000
	cfg.Model.Tol = 5e-5
	cfg.Model.Rectangle = false
	cfg.Model.PickNu = "kmeans"
	cfg.Model.HistogramBins = 10

	// Set default grid parameters
	cfg.Grid.Mode = GridSmooth
	cfg.Grid.Resolution = 0
	cfg.Grid.Qtile = 0.05
	cfg.Grid.Gridded = false
	cfg.Grid.Seed = 1

	// Set default solver parameters
	cfg.Solver.Path = ""
	cfg.Solver.Device = "auto"

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default output parameters
	cfg.Output.JumpsFile = "jumps.csv"
	cfg.Output.Database = ""
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks that the configuration describes a runnable model
func (c *Config) Validate() error {
	bad := func(format string, args ...interface{}) error {
		return fdderr.Errorf(fdderr.StageInput, fdderr.Configuration, format, args...)
	}

	switch {
	case c.Model.Level < 2:
		return bad("model.level must be at least 2, got %d", c.Model.Level)
	case c.Model.Iter < 1:
		return bad("model.iter must be positive, got %d", c.Model.Iter)
	case c.Model.Lambda < 0 || c.Model.Nu < 0 || c.Model.Tol < 0:
		return bad("model.lambda, model.nu and model.tol must be non-negative")
	case c.Model.PickNu != "kmeans" && c.Model.PickNu != "fixed":
		return bad("model.pickNu must be kmeans or fixed, got %q", c.Model.PickNu)
	case c.Model.PickNu == "kmeans" && c.Model.HistogramBins < 2:
		return bad("model.histogramBins must be at least 2, got %d", c.Model.HistogramBins)
	case c.Grid.Mode != GridSmooth && c.Grid.Mode != GridPoints:
		return bad("grid.mode must be %s or %s, got %q", GridSmooth, GridPoints, c.Grid.Mode)
	case c.Grid.Resolution < 0:
		return bad("grid.resolution must be non-negative, got %v", c.Grid.Resolution)
	case c.Grid.Qtile < 0 || c.Grid.Qtile > 1:
		return bad("grid.qtile must lie in [0,1], got %v", c.Grid.Qtile)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdd/internal/fdderr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 16, cfg.Model.Level)
	assert.Equal(t, 1000, cfg.Model.Iter)
	assert.Equal(t, 5e-5, cfg.Model.Tol)
	assert.Equal(t, "kmeans", cfg.Model.PickNu)
	assert.Equal(t, GridSmooth, cfg.Grid.Mode)
	assert.Greater(t, cfg.Processing.NumCores, 0)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
model:
  level: 32
  nu: 0.001
  pickNu: fixed
grid:
  mode: points
  qtile: 0.1
solver:
  device: cpu
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Model.Level)
	assert.Equal(t, 0.001, cfg.Model.Nu)
	assert.Equal(t, "fixed", cfg.Model.PickNu)
	assert.Equal(t, GridPoints, cfg.Grid.Mode)
	assert.Equal(t, 0.1, cfg.Grid.Qtile)
	assert.Equal(t, "cpu", cfg.Solver.Device)
	// untouched keys keep their defaults
	assert.Equal(t, 1.0, cfg.Model.Lambda)
	assert.Equal(t, 1000, cfg.Model.Iter)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unterminated"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"one level", func(c *Config) { c.Model.Level = 1 }},
		{"no iterations", func(c *Config) { c.Model.Iter = 0 }},
		{"negative nu", func(c *Config) { c.Model.Nu = -0.1 }},
		{"unknown policy", func(c *Config) { c.Model.PickNu = "otsu" }},
		{"one bin", func(c *Config) { c.Model.HistogramBins = 1 }},
		{"unknown grid mode", func(c *Config) { c.Grid.Mode = "cubic" }},
		{"negative resolution", func(c *Config) { c.Grid.Resolution = -1 }},
		{"quantile above one", func(c *Config) { c.Grid.Qtile = 1.5 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), fdderr.ErrConfiguration)
		})
	}
}

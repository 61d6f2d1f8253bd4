package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("blender", "samples"), cfg.SamplesDir)
	assert.Equal(t, filepath.Join("blender", "water_noise.blend"), cfg.BlendFile)
	assert.Equal(t, 200, cfg.MinImageSide)
	assert.InDelta(t, 0.15, cfg.ValPct, 1e-12)
	assert.Equal(t, "Material.Water", cfg.Scene.WaterMaterial)
	assert.InDelta(t, 3.2, cfg.Bounds.WaveScaleMin, 1e-12)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WATER_BLENDER_ROOT", "render")
	t.Setenv("WATER_VAL_PCT", "0.2")
	t.Setenv("WATER_WAVE_SCALE_MAX", "6")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("render", "output"), cfg.OutputDir)
	assert.InDelta(t, 0.2, cfg.ValPct, 1e-12)
	assert.InDelta(t, 6, cfg.Bounds.WaveScaleMax, 1e-12)
}

func TestLoadRejectsInvalidRanges(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WATER_WAVE_SCALE_MIN", "9")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("WATER_WAVE_SCALE_MIN", "3.2")
	t.Setenv("WATER_VAL_PCT", "0.7")
	t.Setenv("WATER_TEST_PCT", "0.7")
	_, err = Load()
	assert.Error(t, err)
}

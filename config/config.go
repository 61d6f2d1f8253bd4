// Package config gathers every path, range and renderer name the pipeline
// needs into one value built at startup and passed down to each component.
package config

import (
	"fmt"
	"path/filepath"

	"water-synth/params"
	"water-synth/utils"

	"github.com/joho/godotenv"
)

// Config is built once by Load and never mutated afterwards.
type Config struct {
	// External downloader.
	PythonBin      string
	DownloaderPath string
	DownloadsRoot  string
	DownloadsPath  string
	MinImageSide   int
	ResizeSide     int

	// Renderer.
	BlenderBin   string
	BlenderRoot  string
	BlendFile    string
	BridgeScript string
	Scene        SceneNames

	// Working directories.
	SamplesDir string
	OutputDir  string
	LogDir     string
	DataRoot   string
	ParamFile  string
	LedgerPath string

	SampleExt          string
	ValPct             float64
	TestPct            float64
	Bounds             params.Bounds
	MonitorPollSeconds int
}

// SceneNames are the names of the datablocks the worker looks up in the
// renderer's scene graph.
type SceneNames struct {
	TextureMaterial string
	TextureNode     string
	WaterMaterial   string
	CoarseNode      string
	FineNode        string
	AmplifierNode   string
	OutputNode      string
}

// Load reads an optional .env file and the WATER_* environment variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	downloadsRoot := utils.GetEnv("WATER_DOWNLOADS_ROOT", "ImageNet-Datasets-Downloader")
	blenderRoot := utils.GetEnv("WATER_BLENDER_ROOT", "blender")

	cfg := Config{
		PythonBin:      utils.GetEnv("WATER_PYTHON", "python"),
		DownloaderPath: utils.GetEnv("WATER_DOWNLOADER", filepath.Join(downloadsRoot, "downloader.py")),
		DownloadsRoot:  downloadsRoot,
		DownloadsPath:  utils.GetEnv("WATER_DOWNLOADS_PATH", filepath.Join(downloadsRoot, "imagenet_images")),
		MinImageSide:   utils.GetEnvInt("WATER_MIN_IMAGE_SIDE", 200),
		ResizeSide:     utils.GetEnvInt("WATER_RESIZE_SIDE", 0),

		BlenderBin:   utils.GetEnv("WATER_BLENDER", "blender"),
		BlenderRoot:  blenderRoot,
		BlendFile:    utils.GetEnv("WATER_BLEND_FILE", filepath.Join(blenderRoot, "water_noise.blend")),
		BridgeScript: utils.GetEnv("WATER_BRIDGE_SCRIPT", ""),
		Scene: SceneNames{
			TextureMaterial: utils.GetEnv("WATER_TEXTURE_MATERIAL", "Material.Text"),
			TextureNode:     utils.GetEnv("WATER_TEXTURE_NODE", "Image Texture"),
			WaterMaterial:   utils.GetEnv("WATER_WATER_MATERIAL", "Material.Water"),
			CoarseNode:      utils.GetEnv("WATER_COARSE_NODE", "Musgrave.Coarse"),
			FineNode:        utils.GetEnv("WATER_FINE_NODE", "Musgrave.Fine"),
			AmplifierNode:   utils.GetEnv("WATER_AMPLIFIER_NODE", "Amplifier"),
			OutputNode:      utils.GetEnv("WATER_OUTPUT_NODE", "Material Output"),
		},

		SamplesDir: utils.GetEnv("WATER_SAMPLES_DIR", filepath.Join(blenderRoot, "samples")),
		OutputDir:  utils.GetEnv("WATER_OUTPUT_DIR", filepath.Join(blenderRoot, "output")),
		LogDir:     utils.GetEnv("WATER_LOG_DIR", "logs"),
		DataRoot:   utils.GetEnv("WATER_DATA_ROOT", "data"),
		ParamFile:  utils.GetEnv("WATER_PARAM_FILE", filepath.Join(blenderRoot, "params.json")),
		LedgerPath: utils.GetEnv("WATER_LEDGER", filepath.Join("logs", "ledger.db")),

		SampleExt:          utils.GetEnv("WATER_SAMPLE_EXT", ".jpg"),
		ValPct:             utils.GetEnvFloat("WATER_VAL_PCT", 0.15),
		TestPct:            utils.GetEnvFloat("WATER_TEST_PCT", 0.15),
		MonitorPollSeconds: utils.GetEnvInt("WATER_MONITOR_POLL_SECONDS", 2),
	}

	bounds := params.DefaultBounds()
	bounds.WaveScaleMin = utils.GetEnvFloat("WATER_WAVE_SCALE_MIN", bounds.WaveScaleMin)
	bounds.WaveScaleMax = utils.GetEnvFloat("WATER_WAVE_SCALE_MAX", bounds.WaveScaleMax)
	bounds.AmplifierMin = utils.GetEnvFloat("WATER_AMPLIFIER_MIN", bounds.AmplifierMin)
	bounds.AmplifierMax = utils.GetEnvFloat("WATER_AMPLIFIER_MAX", bounds.AmplifierMax)
	if err := bounds.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid parameter bounds: %w", err)
	}
	cfg.Bounds = bounds

	if cfg.ValPct < 0 || cfg.TestPct < 0 || cfg.ValPct+cfg.TestPct > 1 {
		return Config{}, fmt.Errorf("invalid split percentages val=%.3f test=%.3f", cfg.ValPct, cfg.TestPct)
	}
	return cfg, nil
}

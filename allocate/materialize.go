package allocate

import (
	"fmt"
	"path/filepath"

	"water-synth/models"
	"water-synth/utils"

	"github.com/disintegration/imaging"
	"github.com/schollz/progressbar/v3"
)

// Materialize decodes every sample's source image and re-encodes it as
// <outDir>/<sample name><ext>, the path contract render workers read from.
// It returns the written paths in sample order.
func Materialize(samples []models.Sample, outDir, ext string, showProgress bool) ([]string, error) {
	if err := utils.CreateFolder(outDir); err != nil {
		return nil, err
	}
	if ext == "" {
		ext = ".jpg"
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(samples),
			progressbar.OptionSetDescription("samples"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
		defer func() { _ = bar.Close() }()
	}

	paths := make([]string, 0, len(samples))
	for _, s := range samples {
		img, err := imaging.Open(s.Source, imaging.AutoOrientation(true))
		if err != nil {
			return paths, fmt.Errorf("open sample %s (%s): %w", s.Name, s.Source, err)
		}
		dst := filepath.Join(outDir, s.Name+ext)
		if err := imaging.Save(img, dst); err != nil {
			return paths, fmt.Errorf("save sample %s: %w", dst, err)
		}
		paths = append(paths, dst)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return paths, nil
}

package partition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"water-synth/models"
	"water-synth/utils"

	"github.com/schollz/progressbar/v3"
)

// ErrMissingOriginal marks a training pair whose undistorted image does not
// exist. Nothing of such a pair is copied.
var ErrMissingOriginal = errors.New("missing undistorted original")

// Layout names the destination directories of each split.
type Layout struct {
	TrainDistorted string
	TrainOriginal  string
	ValDistorted   string
	ValOriginal    string
	TestDistorted  string
}

// DefaultLayout is the directory tree the training code expects under dataRoot.
func DefaultLayout(dataRoot string) Layout {
	return Layout{
		TrainDistorted: filepath.Join(dataRoot, "Water", "train"),
		TrainOriginal:  filepath.Join(dataRoot, "ImageNet", "train"),
		ValDistorted:   filepath.Join(dataRoot, "Water", "test"),
		ValOriginal:    filepath.Join(dataRoot, "ImageNet", "test"),
		TestDistorted:  filepath.Join(dataRoot, "Water_Real", "test"),
	}
}

// Report counts what Materialize did.
type Report struct {
	Pairs   int
	Test    int
	Aborted int
	Bytes   int64
}

// OutputName is the flat file name a frame gets in the data layout.
func OutputName(f models.RenderedFrame) string {
	return f.Sample + "_" + f.Frame
}

// OriginalPath is the undistorted still matching frame f. It carries the
// frame's extension.
func OriginalPath(inputDir string, f models.RenderedFrame) string {
	return filepath.Join(inputDir, "undistorted", f.Sample+filepath.Ext(f.Frame))
}

// Materialize copies the split into layout. Train and validation frames are
// copied together with their undistorted original; test frames are copied
// alone. A failing pair is skipped and reported in the joined error while
// the remaining frames are still copied.
func Materialize(split models.DatasetSplit, inputDir string, layout Layout, showProgress bool) (Report, error) {
	var rep Report
	for _, dir := range []string{layout.TrainDistorted, layout.TrainOriginal, layout.ValDistorted, layout.ValOriginal, layout.TestDistorted} {
		if err := utils.CreateFolder(dir); err != nil {
			return rep, err
		}
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.NewOptions(len(split.Train)+len(split.Val)+len(split.Test),
			progressbar.OptionSetDescription("frames"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
		defer func() { _ = bar.Close() }()
	}
	tick := func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	var errs []error
	pairSets := []struct {
		frames           []models.RenderedFrame
		distDir, origDir string
	}{
		{split.Train, layout.TrainDistorted, layout.TrainOriginal},
		{split.Val, layout.ValDistorted, layout.ValOriginal},
	}
	for _, set := range pairSets {
		for _, f := range set.frames {
			n, err := copyPair(inputDir, f, set.distDir, set.origDir)
			rep.Bytes += n
			if err != nil {
				rep.Aborted++
				errs = append(errs, err)
			} else {
				rep.Pairs++
			}
			tick()
		}
	}

	for _, f := range split.Test {
		src := filepath.Join(inputDir, "distorted", f.Sample, f.Frame)
		n, err := utils.CopyFile(src, filepath.Join(layout.TestDistorted, OutputName(f)))
		rep.Bytes += n
		if err != nil {
			rep.Aborted++
			errs = append(errs, fmt.Errorf("test frame %s/%s: %w", f.Sample, f.Frame, err))
		} else {
			rep.Test++
		}
		tick()
	}
	return rep, errors.Join(errs...)
}

// copyPair checks both sources before copying so a pair is either fully
// present in the layout or absent.
func copyPair(inputDir string, f models.RenderedFrame, distDir, origDir string) (int64, error) {
	dist := filepath.Join(inputDir, "distorted", f.Sample, f.Frame)
	orig := OriginalPath(inputDir, f)
	if !utils.FileExists(orig) {
		return 0, fmt.Errorf("pair %s/%s: %w: %s", f.Sample, f.Frame, ErrMissingOriginal, orig)
	}
	if !utils.FileExists(dist) {
		return 0, fmt.Errorf("pair %s/%s: distorted frame %s: %w", f.Sample, f.Frame, dist, os.ErrNotExist)
	}

	name := OutputName(f)
	distDst := filepath.Join(distDir, name)
	n, err := utils.CopyFile(dist, distDst)
	if err != nil {
		return n, fmt.Errorf("pair %s/%s: %w", f.Sample, f.Frame, err)
	}
	m, err := utils.CopyFile(orig, filepath.Join(origDir, name))
	if err != nil {
		_ = os.Remove(distDst)
		return n + m, fmt.Errorf("pair %s/%s: %w", f.Sample, f.Frame, err)
	}
	return n + m, nil
}

package download

import (
	"io/fs"
	"os"
	"path/filepath"

	"water-synth/allocate"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

// VerifyOptions controls Verify.
type VerifyOptions struct {
	// MinSide removes images whose shorter side is below it. Zero keeps all sizes.
	MinSide int
	// ResizeSide resizes every kept image to a ResizeSide square. Zero keeps
	// the original size.
	ResizeSide   int
	ShowProgress bool
}

// VerifyReport counts the outcome of Verify.
type VerifyReport struct {
	Valid   int
	Invalid int
	Small   int
	Resized int
}

// Removed is the number of deleted images.
func (r VerifyReport) Removed() int { return r.Invalid + r.Small }

// Verify decodes every image below root, deleting those that do not decode
// or are too small. Bad images are never an error; only filesystem failures are.
func Verify(root string, opts VerifyOptions) (VerifyReport, error) {
	var rep VerifyReport
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && allocate.IsImageFile(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return rep, errors.Wrapf(err, "scan %s", root)
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("verify"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
		defer func() { _ = bar.Close() }()
	}

	for _, path := range paths {
		if bar != nil {
			_ = bar.Add(1)
		}
		img, err := imaging.Open(path)
		if err != nil {
			rep.Invalid++
			if err := os.Remove(path); err != nil {
				return rep, errors.Wrap(err, "remove invalid image")
			}
			continue
		}
		b := img.Bounds()
		if opts.MinSide > 0 && min(b.Dx(), b.Dy()) < opts.MinSide {
			rep.Small++
			if err := os.Remove(path); err != nil {
				return rep, errors.Wrap(err, "remove small image")
			}
			continue
		}
		if opts.ResizeSide > 0 && (b.Dx() != opts.ResizeSide || b.Dy() != opts.ResizeSide) {
			resized := imaging.Resize(img, opts.ResizeSide, opts.ResizeSide, imaging.Lanczos)
			if err := imaging.Save(resized, path); err != nil {
				return rep, errors.Wrapf(err, "save resized %s", path)
			}
			rep.Resized++
		}
		rep.Valid++
	}
	return rep, nil
}

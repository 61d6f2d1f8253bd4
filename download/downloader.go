// Package download fetches class images with the external downloader and
// cleans up what it produced.
package download

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"

	"water-synth/utils"

	"github.com/pkg/errors"
)

// Downloader runs the external image downloader script.
type Downloader struct {
	Python string
	Script string
	// DataRoot is passed as -data_root; images land in class directories below it.
	DataRoot string
	// Output receives the downloader's stdout and stderr. Defaults to os.Stderr.
	Output io.Writer
	Logger *slog.Logger
}

// Args returns the downloader command line for the given counts.
func (d Downloader) Args(classes, perClass int) []string {
	return []string{
		d.Script,
		"-number_of_classes", strconv.Itoa(classes),
		"-images_per_class", strconv.Itoa(perClass),
		"-data_root", d.DataRoot,
	}
}

// Run downloads perClass images for each of classes classes and waits for
// the downloader to exit.
func (d Downloader) Run(ctx context.Context, classes, perClass int) error {
	if classes < 1 || perClass < 1 {
		return errors.Errorf("invalid download request: %d classes x %d images", classes, perClass)
	}
	logger := d.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}
	out := d.Output
	if out == nil {
		out = os.Stderr
	}

	cmd := exec.CommandContext(ctx, d.Python, d.Args(classes, perClass)...)
	cmd.Stdout = out
	cmd.Stderr = out

	logger.InfoContext(ctx, "downloading images",
		slog.Int("classes", classes),
		slog.Int("perClass", perClass),
		slog.String("dataRoot", d.DataRoot),
	)
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "downloader %s", d.Script)
	}
	return nil
}

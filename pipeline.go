package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"water-synth/allocate"
	"water-synth/config"
	"water-synth/db"
	"water-synth/download"
	"water-synth/models"
	"water-synth/params"
	"water-synth/scheduler"
	"water-synth/utils"

	"github.com/dustin/go-humanize"
	"github.com/mdobak/go-xerrors"
)

type pipelineOptions struct {
	Counts         allocate.Counts
	FramesPerImage int
	WaveScale      float64
	Amplifier      float64
	GPUs           []int
	Seed           int64
	SkipDownload   bool
	Keep           bool
}

func parsePipelineFlags(args []string) (pipelineOptions, error) {
	fs := flag.NewFlagSet("pipeline", flag.ContinueOnError)
	classes := fs.Int("number_of_classes", -1, "Number of classes to download (wins over --total_images)")
	perClass := fs.Int("images_per_class", 1, "Images taken from each class")
	total := fs.Int("total_images", -1, "Total number of samples")
	frames := fs.Int("frames_per_image", 30, "Distorted frames rendered per sample")
	waveScale := fs.Float64("wave_scale", 0, "Fixed coarse wave scale (0 = random per sample)")
	amplifier := fs.Float64("amplifier", 0, "Fixed amplifier (0 = random per sample)")
	seed := fs.Int64("seed", 0, "Random seed (0 = time based)")
	skipDownload := fs.Bool("skip_download", false, "Reuse already downloaded images")
	keep := fs.Bool("keep", false, "Keep downloads and samples after rendering")
	var gpus intList
	fs.Var(&gpus, "gpus", "GPU ids, one worker per id (empty = one worker on all devices)")
	if err := fs.Parse(args); err != nil {
		return pipelineOptions{}, err
	}

	counts, err := allocate.ReconcileCounts(*total, *classes, *perClass)
	if err != nil {
		return pipelineOptions{}, err
	}
	if *frames < 1 {
		return pipelineOptions{}, fmt.Errorf("frames per image must be >= 1, got %d", *frames)
	}
	opts := pipelineOptions{
		Counts:         counts,
		FramesPerImage: *frames,
		WaveScale:      *waveScale,
		Amplifier:      *amplifier,
		GPUs:           gpus,
		Seed:           *seed,
		SkipDownload:   *skipDownload,
		Keep:           *keep,
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return opts, nil
}

// workerCommand re-executes this binary's render subcommand for one item.
func workerCommand(exe string, base scheduler.RenderArgs) scheduler.CommandFunc {
	return func(ctx context.Context, item models.GPUWorkItem) *exec.Cmd {
		args := append([]string{"render"}, scheduler.WorkerArgs(item, base)...)
		return exec.CommandContext(ctx, exe, args...)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func runPipeline(ctx context.Context, cfg config.Config, args []string) error {
	logger := utils.GetLogger()
	opts, err := parsePipelineFlags(args)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	logger.InfoContext(ctx, "starting pipeline",
		slog.Int("classes", opts.Counts.NumberOfClasses),
		slog.Int("perClass", opts.Counts.ImagesPerClass),
		slog.Int("total", opts.Counts.TotalImages),
		slog.Int("frames", opts.FramesPerImage),
		slog.Any("gpus", opts.GPUs),
		slog.Int64("seed", opts.Seed),
	)

	if !opts.SkipDownload {
		dl := download.Downloader{Python: cfg.PythonBin, Script: cfg.DownloaderPath, DataRoot: cfg.DownloadsRoot}
		if err := dl.Run(ctx, opts.Counts.NumberOfClasses, opts.Counts.ImagesPerClass); err != nil {
			return err
		}
		rep, err := download.Verify(cfg.DownloadsPath, download.VerifyOptions{
			MinSide:      cfg.MinImageSide,
			ResizeSide:   cfg.ResizeSide,
			ShowProgress: true,
		})
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "verified downloads",
			slog.Int("valid", rep.Valid),
			slog.Int("invalid", rep.Invalid),
			slog.Int("small", rep.Small),
			slog.Int("resized", rep.Resized),
		)
	}

	buckets, err := allocate.DiscoverBuckets(cfg.DownloadsPath)
	if err != nil {
		return err
	}
	alloc, err := allocate.NewAllocator(rng).Allocate(buckets, opts.Counts.TotalImages, opts.Counts.ImagesPerClass)
	if errors.Is(err, allocate.ErrShortfall) {
		logger.WarnContext(ctx, "allocation shortfall",
			slog.Int("requested", alloc.Requested),
			slog.Int("allocated", len(alloc.Samples)),
			slog.Int("missing", alloc.Shortfall()),
		)
	} else if err != nil {
		return err
	}
	n := len(alloc.Samples)
	if n == 0 {
		return errors.New("no samples allocated")
	}
	if _, err := allocate.Materialize(alloc.Samples, cfg.SamplesDir, cfg.SampleExt, true); err != nil {
		return err
	}

	// the table has its own source so it can be regenerated from the seed alone
	gen, err := params.NewGenerator(cfg.Bounds, rand.New(rand.NewSource(opts.Seed)))
	if err != nil {
		return err
	}
	table := params.TableFromParams(gen.Generate(n, opts.WaveScale, opts.Amplifier), opts.WaveScale != 0, opts.Amplifier != 0, opts.Seed)
	if err := params.SaveTable(cfg.ParamFile, table); err != nil {
		return err
	}

	runID := utils.NewRunID()
	ledger, err := db.NewSQLiteClient(cfg.LedgerPath)
	if err != nil {
		logger.WarnContext(ctx, "ledger unavailable, render stats will not be recorded", slog.Any("error", err))
		ledger = nil
	} else {
		defer ledger.Close()
		if err := ledger.StartRun(ctx, runID, n, opts.GPUs); err != nil {
			logger.WarnContext(ctx, "failed to register run", slog.Any("error", err))
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate worker binary: %w", err)
	}
	items := scheduler.Schedule(n, opts.GPUs)
	launcher := &scheduler.Launcher{
		Command: workerCommand(exe, scheduler.RenderArgs{
			SampleDir:  absPath(cfg.SamplesDir),
			OutputDir:  absPath(cfg.OutputDir),
			FirstFrame: 1,
			LastFrame:  opts.FramesPerImage,
			ParamFile:  absPath(cfg.ParamFile),
			WaveScale:  opts.WaveScale,
			Amplifier:  opts.Amplifier,
			RunID:      runID,
			Seed:       opts.Seed,
		}),
		LogDir: cfg.LogDir,
		Logger: logger,
	}

	started := time.Now()
	_, runErr := launcher.Run(ctx, items)
	logger.InfoContext(ctx, "render finished",
		slog.String("runId", runID),
		slog.Int("samples", n),
		slog.Duration("elapsed", time.Since(started)),
	)
	if ledger != nil {
		logRunSummary(ctx, logger, ledger, runID)
	}

	if !opts.Keep {
		for _, dir := range []string{cfg.DownloadsPath, cfg.SamplesDir} {
			if err := os.RemoveAll(dir); err != nil {
				logger.WarnContext(ctx, "cleanup failed", slog.String("dir", dir), slog.Any("error", xerrors.New(err)))
			}
		}
		logger.InfoContext(ctx, "cleaned up", slog.String("downloads", cfg.DownloadsPath), slog.String("samples", cfg.SamplesDir))
	}
	return runErr
}

func logRunSummary(ctx context.Context, logger *slog.Logger, ledger *db.SQLiteClient, runID string) {
	st, ok, err := ledger.RunStatus(ctx, runID)
	if err != nil || !ok {
		logger.WarnContext(ctx, "no ledger summary", slog.String("runId", runID), slog.Any("error", err))
		return
	}
	for _, g := range st.GPUs {
		logger.InfoContext(ctx, "gpu summary",
			slog.Int("gpu", g.GPU),
			slog.Int("samples", g.Samples),
			slog.Float64("avgSeconds", g.AvgElapsedMs/1000),
		)
	}
	logger.InfoContext(ctx, "run summary",
		slog.String("runId", runID),
		slog.String("rendered", fmt.Sprintf("%s of %s", humanize.Comma(int64(st.Rendered)), humanize.Comma(int64(st.Requested)))),
	)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"water-synth/config"
	"water-synth/db"
	"water-synth/params"
	"water-synth/render"
	"water-synth/scheduler"
	"water-synth/utils"
)

type renderOptions struct {
	SampleDir string
	OutputDir string
	Samples   intPair
	Frames    intPair
	ParamFile string
	WaveScale float64
	Amplifier float64
	GPU       int
	RunID     string
	Seed      int64
	Ledger    string
}

func parseRenderFlags(cfg config.Config, args []string) (renderOptions, error) {
	var o renderOptions
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.StringVar(&o.SampleDir, "sample_dir", cfg.SamplesDir, "Directory holding NNNN sample images")
	fs.StringVar(&o.OutputDir, "output_dir", cfg.OutputDir, "Render output directory")
	fs.Var(&o.Samples, "samples", "First and last sample id (inclusive)")
	fs.Var(&o.Frames, "frames", "First and last animation frame")
	fs.StringVar(&o.ParamFile, "param_file", "", "Parameter table written by the pipeline")
	fs.Float64Var(&o.WaveScale, "wave_scale", 0, "Fixed coarse wave scale (0 = random)")
	fs.Float64Var(&o.Amplifier, "amplifier", 0, "Fixed amplifier (0 = random)")
	fs.IntVar(&o.GPU, "gpu_id", scheduler.AllDevices, "GPU to render on (-1 = all)")
	fs.StringVar(&o.RunID, "run_id", "", "Pipeline run id recorded in the ledger")
	fs.Int64Var(&o.Seed, "seed", 0, "Base seed of per-sample randomization")
	fs.StringVar(&o.Ledger, "ledger", cfg.LedgerPath, "SQLite ledger path (empty disables recording)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if !o.Samples.set {
		return o, errors.New("--samples <first> <last> is required")
	}
	if !o.Frames.set {
		o.Frames = intPair{First: 1, Last: 30, set: true}
	}
	if o.Frames.First < 0 || o.Frames.First > o.Frames.Last {
		return o, fmt.Errorf("invalid frame range %d..%d", o.Frames.First, o.Frames.Last)
	}
	return o, nil
}

// workerSeed picks the base seed: the flag, then the parameter table's seed,
// then the clock.
func workerSeed(flagSeed, tableSeed int64, now time.Time) int64 {
	switch {
	case flagSeed != 0:
		return flagSeed
	case tableSeed != 0:
		return tableSeed
	default:
		return now.UnixNano()
	}
}

// runRender is one render worker: it owns a renderer process and renders
// its sample range sequentially.
func runRender(ctx context.Context, cfg config.Config, args []string) error {
	logger := utils.GetLogger()
	opts, err := parseRenderFlags(cfg, args)
	if err != nil {
		return err
	}
	logger = logger.With(slog.Int("gpu", opts.GPU))

	resolver := params.Resolver{FixedWaveScale: opts.WaveScale, FixedAmplifier: opts.Amplifier}
	var tableSeed int64
	if opts.ParamFile != "" {
		table, err := params.LoadTable(opts.ParamFile)
		if err != nil {
			return err
		}
		resolver.Table = table
		tableSeed = table.Seed
	}
	opts.Seed = workerSeed(opts.Seed, tableSeed, time.Now())
	logger.InfoContext(ctx, "render seed", slog.Int64("seed", opts.Seed))

	host, err := render.NewBridgeHost(ctx, render.BridgeOptions{
		Blender:   cfg.BlenderBin,
		BlendFile: cfg.BlendFile,
		Script:    cfg.BridgeScript,
		Log:       os.Stdout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Close(); err != nil {
			logger.WarnContext(ctx, "renderer did not exit cleanly", slog.Any("error", err))
		}
	}()
	logger.InfoContext(ctx, "renderer started", slog.String("version", host.Version))

	devices, err := host.SelectDevice(opts.GPU)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "devices selected", slog.Any("devices", devices))
	if err := host.SetFrameRange(opts.Frames.First, opts.Frames.Last); err != nil {
		return err
	}

	nodes, err := render.ResolveNodes(host, render.NodeNames(cfg.Scene))
	if err != nil {
		return err
	}
	inv, err := render.NewInvoker(host, nodes, render.InvokerOptions{
		SampleDir: opts.SampleDir,
		OutputDir: opts.OutputDir,
		SampleExt: cfg.SampleExt,
		FirstKey:  cfg.Bounds.FirstKey,
		LastKey:   cfg.Bounds.LastKey,
	})
	if err != nil {
		return err
	}

	worker := &render.Worker{
		Invoker: inv,
		Params:  resolver,
		Bounds:  cfg.Bounds,
		Seed:    opts.Seed,
		GPU:     opts.GPU,
		RunID:   opts.RunID,
		Logger:  logger,
	}
	if opts.Ledger != "" {
		ledger, err := db.NewSQLiteClient(opts.Ledger)
		if err != nil {
			logger.WarnContext(ctx, "ledger unavailable", slog.Any("error", err))
		} else {
			defer ledger.Close()
			worker.Recorder = ledger
		}
	}

	sum, err := worker.RenderRange(ctx, opts.Samples.First, opts.Samples.Last)
	logger.InfoContext(ctx, "worker done",
		slog.Int("first", sum.First),
		slog.Int("last", sum.Last),
		slog.Int("rendered", sum.Rendered),
		slog.Duration("total", sum.Total),
		slog.Duration("average", sum.Average),
	)
	return err
}

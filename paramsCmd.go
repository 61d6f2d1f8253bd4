package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"time"

	"water-synth/config"
	"water-synth/params"
	"water-synth/utils"
)

func runParams(ctx context.Context, cfg config.Config, args []string) error {
	logger := utils.GetLogger()
	fs := flag.NewFlagSet("params", flag.ContinueOnError)
	count := fs.Int("count", 0, "Number of samples")
	waveScale := fs.Float64("wave_scale", 0, "Fixed coarse wave scale (0 = random per sample)")
	amplifier := fs.Float64("amplifier", 0, "Fixed amplifier (0 = random per sample)")
	seed := fs.Int64("seed", 0, "Random seed (0 = time based)")
	out := fs.String("out", cfg.ParamFile, "Parameter table path")
	plotPath := fs.String("plot", "", "Write parameter distribution plots to this PNG")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count < 1 {
		return errors.New("--count must be >= 1")
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	gen, err := params.NewGenerator(cfg.Bounds, rand.New(rand.NewSource(*seed)))
	if err != nil {
		return err
	}
	table := params.TableFromParams(gen.Generate(*count, *waveScale, *amplifier), *waveScale != 0, *amplifier != 0, *seed)
	if err := params.SaveTable(*out, table); err != nil {
		return err
	}
	logger.InfoContext(ctx, "wrote parameter table", slog.String("path", *out), slog.Int("count", *count), slog.Int64("seed", *seed))

	if *plotPath != "" {
		written, err := params.PlotTable(table, *plotPath)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "wrote plots", slog.Any("paths", written))
	}
	return nil
}

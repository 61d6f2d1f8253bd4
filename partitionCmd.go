package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"time"

	"water-synth/config"
	"water-synth/db"
	"water-synth/partition"
	"water-synth/utils"

	"github.com/dustin/go-humanize"
	"github.com/mdobak/go-xerrors"
)

func runPartition(ctx context.Context, cfg config.Config, args []string) error {
	logger := utils.GetLogger()
	fs := flag.NewFlagSet("partition", flag.ContinueOnError)
	input := fs.String("input", cfg.OutputDir, "Render output directory (distorted/ and undistorted/)")
	data := fs.String("data", cfg.DataRoot, "Root of the training data layout")
	valPct := fs.Float64("val_pct", cfg.ValPct, "Fraction of frames used for validation")
	testPct := fs.Float64("test_pct", cfg.TestPct, "Fraction of frames used for testing")
	seed := fs.Int64("seed", 0, "Shuffle seed (0 = time based)")
	runID := fs.String("run_id", "", "Run id the split is recorded under")
	ledgerPath := fs.String("ledger", cfg.LedgerPath, "SQLite ledger path (empty disables recording)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	if *runID == "" {
		*runID = utils.NewRunID()
	}

	frames, err := partition.Collect(*input)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return errors.New("no rendered frames found")
	}
	split, err := partition.Partition(frames, *valPct, *testPct, rand.New(rand.NewSource(*seed)))
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "partitioned frames",
		slog.Int("frames", len(frames)),
		slog.Int("train", len(split.Train)),
		slog.Int("val", len(split.Val)),
		slog.Int("test", len(split.Test)),
		slog.Int64("seed", *seed),
	)

	rep, copyErr := partition.Materialize(split, *input, partition.DefaultLayout(*data), true)
	logger.InfoContext(ctx, "copied dataset",
		slog.Int("pairs", rep.Pairs),
		slog.Int("test", rep.Test),
		slog.Int("aborted", rep.Aborted),
		slog.String("size", humanize.Bytes(uint64(rep.Bytes))),
	)

	if *ledgerPath != "" {
		ledger, err := db.NewSQLiteClient(*ledgerPath)
		if err != nil {
			logger.WarnContext(ctx, "ledger unavailable", slog.Any("error", err))
		} else {
			defer ledger.Close()
			if err := ledger.RecordSplit(ctx, *runID, split); err != nil {
				logger.WarnContext(ctx, "failed to record split", slog.Any("error", xerrors.New(err)))
			}
		}
	}
	return copyErr
}

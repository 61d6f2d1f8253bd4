package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"water-synth/config"
	"water-synth/utils"

	"github.com/mdobak/go-xerrors"
)

const usage = "Expected one of 'pipeline', 'render', 'partition', 'params' or 'monitor' subcommands"

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load reads .env, which may also configure the logger.
	cfg, err := config.Load()
	logger := utils.GetLogger()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load configuration.", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
	if err := utils.CreateFolder(cfg.LogDir); err != nil {
		logger.ErrorContext(ctx, "Failed create log dir.", slog.Any("error", xerrors.New(err)))
	}

	args := joinMultiValueFlags(os.Args[2:], multiValueFlags)
	switch os.Args[1] {
	case "pipeline":
		err = runPipeline(ctx, cfg, args)
	case "render":
		err = runRender(ctx, cfg, args)
	case "partition":
		err = runPartition(ctx, cfg, args)
	case "params":
		err = runParams(ctx, cfg, args)
	case "monitor":
		err = runMonitor(ctx, cfg, args)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	if err != nil {
		logger.ErrorContext(ctx, os.Args[1]+" failed", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"water-synth/models"
	"water-synth/utils"

	"github.com/dustin/go-humanize"
)

// CommandFunc builds the worker process for one item. The launcher owns the
// returned command's stdout and stderr.
type CommandFunc func(ctx context.Context, item models.GPUWorkItem) *exec.Cmd

// Launcher runs one worker process per work item and waits for all of them.
type Launcher struct {
	Command CommandFunc
	LogDir  string
	Logger  *slog.Logger
}

// Result describes how one worker process ended.
type Result struct {
	Item     models.GPUWorkItem
	LogPath  string
	Elapsed  time.Duration
	ExitCode int
	Err      error
	Skipped  bool
}

// LogPath is the log file the worker in schedule slot writes to. The slot
// keeps names unique when a device appears more than once.
func LogPath(logDir string, slot, gpu int) string {
	name := fmt.Sprintf("render_slot%d_gpu%d.log", slot, gpu)
	if gpu == AllDevices {
		name = fmt.Sprintf("render_slot%d_all.log", slot)
	}
	return filepath.Join(logDir, name)
}

// Run starts every non-empty item concurrently and blocks until all worker
// processes have exited. A failing worker does not stop its siblings; the
// returned error joins every worker failure.
func (l *Launcher) Run(ctx context.Context, items []models.GPUWorkItem) ([]Result, error) {
	if l.Command == nil {
		return nil, errors.New("launcher has no command")
	}
	logger := l.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}
	if err := utils.CreateFolder(l.LogDir); err != nil {
		return nil, err
	}

	results := make([]Result, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		results[i] = Result{Item: item, LogPath: LogPath(l.LogDir, i, item.GPU)}
		if item.Len() == 0 {
			results[i].Skipped = true
			logger.InfoContext(ctx, "worker has no samples, skipping", slog.Int("gpu", item.GPU))
			continue
		}

		wg.Add(1)
		go func(res *Result) {
			defer wg.Done()
			l.runOne(ctx, logger, res)
		}(&results[i])
	}
	wg.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("worker %s: %w", res.Item, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (l *Launcher) runOne(ctx context.Context, logger *slog.Logger, res *Result) {
	logFile, err := os.Create(res.LogPath)
	if err != nil {
		res.Err = fmt.Errorf("create log file: %w", err)
		return
	}
	defer logFile.Close()

	cmd := l.Command(ctx, res.Item)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	logger.InfoContext(ctx, "starting render worker",
		slog.Int("gpu", res.Item.GPU),
		slog.Int("first", res.Item.Start),
		slog.Int("last", res.Item.End),
		slog.String("log", res.LogPath),
	)

	start := time.Now()
	err = cmd.Run()
	res.Elapsed = time.Since(start)
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		res.Err = err
		logger.ErrorContext(ctx, "render worker failed",
			slog.Int("gpu", res.Item.GPU),
			slog.Int("exitCode", res.ExitCode),
			slog.String("log", res.LogPath),
			slog.Any("error", err),
		)
		return
	}
	logger.InfoContext(ctx, "render worker finished",
		slog.Int("gpu", res.Item.GPU),
		slog.String("samples", humanize.Comma(int64(res.Item.Len()))),
		slog.String("elapsed", res.Elapsed.Round(time.Second).String()),
	)
}

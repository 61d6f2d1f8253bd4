package render

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"water-synth/models"
	"water-synth/params"
	"water-synth/utils"

	"github.com/mdobak/go-xerrors"
)

// Recorder persists one rendered sample. The SQLite ledger implements it.
type Recorder interface {
	RecordRender(ctx context.Context, rec models.RenderRecord) error
}

// Worker renders a contiguous sample range, one sample at a time.
type Worker struct {
	Invoker *Invoker
	// Params supplies table or scalar parameters; its generator is replaced
	// per sample.
	Params params.Resolver
	Bounds params.Bounds
	// Seed makes randomized parameters and keyframes reproducible per
	// sample id, independently of how ranges were split across GPUs.
	Seed     int64
	GPU      int
	RunID    string
	Recorder Recorder
	Logger   *slog.Logger
}

// Summary aggregates one RenderRange call.
type Summary struct {
	First    int
	Last     int
	Rendered int
	Total    time.Duration
	Average  time.Duration
}

// RenderRange renders samples first..last inclusive. The first failing
// sample stops the range; samples already rendered stay on disk.
func (w *Worker) RenderRange(ctx context.Context, first, last int) (Summary, error) {
	sum := Summary{First: first, Last: last}
	if first < 0 {
		return sum, fmt.Errorf("first sample %d is negative", first)
	}
	if first > last {
		return sum, fmt.Errorf("first sample %d is after last sample %d", first, last)
	}
	logger := w.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}

	n := last - first + 1
	for id := first; id <= last; id++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		gen, err := params.NewGenerator(w.Bounds, rand.New(rand.NewSource(w.Seed+int64(id))))
		if err != nil {
			return sum, err
		}
		resolver := w.Params
		resolver.Gen = gen
		p, err := resolver.Params(id)
		if err != nil {
			return sum, err
		}
		keys := gen.Keyframes()

		logger.DebugContext(ctx, "rendering sample",
			slog.Int("sample", id),
			slog.Int("index", id-first+1),
			slog.Int("of", n),
			slog.Float64("coarse", p.WaveScaleCoarse),
			slog.Float64("fine", p.WaveScaleFine),
			slog.Float64("amplifier", p.Amplifier),
		)

		res, err := w.Invoker.RenderSample(id, p, keys)
		if err != nil {
			logger.ErrorContext(ctx, "sample failed", slog.Int("sample", id), slog.Any("error", xerrors.New(err)))
			return sum, fmt.Errorf("sample %d: %w", id, err)
		}
		sum.Rendered++
		sum.Total += res.Elapsed
		sum.Average = sum.Total / time.Duration(sum.Rendered)

		logger.InfoContext(ctx, "sample completed",
			slog.Int("sample", id),
			slog.Int("done", sum.Rendered),
			slog.Int("of", n),
			slog.Float64("seconds", res.Elapsed.Seconds()),
			slog.Float64("avgSeconds", sum.Average.Seconds()),
		)

		if w.Recorder != nil {
			rec := models.RenderRecord{
				RunID:       w.RunID,
				SampleID:    id,
				GPU:         w.GPU,
				ElapsedMs:   float64(res.Elapsed) / float64(time.Millisecond),
				Undistorted: res.Undistorted,
				Distorted:   res.Distorted,
				RenderedAt:  time.Now().UTC(),
			}
			if err := w.Recorder.RecordRender(ctx, rec); err != nil {
				// the frames are on disk; a missing ledger row only affects monitoring
				logger.WarnContext(ctx, "failed to record render", slog.Int("sample", id), slog.Any("error", err))
			}
		}
	}
	return sum, nil
}

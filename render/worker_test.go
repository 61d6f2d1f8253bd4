package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"water-synth/models"
	"water-synth/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	recs []models.RenderRecord
	err  error
}

func (m *memRecorder) RecordRender(_ context.Context, rec models.RenderRecord) error {
	m.recs = append(m.recs, rec)
	return m.err
}

func newTestWorker(t *testing.T, host Host, rec Recorder) *Worker {
	t.Helper()
	return &Worker{
		Invoker:  newTestInvoker(t, host),
		Bounds:   params.DefaultBounds(),
		Seed:     42,
		GPU:      1,
		RunID:    "run-1",
		Recorder: rec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRenderRangeRecordsEverySample(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	rec := &memRecorder{}
	w := newTestWorker(t, host, rec)

	sum, err := w.RenderRange(context.Background(), 3, 6)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Rendered)
	assert.Equal(t, sum.Total/4, sum.Average)
	require.Len(t, rec.recs, 4)
	for i, r := range rec.recs {
		assert.Equal(t, 3+i, r.SampleID)
		assert.Equal(t, 1, r.GPU)
		assert.Equal(t, "run-1", r.RunID)
	}
	assert.Len(t, host.callsWithPrefix("anim"), 4)
}

func TestRenderRangeIsDeterministicAcrossSplits(t *testing.T) {
	t.Parallel()

	whole := newFakeHost()
	_, err := newTestWorker(t, whole, nil).RenderRange(context.Background(), 0, 5)
	require.NoError(t, err)

	left, right := newFakeHost(), newFakeHost()
	_, err = newTestWorker(t, left, nil).RenderRange(context.Background(), 0, 2)
	require.NoError(t, err)
	_, err = newTestWorker(t, right, nil).RenderRange(context.Background(), 3, 5)
	require.NoError(t, err)

	split := append(left.callsWithPrefix("set"), right.callsWithPrefix("set")...)
	assert.Equal(t, whole.callsWithPrefix("set"), split)
	splitKeys := append(left.callsWithPrefix("key"), right.callsWithPrefix("key")...)
	assert.Equal(t, whole.callsWithPrefix("key"), splitKeys)
}

func TestRenderRangeUsesTable(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	w := newTestWorker(t, host, nil)
	w.Params = params.Resolver{Table: params.Table{
		WaveScales:     []float64{4, 5},
		WaveScalesFine: []float64{6, 7},
		Amplifiers:     []float64{0.2, 0.3},
	}}

	_, err := w.RenderRange(context.Background(), 0, 1)
	require.NoError(t, err)
	sets := host.callsWithPrefix("set")
	assert.Equal(t, []string{
		"set coarse[2]=4.000", "set fine[2]=6.000", "set amp[1]=0.200",
		"set coarse[2]=5.000", "set fine[2]=7.000", "set amp[1]=0.300",
	}, sets)

	_, err = w.RenderRange(context.Background(), 1, 2)
	assert.ErrorContains(t, err, "outside parameter table")
}

func TestRenderRangeStopsOnFirstFailure(t *testing.T) {
	t.Parallel()

	host := newFakeHost()
	host.failAnim = errors.New("device lost")
	rec := &memRecorder{}
	w := newTestWorker(t, host, rec)

	sum, err := w.RenderRange(context.Background(), 0, 4)
	require.ErrorIs(t, err, host.failAnim)
	assert.Equal(t, 0, sum.Rendered)
	assert.Len(t, host.callsWithPrefix("anim"), 1)
	assert.Empty(t, rec.recs)
}

func TestRenderRangeRecorderFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{err: errors.New("database is locked")}
	w := newTestWorker(t, newFakeHost(), rec)

	sum, err := w.RenderRange(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Rendered)
}

func TestRenderRangeRejectsBadRange(t *testing.T) {
	t.Parallel()

	w := newTestWorker(t, newFakeHost(), nil)
	_, err := w.RenderRange(context.Background(), 5, 4)
	assert.Error(t, err)
	_, err = w.RenderRange(context.Background(), -1, 4)
	assert.Error(t, err)
}

func TestRenderRangeHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	host := newFakeHost()
	_, err := newTestWorker(t, host, nil).RenderRange(ctx, 0, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, host.calls)
}

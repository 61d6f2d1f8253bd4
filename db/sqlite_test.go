package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"water-synth/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *SQLiteClient {
	t.Helper()
	c, err := NewSQLiteClient(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func render(run string, id, gpu int, ms float64) models.RenderRecord {
	return models.RenderRecord{
		RunID:       run,
		SampleID:    id,
		GPU:         gpu,
		ElapsedMs:   ms,
		Undistorted: "out/undistorted/" + models.SampleName(id),
		Distorted:   "out/distorted/" + models.SampleName(id) + "/####",
		RenderedAt:  time.Now().UTC(),
	}
}

func TestRunStatusAggregatesPerGPU(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.StartRun(ctx, "run-a", 5, []int{0, 1}))
	require.NoError(t, c.RecordRender(ctx, render("run-a", 0, 0, 100)))
	require.NoError(t, c.RecordRender(ctx, render("run-a", 1, 0, 300)))
	require.NoError(t, c.RecordRender(ctx, render("run-a", 3, 1, 50)))
	// other runs do not leak into the status
	require.NoError(t, c.RecordRender(ctx, render("run-b", 0, 0, 1)))

	st, ok, err := c.RunStatus(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, st.Requested)
	assert.Equal(t, 3, st.Rendered)
	require.Len(t, st.GPUs, 2)
	assert.Equal(t, models.GPUStat{GPU: 0, Samples: 2, AvgElapsedMs: 200, MaxSampleID: 1}, st.GPUs[0])
	assert.Equal(t, models.GPUStat{GPU: 1, Samples: 1, AvgElapsedMs: 50, MaxSampleID: 3}, st.GPUs[1])
	assert.False(t, st.StartedAt.IsZero())
}

func TestRecordRenderReplacesSample(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.StartRun(ctx, "run", 1, nil))
	require.NoError(t, c.RecordRender(ctx, render("run", 0, 0, 100)))
	require.NoError(t, c.RecordRender(ctx, render("run", 0, 0, 40)))

	stats, err := c.GPUStats(ctx, "run")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Samples)
	assert.InDelta(t, 40, stats[0].AvgElapsedMs, 1e-9)
}

func TestRunStatusUnknownRun(t *testing.T) {
	t.Parallel()
	c := newTestClient(t)

	_, ok, err := c.RunStatus(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecentRuns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.StartRun(ctx, "first", 1, []int{-1}))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.StartRun(ctx, "second", 2, []int{0}))

	runs, err := c.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "second", runs[0].RunID)
	assert.Equal(t, "first", runs[1].RunID)

	runs, err = c.RecentRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordSplit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestClient(t)

	split := models.DatasetSplit{
		Train: []models.RenderedFrame{{Sample: "0000", Frame: "0001.jpg"}, {Sample: "0000", Frame: "0002.jpg"}},
		Val:   []models.RenderedFrame{{Sample: "0001", Frame: "0001.jpg"}},
		Test:  []models.RenderedFrame{{Sample: "0001", Frame: "0002.jpg"}},
	}
	require.NoError(t, c.RecordSplit(ctx, "run", split))

	counts, err := c.SplitCounts(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"train": 2, "val": 1, "test": 1}, counts)
}

func TestBusyTimeoutKeptFromDSN(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "ledger.db")
	c, err := NewSQLiteClient(path + "?_busy_timeout=100")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.StartRun(context.Background(), "run", 1, nil))
}

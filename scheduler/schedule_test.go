package scheduler

import (
	"testing"

	"water-synth/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleSeventeenOverThreeGPUs(t *testing.T) {
	t.Parallel()

	items := Schedule(17, []int{0, 1, 2})
	assert.Equal(t, []models.GPUWorkItem{
		{GPU: 0, Start: 0, End: 5},
		{GPU: 1, Start: 6, End: 11},
		{GPU: 2, Start: 12, End: 16},
	}, items)
}

func TestScheduleWithoutSlotsUsesAllDevices(t *testing.T) {
	t.Parallel()

	items := Schedule(10, nil)
	require.Len(t, items, 1)
	assert.Equal(t, models.GPUWorkItem{GPU: AllDevices, Start: 0, End: 9}, items[0])
}

func TestSchedulePartitionProperty(t *testing.T) {
	t.Parallel()

	for k := 1; k <= 9; k++ {
		slots := make([]int, k)
		for i := range slots {
			slots[i] = i * 2
		}
		for n := 0; n <= 64; n++ {
			items := Schedule(n, slots)
			require.Len(t, items, k)

			covered := make([]int, n)
			minSize, maxSize := n+1, -1
			next := 0
			for i, it := range items {
				require.Equal(t, slots[i], it.GPU)
				require.Equal(t, next, it.Start, "n=%d k=%d ranges must be contiguous", n, k)
				for s := it.Start; s <= it.End; s++ {
					covered[s]++
				}
				next = it.End + 1
				minSize = min(minSize, it.Len())
				maxSize = max(maxSize, it.Len())
				if i > 0 {
					require.LessOrEqual(t, it.Len(), items[i-1].Len(), "remainder goes to the earliest slots")
				}
			}
			require.Equal(t, n, next)
			for s, c := range covered {
				require.Equal(t, 1, c, "n=%d k=%d sample %d covered %d times", n, k, s, c)
			}
			require.LessOrEqual(t, maxSize-minSize, 1)
		}
	}
}

func TestWorkerArgs(t *testing.T) {
	t.Parallel()

	args := WorkerArgs(models.GPUWorkItem{GPU: 2, Start: 12, End: 16}, RenderArgs{
		SampleDir:  "samples",
		OutputDir:  "output",
		FirstFrame: 1,
		LastFrame:  30,
		ParamFile:  "params.json",
		WaveScale:  4.5,
		RunID:      "run-1",
	})
	assert.Equal(t, []string{
		"--sample_dir", "samples",
		"--output_dir", "output",
		"--samples", "12", "16",
		"--frames", "1", "30",
		"--gpu_id", "2",
		"--param_file", "params.json",
		"--wave_scale", "4.5",
		"--run_id", "run-1",
	}, args)
}

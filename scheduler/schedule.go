// Package scheduler splits a sample range across GPU worker slots and runs
// one renderer worker process per slot.
package scheduler

import (
	"strconv"

	"water-synth/models"
)

// AllDevices is the GPU index meaning "use every available device".
const AllDevices = -1

// Schedule partitions [0, n) into len(slots) contiguous ascending ranges.
// Every range gets n/k samples and the first n%k slots get one extra. With no
// slots a single item spanning the whole range is returned on AllDevices.
// Slots that receive no samples get an empty range (End == Start-1).
func Schedule(n int, slots []int) []models.GPUWorkItem {
	if n < 0 {
		n = 0
	}
	if len(slots) == 0 {
		return []models.GPUWorkItem{{GPU: AllDevices, Start: 0, End: n - 1}}
	}

	k := len(slots)
	share, remainder := n/k, n%k
	items := make([]models.GPUWorkItem, k)
	start := 0
	for i, gpu := range slots {
		size := share
		if i < remainder {
			size++
		}
		items[i] = models.GPUWorkItem{GPU: gpu, Start: start, End: start + size - 1}
		start += size
	}
	return items
}

// RenderArgs are the worker flags shared by every work item.
type RenderArgs struct {
	SampleDir  string
	OutputDir  string
	FirstFrame int
	LastFrame  int
	ParamFile  string
	WaveScale  float64
	Amplifier  float64
	RunID      string
	Seed       int64
}

// WorkerArgs renders the command line flags for one work item.
func WorkerArgs(item models.GPUWorkItem, a RenderArgs) []string {
	args := []string{
		"--sample_dir", a.SampleDir,
		"--output_dir", a.OutputDir,
		"--samples", strconv.Itoa(item.Start), strconv.Itoa(item.End),
		"--frames", strconv.Itoa(a.FirstFrame), strconv.Itoa(a.LastFrame),
		"--gpu_id", strconv.Itoa(item.GPU),
	}
	if a.ParamFile != "" {
		args = append(args, "--param_file", a.ParamFile)
	}
	if a.WaveScale != 0 {
		args = append(args, "--wave_scale", strconv.FormatFloat(a.WaveScale, 'g', -1, 64))
	}
	if a.Amplifier != 0 {
		args = append(args, "--amplifier", strconv.FormatFloat(a.Amplifier, 'g', -1, 64))
	}
	if a.RunID != "" {
		args = append(args, "--run_id", a.RunID)
	}
	if a.Seed != 0 {
		args = append(args, "--seed", strconv.FormatInt(a.Seed, 10))
	}
	return args
}

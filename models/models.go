package models

import (
	"fmt"
	"time"
)

// SampleName formats a sample id the way sample files and render outputs are named.
func SampleName(id int) string {
	return fmt.Sprintf("%04d", id)
}

// ClassBucket is one class directory and its candidate images.
type ClassBucket struct {
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

// Sample is a source image renamed to its sequential id.
type Sample struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Class  string `json:"class"`
	Source string `json:"source"`
}

// DistortionParams are the animation inputs applied to one sample.
type DistortionParams struct {
	WaveScaleCoarse float64 `json:"waveScaleCoarse"`
	WaveScaleFine   float64 `json:"waveScaleFine"`
	Amplifier       float64 `json:"amplifier"`
}

// Keyframes holds the start/end values of the two animated noise coordinates.
type Keyframes struct {
	Start [2]float64 `json:"start"`
	End   [2]float64 `json:"end"`
}

// GPUWorkItem assigns the inclusive sample range [Start, End] to one GPU.
// GPU -1 means "let the renderer use every device". End == Start-1 is an
// empty range.
type GPUWorkItem struct {
	GPU   int `json:"gpu"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the range.
func (w GPUWorkItem) Len() int {
	if w.End < w.Start {
		return 0
	}
	return w.End - w.Start + 1
}

func (w GPUWorkItem) String() string {
	return fmt.Sprintf("gpu=%d samples=[%d,%d]", w.GPU, w.Start, w.End)
}

// RenderedFrame identifies one distorted frame on disk.
type RenderedFrame struct {
	Sample string `json:"sample"`
	Frame  string `json:"frame"`
}

// DatasetSplit is a disjoint train/validation/test partition of frames.
type DatasetSplit struct {
	Train []RenderedFrame `json:"train"`
	Val   []RenderedFrame `json:"val"`
	Test  []RenderedFrame `json:"test"`
}

// RenderRecord is one ledger row written by a render worker.
type RenderRecord struct {
	RunID       string    `json:"runId"`
	SampleID    int       `json:"sampleId"`
	GPU         int       `json:"gpu"`
	ElapsedMs   float64   `json:"elapsedMs"`
	Undistorted string    `json:"undistorted"`
	Distorted   string    `json:"distorted"`
	RenderedAt  time.Time `json:"renderedAt"`
}

// GPUStat summarises the ledger for one GPU of one run.
type GPUStat struct {
	GPU          int     `json:"gpu"`
	Samples      int     `json:"samples"`
	AvgElapsedMs float64 `json:"avgElapsedMs"`
	MaxSampleID  int     `json:"maxSampleId"`
}

// RunStatus is the monitor view of a pipeline run.
type RunStatus struct {
	RunID     string    `json:"runId"`
	Requested int       `json:"requested"`
	Rendered  int       `json:"rendered"`
	StartedAt time.Time `json:"startedAt"`
	GPUs      []GPUStat `json:"gpus"`
}

package render

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"water-synth/models"
)

// Result is what one RenderSample call produced.
type Result struct {
	SampleID    int
	Undistorted string
	Distorted   string
	// Elapsed is wall-clock time for the whole sample, including the time
	// the renderer process spends on the still and the animation. It is not
	// CPU time of this process.
	Elapsed time.Duration
}

// Invoker renders samples against one host. It keeps two invariants between
// calls: at most one image is bound to the texture slot, and the
// amplifier-to-displacement link is present.
type Invoker struct {
	host      Host
	nodes     Nodes
	sampleDir string
	outputDir string
	sampleExt string
	firstKey  int
	lastKey   int
}

// InvokerOptions configures NewInvoker.
type InvokerOptions struct {
	SampleDir string
	OutputDir string
	SampleExt string
	// FirstKey and LastKey are the timeline positions of the noise
	// coordinate keyframes; zero values mean 1 and 100.
	FirstKey int
	LastKey  int
}

// NewInvoker binds an invoker to a host and its resolved nodes.
func NewInvoker(host Host, nodes Nodes, opts InvokerOptions) (*Invoker, error) {
	if host == nil {
		return nil, errors.New("host cannot be nil")
	}
	inv := &Invoker{
		host:      host,
		nodes:     nodes,
		sampleDir: opts.SampleDir,
		outputDir: opts.OutputDir,
		sampleExt: opts.SampleExt,
		firstKey:  opts.FirstKey,
		lastKey:   opts.LastKey,
	}
	if inv.sampleExt == "" {
		inv.sampleExt = ".jpg"
	}
	if inv.firstKey == 0 {
		inv.firstKey = defaultKeyframeFirst
	}
	if inv.lastKey == 0 {
		inv.lastKey = defaultKeyframeLast
	}
	if inv.firstKey >= inv.lastKey {
		return nil, fmt.Errorf("keyframe positions %d >= %d", inv.firstKey, inv.lastKey)
	}
	return inv, nil
}

// UndistortedPath is where the still of sample id is written (the renderer
// appends the image extension).
func (inv *Invoker) UndistortedPath(id int) string {
	return filepath.Join(inv.outputDir, "undistorted", models.SampleName(id))
}

// DistortedPattern is the frame pattern of sample id's animation.
func (inv *Invoker) DistortedPattern(id int) string {
	return filepath.Join(inv.outputDir, "distorted", models.SampleName(id), framePlaceholder)
}

// RenderSample swaps in the sample's texture, applies its parameters and
// renders the undistorted still followed by the distorted animation.
func (inv *Invoker) RenderSample(id int, p models.DistortionParams, keys models.Keyframes) (Result, error) {
	res := Result{SampleID: id}
	start := time.Now()

	if err := inv.swapTexture(id); err != nil {
		return res, err
	}
	if err := inv.applyParams(p); err != nil {
		return res, err
	}
	if err := inv.applyKeyframes(keys); err != nil {
		return res, err
	}

	res.Undistorted = inv.UndistortedPath(id)
	if err := inv.renderUndistorted(res.Undistorted); err != nil {
		return res, err
	}

	res.Distorted = inv.DistortedPattern(id)
	if err := inv.host.RenderAnimation(res.Distorted); err != nil {
		return res, fmt.Errorf("render distorted sample %d: %w", id, err)
	}

	res.Elapsed = time.Since(start)
	return res, nil
}

// swapTexture loads the new image, binds it and frees the image it replaced,
// so the renderer never holds more than one sample image.
func (inv *Invoker) swapTexture(id int) error {
	path := filepath.Join(inv.sampleDir, models.SampleName(id)+inv.sampleExt)
	img, err := inv.host.LoadImage(path)
	if err != nil {
		return fmt.Errorf("load texture %s: %w", path, err)
	}
	prev, err := inv.host.BindImage(inv.nodes.Texture, img)
	if err != nil {
		_ = inv.host.ReleaseImage(img)
		return fmt.Errorf("bind texture %s: %w", path, err)
	}
	if prev != "" && prev != img {
		if err := inv.host.ReleaseImage(prev); err != nil {
			return fmt.Errorf("release previous texture: %w", err)
		}
	}
	return nil
}

func (inv *Invoker) applyParams(p models.DistortionParams) error {
	if err := inv.host.SetInput(inv.nodes.Coarse, NoiseScaleInput, p.WaveScaleCoarse); err != nil {
		return fmt.Errorf("set coarse scale: %w", err)
	}
	if err := inv.host.SetInput(inv.nodes.Fine, NoiseScaleInput, p.WaveScaleFine); err != nil {
		return fmt.Errorf("set fine scale: %w", err)
	}
	if err := inv.host.SetInput(inv.nodes.Amplifier, AmplifierValueInput, p.Amplifier); err != nil {
		return fmt.Errorf("set amplifier: %w", err)
	}
	return nil
}

// applyKeyframes overwrites the noise coordinate keys of both channels at
// the first and last timeline positions.
func (inv *Invoker) applyKeyframes(k models.Keyframes) error {
	channels := [2]Handle{inv.nodes.Coarse, inv.nodes.Fine}
	for ch, node := range channels {
		if err := inv.host.InsertKeyframe(node, NoiseWInput, inv.firstKey, k.Start[ch]); err != nil {
			return fmt.Errorf("keyframe channel %d at %d: %w", ch, inv.firstKey, err)
		}
		if err := inv.host.InsertKeyframe(node, NoiseWInput, inv.lastKey, k.End[ch]); err != nil {
			return fmt.Errorf("keyframe channel %d at %d: %w", ch, inv.lastKey, err)
		}
	}
	return nil
}

// renderUndistorted renders the still with the displacement link removed.
// The link is restored before returning whatever the render outcome.
func (inv *Invoker) renderUndistorted(path string) error {
	if err := inv.host.Unlink(inv.nodes.Amplifier, AmplifierOutput); err != nil {
		return fmt.Errorf("unlink displacement: %w", err)
	}
	renderErr := inv.host.RenderStill(path)
	if err := inv.host.Link(inv.nodes.Amplifier, AmplifierOutput, inv.nodes.Output, DisplacementInput); err != nil {
		return errors.Join(renderErr, fmt.Errorf("restore displacement link: %w", err))
	}
	if renderErr != nil {
		return fmt.Errorf("render undistorted %s: %w", path, renderErr)
	}
	return nil
}

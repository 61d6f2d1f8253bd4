// Package params generates the per-sample distortion parameters and keeps the
// parameter table that render workers read back.
//
// Coarse and fine noise scales are deliberately anti-correlated: the fine scale
// is drawn around coarse+Offset(coarse), and the offset shrinks linearly as the
// coarse scale approaches its maximum so the two noise bands never overlap into
// an incoherent pattern.
package params

import (
	"errors"
	"fmt"
	"math/rand"

	"water-synth/models"
)

// Bounds holds every range the generator draws from.
type Bounds struct {
	WaveScaleMin float64
	WaveScaleMax float64
	AmplifierMin float64
	AmplifierMax float64

	// FineStdDev is the standard deviation of the fine scale around its mean.
	FineStdDev float64
	// OffsetSlope and OffsetBase define Offset(s) = (max-s)/(max-min)*slope + base.
	OffsetSlope float64
	OffsetBase  float64

	// Noise coordinate keyframes.
	WInitMin   float64
	WInitMax   float64
	WOffsetMin float64
	WOffsetMax float64
	FirstKey   int
	LastKey    int
}

// DefaultBounds returns the ranges the water scene was tuned for.
func DefaultBounds() Bounds {
	return Bounds{
		WaveScaleMin: 3.2,
		WaveScaleMax: 8.0,
		AmplifierMin: 0.135,
		AmplifierMax: 0.572,
		FineStdDev:   0.25,
		OffsetSlope:  0.8,
		OffsetBase:   2.7,
		WInitMin:     10.0,
		WInitMax:     90.0,
		WOffsetMin:   2.0,
		WOffsetMax:   8.0,
		FirstKey:     1,
		LastKey:      100,
	}
}

// Validate rejects empty or inverted ranges.
func (b Bounds) Validate() error {
	var errs []error
	if !(b.WaveScaleMin < b.WaveScaleMax) {
		errs = append(errs, fmt.Errorf("wave scale range [%g, %g] is empty", b.WaveScaleMin, b.WaveScaleMax))
	}
	if b.AmplifierMin > b.AmplifierMax {
		errs = append(errs, fmt.Errorf("amplifier range [%g, %g] is inverted", b.AmplifierMin, b.AmplifierMax))
	}
	if b.FineStdDev < 0 {
		errs = append(errs, fmt.Errorf("negative fine stddev %g", b.FineStdDev))
	}
	if b.WInitMin > b.WInitMax || b.WOffsetMin > b.WOffsetMax {
		errs = append(errs, errors.New("noise coordinate ranges are inverted"))
	}
	if b.FirstKey >= b.LastKey {
		errs = append(errs, fmt.Errorf("keyframe positions %d >= %d", b.FirstKey, b.LastKey))
	}
	return errors.Join(errs...)
}

// Generator draws distortion parameters. It is not safe for concurrent use.
type Generator struct {
	bounds Bounds
	rng    *rand.Rand
}

// NewGenerator returns a generator drawing from rng within bounds.
func NewGenerator(bounds Bounds, rng *rand.Rand) (*Generator, error) {
	if rng == nil {
		return nil, errors.New("rng cannot be nil")
	}
	if err := bounds.Validate(); err != nil {
		return nil, err
	}
	return &Generator{bounds: bounds, rng: rng}, nil
}

// Bounds returns the ranges the generator was built with.
func (g *Generator) Bounds() Bounds { return g.bounds }

// Offset is the mean gap between the fine and the coarse scale for a given
// coarse scale. It equals OffsetBase at WaveScaleMax.
func (g *Generator) Offset(coarse float64) float64 {
	b := g.bounds
	return (b.WaveScaleMax-coarse)/(b.WaveScaleMax-b.WaveScaleMin)*b.OffsetSlope + b.OffsetBase
}

// Fine draws a fine scale for the given coarse scale.
func (g *Generator) Fine(coarse float64) float64 {
	return g.rng.NormFloat64()*g.bounds.FineStdDev + coarse + g.Offset(coarse)
}

// Coarse draws a coarse scale uniformly within bounds.
func (g *Generator) Coarse() float64 {
	return g.uniform(g.bounds.WaveScaleMin, g.bounds.WaveScaleMax)
}

// Amplifier draws an amplifier uniformly within bounds.
func (g *Generator) Amplifier() float64 {
	return g.uniform(g.bounds.AmplifierMin, g.bounds.AmplifierMax)
}

// Sample draws one parameter record. Non-zero fixed values replace the
// corresponding random draw.
func (g *Generator) Sample(fixedWaveScale, fixedAmplifier float64) models.DistortionParams {
	coarse := fixedWaveScale
	if coarse == 0 {
		coarse = g.Coarse()
	}
	amp := fixedAmplifier
	if amp == 0 {
		amp = g.Amplifier()
	}
	return models.DistortionParams{
		WaveScaleCoarse: coarse,
		WaveScaleFine:   g.Fine(coarse),
		Amplifier:       amp,
	}
}

// Generate draws count parameter records.
func (g *Generator) Generate(count int, fixedWaveScale, fixedAmplifier float64) []models.DistortionParams {
	if count <= 0 {
		return nil
	}
	out := make([]models.DistortionParams, count)
	for i := range out {
		out[i] = g.Sample(fixedWaveScale, fixedAmplifier)
	}
	return out
}

// Keyframes draws the noise-coordinate drift of both animated channels.
func (g *Generator) Keyframes() models.Keyframes {
	var k models.Keyframes
	for ch := 0; ch < 2; ch++ {
		start := g.uniform(g.bounds.WInitMin, g.bounds.WInitMax)
		delta := g.uniform(g.bounds.WOffsetMin, g.bounds.WOffsetMax)
		if g.rng.Intn(2) == 1 {
			delta = -delta
		}
		k.Start[ch] = start
		k.End[ch] = start + delta
	}
	return k
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

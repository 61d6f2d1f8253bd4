package params

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, seed int64) *Generator {
	t.Helper()
	g, err := NewGenerator(DefaultBounds(), rand.New(rand.NewSource(seed)))
	require.NoError(t, err)
	return g
}

func TestCoarseStaysWithinBounds(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 1)
	b := g.Bounds()
	ps := g.Generate(10000, 0, 0)
	require.Len(t, ps, 10000)
	for i, p := range ps {
		if p.WaveScaleCoarse < b.WaveScaleMin || p.WaveScaleCoarse > b.WaveScaleMax {
			t.Fatalf("sample %d: coarse %.4f outside [%.2f, %.2f]", i, p.WaveScaleCoarse, b.WaveScaleMin, b.WaveScaleMax)
		}
		if p.Amplifier < b.AmplifierMin || p.Amplifier > b.AmplifierMax {
			t.Fatalf("sample %d: amplifier %.4f outside bounds", i, p.Amplifier)
		}
	}
}

func TestOffsetEndpoints(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 2)
	b := g.Bounds()
	assert.InDelta(t, 2.7, g.Offset(b.WaveScaleMax), 1e-12)
	assert.InDelta(t, 3.5, g.Offset(b.WaveScaleMin), 1e-12)
	assert.Greater(t, g.Offset(4.0), g.Offset(7.0), "offset must shrink as coarse grows")
}

func TestFineMeanConvergesAtMinimumCoarse(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 3)
	b := g.Bounds()
	ps := g.Generate(20000, b.WaveScaleMin, 0)

	var sum float64
	for _, p := range ps {
		assert.Equal(t, b.WaveScaleMin, p.WaveScaleCoarse)
		sum += p.WaveScaleFine
	}
	mean := sum / float64(len(ps))
	want := b.WaveScaleMin + g.Offset(b.WaveScaleMin)
	// stderr of the mean is 0.25/sqrt(20000) ~ 0.0018
	assert.InDelta(t, want, mean, 0.01)
}

func TestFineIsAntiCorrelatedGap(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 4)
	lowGap, highGap := 0.0, 0.0
	const n = 5000
	for range n {
		lowGap += g.Fine(3.5) - 3.5
		highGap += g.Fine(7.5) - 7.5
	}
	assert.Greater(t, lowGap/n, highGap/n)
}

func TestFixedValuesAreApplied(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 5)
	for _, p := range g.Generate(50, 5.5, 0.3) {
		assert.Equal(t, 5.5, p.WaveScaleCoarse)
		assert.Equal(t, 0.3, p.Amplifier)
	}
	assert.Nil(t, g.Generate(0, 0, 0))
}

func TestKeyframesDriftWithinOffsetRange(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 6)
	b := g.Bounds()
	sawUp, sawDown := false, false
	for range 1000 {
		k := g.Keyframes()
		for ch := 0; ch < 2; ch++ {
			require.GreaterOrEqual(t, k.Start[ch], b.WInitMin)
			require.LessOrEqual(t, k.Start[ch], b.WInitMax)
			d := k.End[ch] - k.Start[ch]
			require.GreaterOrEqual(t, math.Abs(d), b.WOffsetMin)
			require.LessOrEqual(t, math.Abs(d), b.WOffsetMax)
			if d > 0 {
				sawUp = true
			} else {
				sawDown = true
			}
		}
	}
	assert.True(t, sawUp && sawDown, "drift sign should be random")
}

func TestSameSeedSameParams(t *testing.T) {
	t.Parallel()

	a := newTestGenerator(t, 42).Generate(100, 0, 0)
	b := newTestGenerator(t, 42).Generate(100, 0, 0)
	assert.Equal(t, a, b)
}

func TestBoundsValidate(t *testing.T) {
	t.Parallel()

	b := DefaultBounds()
	require.NoError(t, b.Validate())

	b.WaveScaleMax = b.WaveScaleMin
	assert.Error(t, b.Validate())

	_, err := NewGenerator(DefaultBounds(), nil)
	assert.Error(t, err)
}

package params

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRoundTripIsBitIdentical(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 7)
	ps := g.Generate(257, 0, 0)
	table := TableFromParams(ps, false, false, 7)

	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, SaveTable(path, table))

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	require.Equal(t, len(ps), loaded.Len())

	r := Resolver{Table: loaded}
	for i, want := range ps {
		got, err := r.Params(i)
		require.NoError(t, err)
		if got != want {
			t.Fatalf("sample %d: got %+v want %+v", i, got, want)
		}
	}
	assert.Equal(t, int64(7), loaded.Seed)
}

func TestTableFixedParametersLeaveListsEmpty(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 8)
	ps := g.Generate(10, 4.0, 0.2)
	table := TableFromParams(ps, true, true, 0)
	assert.Empty(t, table.WaveScales)
	assert.Empty(t, table.Amplifiers)
	assert.Len(t, table.WaveScalesFine, 10)
	assert.Equal(t, 4.0, table.WaveScale)
	assert.Equal(t, 0.2, table.Amplifier)

	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, SaveTable(path, table))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"wave_scales": []`)
	assert.Contains(t, string(raw), `"amplifiers": []`)
	assert.Contains(t, string(raw), `"wave_scale": 4`)

	loaded, err := LoadTable(path)
	require.NoError(t, err)
	r := Resolver{Table: loaded, FixedWaveScale: 4.0, FixedAmplifier: 0.2, Gen: g}
	p, err := r.Params(3)
	require.NoError(t, err)
	assert.Equal(t, 4.0, p.WaveScaleCoarse)
	assert.Equal(t, 0.2, p.Amplifier)
	assert.Equal(t, ps[3].WaveScaleFine, p.WaveScaleFine)
}

func TestFixedScaleTableKeepsCoarseAndFineTogether(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 11)
	ps := g.Generate(20, 3.2, 0)
	table := TableFromParams(ps, true, false, 11)

	path := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, SaveTable(path, table))
	loaded, err := LoadTable(path)
	require.NoError(t, err)

	// Worker started without -wave_scale; a fresh generator must not be
	// consulted for the coarse scale.
	r := Resolver{Table: loaded, Gen: newTestGenerator(t, 99)}
	for i, want := range ps {
		got, err := r.Params(i)
		require.NoError(t, err)
		assert.Equal(t, 3.2, got.WaveScaleCoarse)
		assert.Equal(t, want.WaveScaleFine, got.WaveScaleFine)
		assert.Equal(t, want.Amplifier, got.Amplifier)
	}
}

func TestTableFineIgnoredWhenCoarseNotFromTable(t *testing.T) {
	t.Parallel()

	bounds := DefaultBounds()
	g := newTestGenerator(t, 12)
	// Fine values far outside any band around the CLI scale.
	table := Table{WaveScales: []float64{}, WaveScalesFine: []float64{1000, 1000}, Amplifiers: []float64{}}
	r := Resolver{Table: table, FixedWaveScale: 4.0, Gen: g}
	p, err := r.Params(1)
	require.NoError(t, err)
	assert.Equal(t, 4.0, p.WaveScaleCoarse)
	assert.NotEqual(t, 1000.0, p.WaveScaleFine)
	assert.InDelta(t, 4.0+g.Offset(4.0), p.WaveScaleFine, 6*bounds.FineStdDev)
}

func TestResolverRejectsNegativeSample(t *testing.T) {
	t.Parallel()

	r := Resolver{Table: Table{WaveScales: []float64{4}, Amplifiers: []float64{0.2}}, Gen: newTestGenerator(t, 13)}
	assert.NotPanics(t, func() {
		_, err := r.Params(-1)
		assert.Error(t, err)
	})
}

func TestResolverRandomizesWithoutTable(t *testing.T) {
	t.Parallel()

	g, err := NewGenerator(DefaultBounds(), rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	r := Resolver{Gen: g}
	p, err := r.Params(1000)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.WaveScaleCoarse, DefaultBounds().WaveScaleMin)
	assert.NotZero(t, p.Amplifier)
}

func TestResolverRejectsOutOfRangeSample(t *testing.T) {
	t.Parallel()

	r := Resolver{Table: Table{WaveScales: []float64{4, 5}, Amplifiers: []float64{0.2, 0.3}, WaveScalesFine: []float64{7, 8}}}
	_, err := r.Params(2)
	assert.Error(t, err)
}

func TestLoadTableRejectsMisalignedLists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"wave_scales":[1,2,3],"amplifiers":[0.2]}`), 0o644))
	_, err := LoadTable(path)
	assert.Error(t, err)
}

func TestPlotTableWritesImages(t *testing.T) {
	t.Parallel()

	g := newTestGenerator(t, 10)
	table := TableFromParams(g.Generate(200, 0, 0), false, false, 10)
	out := filepath.Join(t.TempDir(), "plots", "scales.png")
	written, err := PlotTable(table, out)
	require.NoError(t, err)
	require.Len(t, written, 2)
	for _, p := range written {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

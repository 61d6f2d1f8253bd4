package params

import (
	"encoding/json"
	"fmt"
	"os"

	"water-synth/models"
	"water-synth/utils"
)

// Table is the on-disk parameter document. Lists are index-aligned with
// sample ids; an empty list means the worker uses the table's fixed scalar,
// then its global scalar, or randomizes that parameter.
//
// wave_scales_fine entries were drawn around the table's coarse scale, so
// they are only meaningful together with wave_scales or wave_scale.
type Table struct {
	WaveScales     []float64 `json:"wave_scales"`
	WaveScalesFine []float64 `json:"wave_scales_fine,omitempty"`
	Amplifiers     []float64 `json:"amplifiers"`
	WaveScale      float64   `json:"wave_scale,omitempty"`
	Amplifier      float64   `json:"amplifier,omitempty"`
	Seed           int64     `json:"seed,omitempty"`
}

// TableFromParams flattens generated records into a table. When fixed is
// true for a parameter its list is left empty and the fixed value is stored
// once in the table's scalar field.
func TableFromParams(ps []models.DistortionParams, fixedWaveScale, fixedAmplifier bool, seed int64) Table {
	t := Table{
		WaveScales: []float64{},
		Amplifiers: []float64{},
		Seed:       seed,
	}
	if fixedWaveScale {
		if len(ps) > 0 {
			t.WaveScale = ps[0].WaveScaleCoarse
		}
	} else {
		t.WaveScales = make([]float64, len(ps))
		for i, p := range ps {
			t.WaveScales[i] = p.WaveScaleCoarse
		}
	}
	t.WaveScalesFine = make([]float64, len(ps))
	for i, p := range ps {
		t.WaveScalesFine[i] = p.WaveScaleFine
	}
	if fixedAmplifier {
		if len(ps) > 0 {
			t.Amplifier = ps[0].Amplifier
		}
	} else {
		t.Amplifiers = make([]float64, len(ps))
		for i, p := range ps {
			t.Amplifiers[i] = p.Amplifier
		}
	}
	return t
}

// Len is the number of samples the table covers.
func (t Table) Len() int {
	return max(len(t.WaveScales), len(t.WaveScalesFine), len(t.Amplifiers))
}

// Validate checks that non-empty lists are index-aligned.
func (t Table) Validate() error {
	n := t.Len()
	for name, list := range map[string][]float64{
		"wave_scales":      t.WaveScales,
		"wave_scales_fine": t.WaveScalesFine,
		"amplifiers":       t.Amplifiers,
	} {
		if len(list) != 0 && len(list) != n {
			return fmt.Errorf("%s has %d entries, expected %d", name, len(list), n)
		}
	}
	return nil
}

// SaveTable writes the table as one complete JSON document. The write is
// atomic so that workers never read a partially written file.
func SaveTable(path string, t Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal parameter table: %w", err)
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write parameter table: %w", err)
	}
	return nil
}

// LoadTable reads a table written by SaveTable.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read parameter table: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse parameter table %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, fmt.Errorf("parameter table %s: %w", path, err)
	}
	return t, nil
}

// Resolver answers "which parameters does sample i get" for a render worker.
// Table entries win, then the table's scalars, then non-zero global scalars,
// then fresh random draws. A fine scale is taken from the table only when the
// coarse scale also came from the table; otherwise it is drawn around the
// resolved coarse scale.
type Resolver struct {
	Table          Table
	FixedWaveScale float64
	FixedAmplifier float64
	Gen            *Generator
}

// Params returns the parameters for sample id.
func (r Resolver) Params(id int) (models.DistortionParams, error) {
	var p models.DistortionParams
	if id < 0 {
		return p, fmt.Errorf("sample id %d is negative", id)
	}

	coarseFromTable := true
	switch {
	case id < len(r.Table.WaveScales):
		p.WaveScaleCoarse = r.Table.WaveScales[id]
	case len(r.Table.WaveScales) > 0:
		return p, fmt.Errorf("sample %d outside parameter table of %d entries", id, len(r.Table.WaveScales))
	case r.Table.WaveScale != 0:
		p.WaveScaleCoarse = r.Table.WaveScale
	case r.FixedWaveScale != 0:
		coarseFromTable = false
		p.WaveScaleCoarse = r.FixedWaveScale
	default:
		coarseFromTable = false
		p.WaveScaleCoarse = r.Gen.Coarse()
	}

	switch {
	case !coarseFromTable || len(r.Table.WaveScalesFine) == 0:
		p.WaveScaleFine = r.Gen.Fine(p.WaveScaleCoarse)
	case id < len(r.Table.WaveScalesFine):
		p.WaveScaleFine = r.Table.WaveScalesFine[id]
	default:
		return p, fmt.Errorf("sample %d outside parameter table of %d entries", id, len(r.Table.WaveScalesFine))
	}

	switch {
	case id < len(r.Table.Amplifiers):
		p.Amplifier = r.Table.Amplifiers[id]
	case len(r.Table.Amplifiers) > 0:
		return p, fmt.Errorf("sample %d outside parameter table of %d entries", id, len(r.Table.Amplifiers))
	case r.Table.Amplifier != 0:
		p.Amplifier = r.Table.Amplifier
	case r.FixedAmplifier != 0:
		p.Amplifier = r.FixedAmplifier
	default:
		p.Amplifier = r.Gen.Amplifier()
	}
	return p, nil
}

package params

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"

	"water-synth/utils"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotTable writes two PNGs next to path: the coarse/fine scale scatter
// (<path>) and the amplifier histogram (<path minus ext>_amplifier.png).
func PlotTable(t Table, path string) ([]string, error) {
	if len(t.WaveScales) == 0 && len(t.WaveScalesFine) == 0 && len(t.Amplifiers) == 0 {
		return nil, errors.New("parameter table is empty")
	}
	if err := utils.CreateFolder(filepath.Dir(path)); err != nil {
		return nil, err
	}

	var written []string
	if len(t.WaveScales) > 0 && len(t.WaveScalesFine) == len(t.WaveScales) {
		if err := plotScales(t, path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if len(t.Amplifiers) > 0 {
		ampPath := path[:len(path)-len(filepath.Ext(path))] + "_amplifier.png"
		if err := plotAmplifiers(t.Amplifiers, ampPath); err != nil {
			return written, err
		}
		written = append(written, ampPath)
	}
	return written, nil
}

func plotScales(t Table, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Wave scale: coarse vs fine (%d samples)", len(t.WaveScales))
	p.X.Label.Text = "coarse"
	p.Y.Label.Text = "fine"

	xys := make(plotter.XYs, len(t.WaveScales))
	for i := range t.WaveScales {
		xys[i] = plotter.XY{X: t.WaveScales[i], Y: t.WaveScalesFine[i]}
	}
	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 200}
	sc.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(sc, plotter.NewGrid())
	p.Legend.Add("samples", sc)

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

func plotAmplifiers(values []float64, path string) error {
	p := plot.New()
	p.Title.Text = "Amplifier distribution"
	p.X.Label.Text = "amplifier"
	p.Y.Label.Text = "count"

	h, err := plotter.NewHist(plotter.Values(values), 20)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 40, G: 120, B: 40, A: 200}
	p.Add(h)

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

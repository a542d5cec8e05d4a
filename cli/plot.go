package cli

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// saveViewErrorPlot plots the reprojection error of every calibration view against the overall RMS
// error and saves it to path. The image format follows the file extension.
func saveViewErrorPlot(path string, viewErrors []float64, rms float64) error {
	if len(viewErrors) == 0 {
		return errors.New("no views to plot")
	}
	p := plot.New()
	p.Title.Text = "Calibration reprojection error"
	p.X.Label.Text = "View"
	p.Y.Label.Text = "RMS error (px)"

	views := make(plotter.XYs, len(viewErrors))
	overall := make(plotter.XYs, len(viewErrors))
	for i, e := range viewErrors {
		views[i] = plotter.XY{X: float64(i), Y: e}
		overall[i] = plotter.XY{X: float64(i), Y: rms}
	}

	scatter, err := plotter.NewScatter(views)
	if err != nil {
		return err
	}
	scatter.Color = color.RGBA{R: 200, A: 255}
	scatter.Radius = vg.Points(3)
	p.Add(scatter)
	p.Legend.Add("view", scatter)

	line, err := plotter.NewLine(overall)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{B: 200, A: 255}
	line.Width = vg.Points(1)
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(line)
	p.Legend.Add("overall", line)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save reprojection error plot")
	}
	return nil
}

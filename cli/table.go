package cli

import (
	"fmt"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/posecore/poseaverage"
	"go.viam.com/posecore/rimage/transform"
	"go.viam.com/posecore/spatialmath"
	"go.viam.com/posecore/utils"
)

const (
	maxHistogramBins  = 8
	histogramBarWidth = 30
)

// newTableWriter returns a table writer that keeps header and footer text as written, so units
// such as "deg" and "px" are not upper-cased.
func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault
	return tw
}

// transformTable renders the 4x4 matrix of t followed by its rotation vector.
func transformTable(t spatialmath.Transform) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"", "c0", "c1", "c2", "t"})
	m := t.Matrix()
	for r := 0; r < 4; r++ {
		tw.AppendRow(table.Row{
			fmt.Sprintf("r%d", r),
			fmt.Sprintf("%.6f", m.At(r, 0)),
			fmt.Sprintf("%.6f", m.At(r, 1)),
			fmt.Sprintf("%.6f", m.At(r, 2)),
			fmt.Sprintf("%.6f", m.At(r, 3)),
		})
	}
	rv := spatialmath.PoseFromTransform(t).RotationVector()
	tw.AppendFooter(table.Row{
		"rvec",
		fmt.Sprintf("%.6f", rv.X),
		fmt.Sprintf("%.6f", rv.Y),
		fmt.Sprintf("%.6f", rv.Z),
		fmt.Sprintf("%.2f deg", utils.RadToDeg(rv.Norm())),
	})
	return tw.Render()
}

// cameraModelTable renders the intrinsics, distortion and per view errors of a calibration.
func cameraModelTable(model *transform.CameraModel, viewErrors []float64) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Parameter", "Value"})
	tw.AppendRow(table.Row{"image size", model.ImageSize().String()})
	tw.AppendRow(table.Row{"fx", fmt.Sprintf("%.4f", model.Fx)})
	tw.AppendRow(table.Row{"fy", fmt.Sprintf("%.4f", model.Fy)})
	tw.AppendRow(table.Row{"ppx", fmt.Sprintf("%.4f", model.Ppx)})
	tw.AppendRow(table.Row{"ppy", fmt.Sprintf("%.4f", model.Ppy)})
	tw.AppendRow(table.Row{"distortion", fmt.Sprintf("%.6f", []float64(model.Distortion))})
	tw.AppendSeparator()
	for i, e := range viewErrors {
		tw.AppendRow(table.Row{fmt.Sprintf("view %d error (px)", i), fmt.Sprintf("%.4f", e)})
	}
	tw.AppendFooter(table.Row{"RMS error (px)", fmt.Sprintf("%.4f", model.ReprojectionError)})
	return tw.Render()
}

// statsTable renders the running statistic behind an average.
func statsTable(stats poseaverage.Stats, dispersion float64) string {
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Samples", "Mean angle (deg)", "Last angle (deg)", "Dispersion"})
	tw.AppendRow(table.Row{
		stats.Count,
		fmt.Sprintf("%.4f", utils.RadToDeg(stats.MeanAngle)),
		fmt.Sprintf("%.4f", utils.RadToDeg(stats.LastAngle)),
		fmt.Sprintf("%.6f", dispersion),
	})
	return tw.Render()
}

// viewErrorHistogram buckets the per view errors and renders one bar per bucket. It returns ""
// when all views have the same error.
func viewErrorHistogram(viewErrors []float64) string {
	if len(viewErrors) < 2 || floats.Max(viewErrors) == floats.Min(viewErrors) {
		return ""
	}
	bins := len(viewErrors)
	if bins > maxHistogramBins {
		bins = maxHistogramBins
	}
	hist := histogram.Hist(bins, viewErrors)
	tw := newTableWriter()
	tw.AppendHeader(table.Row{"Error (px)", "Views", ""})
	for _, bkt := range hist.Buckets {
		tw.AppendRow(table.Row{
			fmt.Sprintf("%.3f - %.3f", bkt.Min, bkt.Max),
			bkt.Count,
			strings.Repeat("#", bkt.Count*histogramBarWidth/len(viewErrors)),
		})
	}
	return tw.Render()
}

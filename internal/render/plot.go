// Package render draws raw and smoothed trajectory channels to image files.
package render

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/ayusman/kinesmooth/internal/smoothing"
)

var (
	rawColor    = color.RGBA{R: 120, G: 120, B: 120, A: 255}
	fittedColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}
)

// panelHeight is the height of one channel panel.
const panelHeight = 3 * vg.Inch

// Channels renders one panel per dimension, plotting each raw channel against
// its chord-length parameter as points and the fitted curve as a line. The
// image format follows the file extension: png, jpg or tiff.
func Channels(path string, raw smoothing.PointSequence, res *smoothing.Result, labels []string) error {
	if res == nil || len(res.Channels) == 0 {
		return errors.New("nothing to render")
	}
	if len(raw) != len(res.Parameters) {
		return fmt.Errorf("raw trajectory has %d points but %d parameters", len(raw), len(res.Parameters))
	}

	plots := make([][]*plot.Plot, len(res.Channels))
	for d, curve := range res.Channels {
		p, err := channelPlot(raw, res.Parameters, curve, d, label(labels, d))
		if err != nil {
			return err
		}
		plots[d] = []*plot.Plot{p}
	}

	width := 10 * vg.Inch
	height := panelHeight * vg.Length(len(plots))
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      1,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadX:      vg.Points(4),
		PadY:      vg.Points(8),
	}
	canvases := plot.Align(plots, tiles, dc)
	for d := range plots {
		plots[d][0].Draw(canvases[d][0])
	}

	return saveCanvas(img, path)
}

func channelPlot(raw smoothing.PointSequence, params smoothing.ParameterSequence, curve smoothing.FittedCurve, d int, name string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = name
	p.X.Label.Text = "t"
	p.Y.Label.Text = name

	rawPts := make(plotter.XYs, len(raw))
	for i, row := range raw {
		rawPts[i] = plotter.XY{X: params[i], Y: row[d]}
	}
	scatter, err := plotter.NewScatter(rawPts)
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter for %s: %w", name, err)
	}
	scatter.GlyphStyle.Color = rawColor
	scatter.GlyphStyle.Radius = vg.Points(1.5)

	fitPts := make(plotter.XYs, len(curve))
	for i, cp := range curve {
		fitPts[i] = plotter.XY{X: cp.T, Y: cp.Value}
	}
	line, err := plotter.NewLine(fitPts)
	if err != nil {
		return nil, fmt.Errorf("failed to create line for %s: %w", name, err)
	}
	line.Color = fittedColor
	line.Width = vg.Points(1)

	p.Add(scatter, line, plotter.NewGrid())
	p.Legend.Add("raw", scatter)
	p.Legend.Add("fitted", line)
	p.Legend.Top = true

	return p, nil
}

func label(labels []string, d int) string {
	if d < len(labels) && labels[d] != "" {
		return labels[d]
	}
	if d < 3 {
		return string(rune('x' + d))
	}
	return fmt.Sprintf("dim %d", d)
}

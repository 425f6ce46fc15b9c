package trace

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
)

var ErrNoSamples = errors.New("trace: no samples")

// ASCII plots the control error over the recorded ticks.
func (r *Recorder) ASCII(width, height int) (string, error) {
	errs, _ := r.Series()
	if len(errs) == 0 {
		return "", ErrNoSamples
	}
	samples := r.Samples()
	caption := fmt.Sprintf("%s error over %d ticks", samples[0].Maneuver, len(samples))
	return asciigraph.Plot(errs,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	), nil
}

// Image draws the error (yellow) and power (orange) traces.  Each trace is
// scaled to its own range; the zero line is drawn in grey.
func (r *Recorder) Image(w, h int) (image.Image, error) {
	errs, power := r.Series()
	if len(errs) == 0 {
		return nil, ErrNoSamples
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	const margin = 20
	plotH := float64(h) - 2*margin
	plotW := float64(w) - 2*margin

	errMax := maxAbs(errs)
	powMax := maxAbs(power)
	y := func(v, scale float64) float64 {
		return margin + plotH/2 - v/scale*plotH/2
	}
	x := func(i int) float64 {
		if len(errs) == 1 {
			return margin
		}
		return margin + float64(i)*plotW/float64(len(errs)-1)
	}

	dc.SetRGBA(0.5, 0.5, 0.5, 1)
	dc.DrawLine(margin, y(0, 1), float64(w)-margin, y(0, 1))
	dc.Stroke()

	drawSeries := func(series []float64, scale float64) {
		for i, v := range series {
			if i == 0 {
				dc.MoveTo(x(i), y(v, scale))
				continue
			}
			dc.LineTo(x(i), y(v, scale))
		}
		dc.Stroke()
	}
	dc.SetLineWidth(2)
	dc.SetRGBA(1, 0.9, 0, 1)
	drawSeries(errs, errMax)
	dc.SetRGBA(1, 0.4, 0, 1)
	drawSeries(power, powMax)

	dc.SetRGBA(1, 1, 1, 1)
	dc.DrawString(fmt.Sprintf("error ±%.2f", errMax), margin, margin-5)
	dc.DrawString(fmt.Sprintf("power ±%.0f%%", powMax), margin, float64(h)-5)
	return dc.Image(), nil
}

// RenderPNG writes Image as a PNG.
func (r *Recorder) RenderPNG(out io.Writer, w, h int) error {
	img, err := r.Image(w, h)
	if err != nil {
		return err
	}
	return png.Encode(out, img)
}

func maxAbs(vs []float64) float64 {
	m := 0.0
	for _, v := range vs {
		m = math.Max(m, math.Abs(v))
	}
	if m == 0 {
		return 1
	}
	return m
}

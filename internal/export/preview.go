package export

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/olala7846/car-data-visualization/internal/association"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

const previewSize = 8 * vg.Inch

// WritePreview renders a top-down scatter of every laser's primary return,
// one colour per laser.
func (e *Exporter) WritePreview(frameID string, set *association.SensorSet) (string, error) {
	data, err := renderPreview(frameID, set, e.opts.PreviewMaxPoints)
	if err != nil {
		return "", fmt.Errorf("export frame %q: render preview: %w", frameID, err)
	}
	return e.write(frameID, "preview", PreviewName(frameID), data)
}

func renderPreview(frameID string, set *association.SensorSet, maxPoints int) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frame %s - top view", frameID)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	total := set.PointCount(waymo.ReturnPrimary)
	stride := 1
	if maxPoints > 0 && total > maxPoints {
		stride = (total + maxPoints - 1) / maxPoints
	}

	for _, name := range set.LaserNames() {
		entry, _ := set.Laser(name)
		cloud, ok := entry.Cloud(waymo.ReturnPrimary)
		if !ok || cloud.Len() == 0 {
			continue
		}

		pts := make(plotter.XYs, 0, cloud.Len()/stride+1)
		for j := 0; j < cloud.Len(); j += stride {
			pts = append(pts, plotter.XY{X: cloud.Points[j].X, Y: cloud.Points[j].Y})
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = laserColor(name)
		sc.GlyphStyle.Radius = vg.Points(0.6)
		p.Add(sc)
		p.Legend.Add(name.String(), sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(previewSize, previewSize, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// laserPalette gives each named laser a stable preview colour, so a laser
// keeps its colour when others are missing from a frame.
var laserPalette = map[waymo.LaserName]color.RGBA{
	waymo.LaserTop:       {R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	waymo.LaserFront:     {R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	waymo.LaserSideLeft:  {R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	waymo.LaserSideRight: {R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	waymo.LaserRear:      {R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

func laserColor(name waymo.LaserName) color.RGBA {
	if c, ok := laserPalette[name]; ok {
		return c
	}
	return color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
}

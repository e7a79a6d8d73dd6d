package export

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/olala7846/car-data-visualization/internal/association"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// WriteReport renders an HTML bar chart of point counts per laser and return.
func (e *Exporter) WriteReport(frameID string, set *association.SensorSet) (string, error) {
	data, err := renderReport(frameID, set)
	if err != nil {
		return "", fmt.Errorf("export frame %q: render report: %w", frameID, err)
	}
	return e.write(frameID, "report", ReportName(frameID), data)
}

func renderReport(frameID string, set *association.SensorSet) ([]byte, error) {
	names := set.LaserNames()
	x := make([]string, 0, len(names))
	series := make(map[waymo.ReturnIndex][]opts.BarData, 2)
	for _, name := range names {
		x = append(x, name.String())
		entry, _ := set.Laser(name)
		for _, ret := range waymo.Returns() {
			n := 0
			if pc, ok := entry.Cloud(ret); ok {
				n = pc.Len()
			}
			series[ret] = append(series[ret], opts.BarData{Value: n})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Frame " + frameID, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Points per laser",
			Subtitle: fmt.Sprintf("frame=%s cameras=%d", frameID, len(set.CameraNames())),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x)
	for _, ret := range waymo.Returns() {
		bar.AddSeries(ret.String(), series[ret],
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	}

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

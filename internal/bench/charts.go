package bench

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/wattbench/wattbench/internal/telemetry"
)

// WriteCharts renders the receipt timeseries as a standalone HTML page next
// to the JSON artifacts. Returns the written path, or "" when the receipt
// carries no timeseries to plot.
func WriteCharts(dir string, receipt *telemetry.Receipt) (string, error) {
	if receipt == nil || receipt.Timeseries == nil || len(receipt.Timeseries.TS) == 0 {
		return "", nil
	}
	series := receipt.Timeseries

	page := components.NewPage()
	page.PageTitle = "wattbench telemetry"

	page.AddCharts(powerChart(series))
	if chart := optionalLineChart("GPU Utilization (%)", series.TS, series.GPUUtilPct); chart != nil {
		page.AddCharts(chart)
	}
	if chart := optionalLineChart("Temperature (°C)", series.TS, series.TempC); chart != nil {
		page.AddCharts(chart)
	}
	if chart := optionalLineChart("Memory Used (MB)", series.TS, series.MemUsedMB); chart != nil {
		page.AddCharts(chart)
	}

	path := filepath.Join(dir, "receipt_charts.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		return "", fmt.Errorf("render charts: %w", err)
	}
	return path, nil
}

func powerChart(series *telemetry.Series) *charts.Line {
	data := make([]opts.LineData, len(series.PowerW))
	for i, v := range series.PowerW {
		data[i] = opts.LineData{Value: v}
	}
	return newLineChart("Power Draw (W)", series.TS, data)
}

// optionalLineChart builds a chart for a nil-tolerant metric column. Returns
// nil when no sample reported the metric.
func optionalLineChart(title string, ts []float64, values []*float64) *charts.Line {
	any := false
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		if v == nil {
			data[i] = opts.LineData{Value: nil}
			continue
		}
		data[i] = opts.LineData{Value: *v}
		any = true
	}
	if !any {
		return nil
	}
	return newLineChart(title, ts, data)
}

func newLineChart(title string, ts []float64, data []opts.LineData) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
	)

	labels := make([]string, len(ts))
	for i, t := range ts {
		labels[i] = fmt.Sprintf("%.2f", t)
	}

	line.SetXAxis(labels).AddSeries("", data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}),
	)
	return line
}

package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/myrern/Backtester-v2/pkg/series"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	colorBull = "#34d399"
	colorBear = "#f87171"

	chartWidthPx   = 1600
	klineHeightPx  = 600
	volumeHeightPx = 280
	returnsHeight  = 280

	axisTimeLayout = "01-02 15:04"
)

// Render writes a self-contained HTML page with three stacked charts for the
// series: candlesticks, an up/down colored volume histogram and the buy-and-hold
// cumulative-returns line.
func Render(w io.Writer, symbol string, s *series.Series) error {
	if s == nil || s.Empty() {
		return fmt.Errorf("chart: no data to render for %s", symbol)
	}

	bars := s.Bars()
	xAxis := buildXAxis(bars)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(
		buildKlineChart(symbol, xAxis, bars),
		buildVolumeChart(xAxis, bars),
		buildReturnsChart(xAxis, s.Returns()),
	)
	return page.Render(w)
}

// RenderFile renders the page into path, creating parent directories.
func RenderFile(path, symbol string, s *series.Series) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return Render(f, symbol, s)
}

func buildXAxis(bars []series.Bar) []string {
	x := make([]string, len(bars))
	for i, b := range bars {
		x[i] = b.Time.UTC().Format(axisTimeLayout)
	}
	return x
}

func buildKlineChart(symbol string, xAxis []string, bars []series.Bar) *charts.Kline {
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", klineHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s - Price Chart", strings.ToUpper(symbol)),
			Left:  "left",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)

	data := make([]opts.KlineData, len(bars))
	for i, b := range bars {
		data[i] = opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}}
	}
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", data)
	return kline
}

func buildVolumeChart(xAxis []string, bars []series.Bar) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", volumeHeightPx),
		}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)

	vols := make([]opts.BarData, len(bars))
	for i, b := range bars {
		color := colorBear
		if b.Close >= b.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{
			Value:     b.Volume,
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func buildReturnsChart(xAxis []string, returns []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  fmt.Sprintf("%dpx", chartWidthPx),
			Height: fmt.Sprintf("%dpx", returnsHeight),
		}),
		charts.WithTitleOpts(opts.Title{Title: "Buy & Hold Returns (%)", Left: "left"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	data := make([]opts.LineData, len(returns))
	for i, r := range returns {
		data[i] = opts.LineData{Value: r * 100}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Returns", data)
	return line
}

// Package charts renders interactive HTML charts for validation reports.
package charts

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartConfig holds presentation options shared by the chart renderers.
type ChartConfig struct {
	Title      string
	Subtitle   string
	Width      string // e.g. "900px"
	Height     string // e.g. "500px"
	Theme      string
	ShowLegend bool
	Colors     []string
}

// DefaultChartConfig returns the default chart configuration.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:      "900px",
		Height:     "500px",
		Theme:      "light",
		ShowLegend: true,
		Colors:     []string{"#5470C6", "#91CC75", "#FAC858", "#EE6666", "#73C0DE", "#3BA272", "#FC8452", "#9A60B4", "#EA7CCC"},
	}
}

// DataPoint is a single labeled value.
type DataPoint struct {
	Label string
	Value float64
}

// SeriesData is a named series of data points.
type SeriesData struct {
	Name   string
	Points []DataPoint
}

// RenderGroupedBarChart writes a multi-series bar chart HTML file. Every
// series should carry one point per label of the first series.
func RenderGroupedBarChart(series []SeriesData, config ChartConfig, outputPath string) error {
	if len(series) == 0 {
		return fmt.Errorf("no data series provided")
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  config.Width,
			Height: config.Height,
			Theme:  config.Theme,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: config.Subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(config.ShowLegend),
		}),
	)

	// First series supplies the X-axis labels.
	xLabels := make([]string, len(series[0].Points))
	for i, point := range series[0].Points {
		xLabels[i] = point.Label
	}
	bar.SetXAxis(xLabels)

	for i, s := range series {
		yData := make([]opts.BarData, len(s.Points))
		for j, point := range s.Points {
			yData[j] = opts.BarData{Value: point.Value}
		}

		color := config.Colors[i%len(config.Colors)]
		bar.AddSeries(s.Name, yData,
			charts.WithItemStyleOpts(opts.ItemStyle{
				Color: color,
			}),
			charts.WithLabelOpts(opts.Label{
				Show: opts.Bool(false),
			}),
		)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := bar.Render(f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}

	return nil
}

// OpenInBrowser opens the given file path in the default web browser.
func OpenInBrowser(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", absPath)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", absPath)
	case "linux":
		cmd = exec.Command("xdg-open", absPath)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

package validation

import (
	"fmt"
	"sort"

	"github.com/ramonehamilton/EDH-Recommender/internal/charts"
)

// WriteReport renders the precision and recall metrics as a grouped bar chart
// HTML file, one pair of bars per cutoff.
func WriteReport(result *Result, outputPath string) error {
	if result == nil {
		return fmt.Errorf("no validation result to report")
	}

	ks := append([]int(nil), result.Metadata.PrecisionK...)
	if len(ks) == 0 {
		for k := range result.Precision {
			ks = append(ks, k)
		}
		sort.Ints(ks)
	}
	if len(ks) == 0 {
		return fmt.Errorf("validation result has no cutoffs to report")
	}

	precision := charts.SeriesData{Name: "Precision", Points: make([]charts.DataPoint, 0, len(ks))}
	recall := charts.SeriesData{Name: "Recall", Points: make([]charts.DataPoint, 0, len(ks))}
	for _, k := range ks {
		label := fmt.Sprintf("K=%d", k)
		precision.Points = append(precision.Points, charts.DataPoint{Label: label, Value: result.Precision[k]})
		recall.Points = append(recall.Points, charts.DataPoint{Label: label, Value: result.Recall[k]})
	}

	cfg := charts.DefaultChartConfig()
	cfg.Title = "Hold-out validation"
	cfg.Subtitle = fmt.Sprintf("%d decks evaluated, seed size %d, holdout fraction %.2f",
		result.Metadata.EvaluatedDecks, result.Metadata.SeedSize, result.Metadata.HoldoutFraction)

	return charts.RenderGroupedBarChart([]charts.SeriesData{precision, recall}, cfg, outputPath)
}

package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReportCreatesChart(t *testing.T) {
	res := &Result{
		Precision: map[int]float64{5: 0.4, 10: 0.3},
		Recall:    map[int]float64{5: 0.2, 10: 0.25},
		Metadata: Metadata{
			EvaluatedDecks:  7,
			HoldoutFraction: 0.1,
			SeedSize:        60,
			PrecisionK:      []int{5, 10},
		},
	}
	path := filepath.Join(t.TempDir(), "validation.html")

	if err := WriteReport(res, path); err != nil {
		t.Fatalf("WriteReport returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	html := string(data)
	for _, want := range []string{"K=5", "K=10", "Precision", "Recall", "Hold-out validation"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteReportFallsBackToMetricKeys(t *testing.T) {
	res := &Result{
		Precision: map[int]float64{3: 0.1},
		Recall:    map[int]float64{3: 0.05},
	}
	path := filepath.Join(t.TempDir(), "validation.html")

	if err := WriteReport(res, path); err != nil {
		t.Fatalf("WriteReport returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !strings.Contains(string(data), "K=3") {
		t.Errorf("report missing fallback cutoff label")
	}
}

func TestWriteReportNoData(t *testing.T) {
	if err := WriteReport(nil, "unused.html"); err == nil {
		t.Fatal("expected error for nil result")
	}
	empty := &Result{Precision: map[int]float64{}, Recall: map[int]float64{}}
	if err := WriteReport(empty, "unused.html"); err == nil {
		t.Fatal("expected error for result without cutoffs")
	}
}

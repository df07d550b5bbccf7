package dataset

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestStats(t *testing.T) {
	d, err := ReadCSV(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	s, err := d.Stats(4)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if s.Samples != 5 || s.PlacementRate != 40 {
		t.Fatalf("unexpected totals %+v", s)
	}

	cgpa := s.Features[ColCGPA]
	if math.Abs(cgpa.Mean-6.24) > 1e-9 || cgpa.Min != 5.3 || cgpa.Max != 7.4 || cgpa.Median != 5.9 {
		t.Fatalf("unexpected cgpa stats %+v", cgpa)
	}
	if cgpa.Std <= 0 {
		t.Fatalf("expected positive std, got %v", cgpa.Std)
	}

	h := cgpa.Histogram
	if len(h.Edges) != 5 || len(h.Counts) != 4 {
		t.Fatalf("histogram has %d edges and %d counts", len(h.Edges), len(h.Counts))
	}
	if floats.Sum(h.Counts) != 5 {
		t.Fatalf("histogram lost values: %v", h.Counts)
	}
	if h.Edges[4] != 7.4 {
		t.Fatalf("last edge should be the maximum, got %v", h.Edges[4])
	}

	if s.Correlation <= -1 || s.Correlation >= 1 {
		t.Fatalf("correlation out of range: %v", s.Correlation)
	}
}

func TestStatsConstant(t *testing.T) {
	d := &Dataset{Records: []Record{{7, 100, 1}}}
	s, err := d.Stats(3)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	f := s.Features[ColIQ]
	if f.Std != 0 || s.Correlation != 0 || floats.Sum(f.Histogram.Counts) != 1 {
		t.Fatalf("unexpected stats for a single record: %+v, correlation %v", f, s.Correlation)
	}

	if _, err := (&Dataset{}).Stats(3); err == nil {
		t.Fatalf("expected error for empty dataset")
	}
}

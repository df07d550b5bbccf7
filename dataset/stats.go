package dataset

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram counts values between consecutive Edges; there is one more edge than count.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
}

// FeatureStats summarizes a single feature. Std is the sample standard deviation.
type FeatureStats struct {
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Median    float64   `json:"median"`
	Histogram Histogram `json:"histogram"`
}

// Summary is the exploratory summary of a Dataset.
type Summary struct {
	Samples int `json:"total_samples"`

	// PlacementRate is the percentage of Records with placement 1.
	PlacementRate  float64                 `json:"placement_rate"`
	TrainTestSplit string                  `json:"train_test_split,omitempty"`
	Features       map[string]FeatureStats `json:"features"`
	Correlation    float64                 `json:"correlation_cgpa_iq"`
}

// Stats summarizes the Dataset, with histograms of the given number of bins. Statistics that are
// undefined for the data (e.g. the correlation of a constant feature) are reported as 0.
func (d *Dataset) Stats(bins int) (*Summary, error) {
	if len(d.Records) == 0 {
		return nil, errors.New("Can't summarize an empty dataset")
	} else if bins < 1 {
		return nil, errors.Errorf("Histogram must have at least 1 bin, got %d", bins)
	}

	cgpa := d.column(func(r Record) float64 { return r.CGPA })
	iq := d.column(func(r Record) float64 { return r.IQ })
	placed := d.column(func(r Record) float64 { return r.Placement })

	return &Summary{
		Samples:       len(d.Records),
		PlacementRate: stat.Mean(placed, nil) * 100,
		Features: map[string]FeatureStats{
			ColCGPA: featureStats(cgpa, bins),
			ColIQ:   featureStats(iq, bins),
		},
		Correlation: finite(stat.Correlation(cgpa, iq, nil)),
	}, nil
}

func featureStats(xs []float64, bins int) FeatureStats {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	var fs FeatureStats
	fs.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		fs.Std = finite(stat.StdDev(sorted, nil))
	}
	fs.Min = sorted[0]
	fs.Max = sorted[len(sorted)-1]
	fs.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	fs.Histogram = histogram(sorted, bins)

	return fs
}

// histogram requires sorted xs.
func histogram(sorted []float64, bins int) Histogram {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		hi = lo + 1
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)

	// stat.Histogram excludes the upper edge
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	return Histogram{Edges: edges, Counts: counts}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

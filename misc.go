package placenet

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Threshold converts probabilities into labels: 1 where the probability is at least 0.5, 0
// elsewhere.
func Threshold(probs []float64) []int {
	labels := make([]int, len(probs))
	for i, p := range probs {
		if p >= 0.5 {
			labels[i] = 1
		}
	}

	return labels
}

// Every returns a function that is true on every frequency-th epoch. A frequency below 1 is
// treated as 1.
//
// this function is self-explanatory from viewing the source
func Every(frequency int) func(int) bool {
	if frequency < 1 {
		frequency = 1
	}

	return func(epoch int) bool {
		return epoch%frequency == 0
	}
}

// Examples converts a table with one row per example into the features × examples orientation
// used throughout this package. All rows must have the same length, which must not be zero.
func Examples(table [][]float64) *mat.Dense {
	m := mat.NewDense(len(table[0]), len(table), nil)
	for j, row := range table {
		m.SetCol(j, row)
	}

	return m
}

// Labels converts a slice of binary labels into a single-row matrix.
func Labels(ys []float64) *mat.Dense {
	return mat.NewDense(1, len(ys), append([]float64(nil), ys...))
}

// Grid describes a rectangle of points over the two input features, Steps points along each
// axis. Points are ordered row by row, from (XMin, YMin) to (XMax, YMax). Steps must be at least
// 2.
type Grid struct {
	XMin, XMax float64
	YMin, YMax float64
	Steps      int
}

// Points returns every point of the Grid as a 2 × Steps² matrix.
func (g Grid) Points() *mat.Dense {
	xs := floats.Span(make([]float64, g.Steps), g.XMin, g.XMax)
	ys := floats.Span(make([]float64, g.Steps), g.YMin, g.YMax)

	pts := mat.NewDense(2, g.Steps*g.Steps, nil)
	for yi, y := range ys {
		for xi, x := range xs {
			pts.Set(0, yi*g.Steps+xi, x)
			pts.Set(1, yi*g.Steps+xi, y)
		}
	}

	return pts
}

// GridAround returns the Grid covering the first two features of x, padded by pad on every side.
func GridAround(x mat.Matrix, pad float64, steps int) Grid {
	f0 := mat.Row(nil, 0, x)
	f1 := mat.Row(nil, 1, x)

	return Grid{
		XMin:  floats.Min(f0) - pad,
		XMax:  floats.Max(f0) + pad,
		YMin:  floats.Min(f1) - pad,
		YMax:  floats.Max(f1) + pad,
		Steps: steps,
	}
}

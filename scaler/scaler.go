// Package scaler standardizes features to zero mean and unit variance.
package scaler

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Standard holds the per-feature mean and standard deviation of the data it was fit on. It is
// never modified after it has been created, so it is safe to share.
type Standard struct {
	mean  []float64
	scale []float64
}

// Fit computes the mean and population standard deviation of each row of x, which has one row
// per feature and one column per example. Features with no variance are given a scale of 1.
func Fit(x mat.Matrix) (*Standard, error) {
	rows, cols := x.Dims()
	if cols == 0 {
		return nil, errors.Errorf("Can't fit scaler to zero examples")
	}

	s := &Standard{
		mean:  make([]float64, rows),
		scale: make([]float64, rows),
	}

	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		s.mean[i], s.scale[i] = stat.PopMeanStdDev(mat.Row(row, i, x), nil)
		if s.scale[i] == 0 {
			s.scale[i] = 1
		}
	}

	return s, nil
}

// New restores a Standard from previously fitted values.
func New(mean, scale []float64) (*Standard, error) {
	if len(mean) != len(scale) {
		return nil, errors.Errorf("Can't create scaler, have %d means and %d scales", len(mean), len(scale))
	}

	for i, sc := range scale {
		if !(sc > 0) {
			return nil, errors.Errorf("Can't create scaler, scale %d is %v (must be > 0)", i, sc)
		}
	}

	return &Standard{
		mean:  append([]float64(nil), mean...),
		scale: append([]float64(nil), scale...),
	}, nil
}

// Features returns the number of features the Standard was fit on.
func (s *Standard) Features() int {
	return len(s.mean)
}

// Mean returns a copy of the per-feature means.
func (s *Standard) Mean() []float64 {
	return append([]float64(nil), s.mean...)
}

// Scale returns a copy of the per-feature standard deviations.
func (s *Standard) Scale() []float64 {
	return append([]float64(nil), s.scale...)
}

// Transform scales a single example.
func (s *Standard) Transform(v []float64) ([]float64, error) {
	if len(v) != len(s.mean) {
		return nil, errors.Errorf("Can't scale %d features, scaler has %d", len(v), len(s.mean))
	}

	out := make([]float64, len(v))
	for i := range v {
		out[i] = (v[i] - s.mean[i]) / s.scale[i]
	}

	return out, nil
}

// Inverse is the inverse of Transform.
func (s *Standard) Inverse(v []float64) ([]float64, error) {
	if len(v) != len(s.mean) {
		return nil, errors.Errorf("Can't unscale %d features, scaler has %d", len(v), len(s.mean))
	}

	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i]*s.scale[i] + s.mean[i]
	}

	return out, nil
}

// TransformMatrix scales every column of x. x must have one row per feature; TransformMatrix will
// panic otherwise.
func (s *Standard) TransformMatrix(x mat.Matrix) *mat.Dense {
	rows, _ := x.Dims()
	if rows != len(s.mean) {
		panic(errors.Errorf("scaler: matrix has %d rows, expected %d", rows, len(s.mean)))
	}

	out := mat.DenseCopyOf(x)
	out.Apply(func(i, _ int, v float64) float64 {
		return (v - s.mean[i]) / s.scale[i]
	}, out)

	return out
}

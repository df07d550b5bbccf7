package costfuncs

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultEpsilon is the distance from 0 and 1 that predictions are clipped to before taking
// logarithms.
const DefaultEpsilon float64 = 1e-15

type crossEntropy struct {
	eps float64
}

// CrossEntropy returns the binary cross-entropy cost function, with predictions clipped to
// [DefaultEpsilon, 1-DefaultEpsilon].
func CrossEntropy() *crossEntropy {
	return &crossEntropy{DefaultEpsilon}
}

// Epsilon sets the clipping distance. It panics if eps is not within (0, 0.5).
func (c *crossEntropy) Epsilon(eps float64) *crossEntropy {
	if !(eps > 0 && eps < 0.5) {
		panic("cross-entropy epsilon must be within (0, 0.5)")
	}

	c.eps = eps
	return c
}

func (c *crossEntropy) TypeString() string {
	return "cross-entropy"
}

// Cost returns the mean over every value of -[y*log(a) + (1-y)*log(1-a)], where a is the
// prediction clipped to [eps, 1-eps]. outs and targets must have the same dimensions; with
// targets given as one row per output and one column per example, this is the mean over
// examples.
//
// Cost always returns a finite number for finite targets.
func (c *crossEntropy) Cost(outs, targets mat.Matrix) float64 {
	r, cols := outs.Dims()

	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			a := c.clip(outs.At(i, j))
			y := targets.At(i, j)
			sum -= y*math.Log(a) + (1-y)*math.Log(1-a)
		}
	}

	return sum / float64(r*cols)
}

// Clipped returns the number of predictions in outs that Cost would clip.
func (c *crossEntropy) Clipped(outs mat.Matrix) int {
	r, cols := outs.Dims()

	var n int
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			if a := outs.At(i, j); a < c.eps || a > 1-c.eps {
				n++
			}
		}
	}

	return n
}

func (c *crossEntropy) clip(a float64) float64 {
	return math.Min(math.Max(a, c.eps), 1-c.eps)
}

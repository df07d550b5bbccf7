package placenet

import (
	"github.com/sharnoff/placenet/costfuncs"
	"gonum.org/v1/gonum/mat"
)

// Loss returns the binary cross-entropy between the predictions a and the labels y, averaged over
// examples. Predictions are clipped to [1e-15, 1-1e-15] first, so Loss is always finite.
//
// Loss is pure and can be called at any time, independently of training.
func Loss(a, y mat.Matrix) float64 {
	return costfuncs.CrossEntropy().Cost(a, y)
}

// clippedPredictions returns the number of values of a that Loss clips.
func clippedPredictions(a mat.Matrix) int {
	return costfuncs.CrossEntropy().Clipped(a)
}

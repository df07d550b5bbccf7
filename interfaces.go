package placenet

import "gonum.org/v1/gonum/mat"

// Sink receives the Snapshots produced during training. Update is called from the goroutine
// running Train, so it should not block for long; anything slow should be handed off.
type Sink interface {
	// Update is given each Snapshot as it is produced, in order of epoch. The final call for a
	// failed run carries the error in Snapshot.Err.
	Update(Snapshot)
}

// SinkFunc allows ordinary functions to be used as a Sink.
type SinkFunc func(Snapshot)

// Update is the implementation of Sink for SinkFunc.
func (f SinkFunc) Update(s Snapshot) {
	f(s)
}

// PredictFunc gives the label (0 or 1) of each column of its argument.
type PredictFunc func(points mat.Matrix) ([]int, error)

// Renderer draws the decision boundary of a Network. Render is given a function that predicts
// labels for a batch of points, and the Grid those points should be taken from. The returned
// string is opaque to this package; it is attached to Snapshots as Snapshot.Boundary.
type Renderer interface {
	Render(predict PredictFunc, g Grid) (string, error)
}

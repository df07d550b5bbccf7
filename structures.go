package placenet

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// LayerSpec gives the number of units in each layer of a Network, starting with the input layer.
// The placement network is LayerSpec{2, 2, 1}.
type LayerSpec []int

// Role distinguishes the two kinds of parameter a layer has.
type Role int8

const (
	Weight Role = iota
	Bias
)

// ParamKey identifies a single parameter of a Network. Layer is 1-indexed, counting from the
// first non-input layer, so ParamKey{Weight, 1} is the matrix between the inputs and the first
// hidden layer.
type ParamKey struct {
	Role  Role
	Layer int
}

// Layer holds the parameters of a single non-input layer. W has shape (units, units of the
// previous layer) and B has shape (units, 1).
type Layer struct {
	W *mat.Dense
	B *mat.Dense
}

// Params are the parameters of every non-input layer of a Network. Params[i] belongs to layer
// i+1, matching the indexing of ParamKey.
type Params []Layer

// Gradients share their structure with Params: every gradient has the same shape as the
// parameter it belongs to.
type Gradients = Params

// Cache is the record of a single forward pass that the paired backward pass consumes. Z[i] and
// A[i] are the pre- and post-activation values of layer i; A[0] is a copy of the input and Z[0]
// is always nil.
type Cache struct {
	Z []*mat.Dense
	A []*mat.Dense

	// Saturated is the number of pre-activations that had to be clamped before the sigmoid.
	Saturated int
}

// RunState is the state of the most recent training run of a Network.
type RunState int32

const (
	Idle RunState = iota
	Initializing
	Running
	Completed
	Failed
)

// Network is a fully-connected feed-forward network of sigmoid units, trained on binary labels
// with cross-entropy loss.
//
// A Network is safe for concurrent use: Train is the only writer of its parameters, and readers
// (Forward, Predict, Evaluate, Params) always observe a complete set of parameters.
type Network struct {
	spec LayerSpec

	// guards params. Update steps take the write lock, everything else reads.
	mu     sync.RWMutex
	params Params

	// set while Train is between setup and return
	running atomic.Bool
	state   atomic.Int32
}

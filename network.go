package placenet

import (
	"gonum.org/v1/gonum/mat"
)

// Spec returns a copy of the LayerSpec the Network was created with.
func (net *Network) Spec() LayerSpec {
	return append(LayerSpec(nil), net.spec...)
}

// InputSize returns the number of features the Network expects for each example.
func (net *Network) InputSize() int {
	return net.spec[0]
}

// Initialized returns whether or not the Network has parameters, either from Init, SetParams or a
// training run.
func (net *Network) Initialized() bool {
	net.mu.RLock()
	defer net.mu.RUnlock()

	return net.params != nil
}

// State returns the state of the current (or most recent) training run. A Network that has never
// been trained is Idle.
func (net *Network) State() RunState {
	return RunState(net.state.Load())
}

// Params returns a copy of the current parameters of the Network. It can be modified freely.
// Params returns ErrNotTrained if the Network has no parameters yet.
func (net *Network) Params() (Params, error) {
	net.mu.RLock()
	defer net.mu.RUnlock()

	if net.params == nil {
		return nil, ErrNotTrained
	}

	return net.params.Copy(), nil
}

// SetParams replaces the parameters of the Network with a copy of p. If the shape of any
// parameter disagrees with the LayerSpec, SetParams returns type ShapeMismatchError and leaves the
// Network unchanged.
//
// SetParams is rejected with ErrAlreadyRunning while the Network is training.
func (net *Network) SetParams(p Params) error {
	if err := p.Check(net.spec); err != nil {
		return err
	}

	net.mu.Lock()
	defer net.mu.Unlock()

	if net.running.Load() {
		return ErrAlreadyRunning
	}

	net.params = p.Copy()
	return nil
}

// Check returns type ShapeMismatchError for the first parameter (in the order of
// LayerSpec.Keys) that is missing or has the wrong shape for spec.
func (p Params) Check(spec LayerSpec) error {
	for _, k := range spec.Keys() {
		er, ec := spec.Shape(k)

		m := p.Get(k)
		if m == nil {
			return ShapeMismatchError{k, er, ec, -1, -1}
		}

		if r, c := m.Dims(); r != er || c != ec {
			return ShapeMismatchError{k, er, ec, r, c}
		}
	}

	if len(p) != spec.NumLayers() {
		k := ParamKey{Weight, spec.NumLayers() + 1}
		r, c := 0, 0
		if m := p.Get(k); m != nil {
			r, c = m.Dims()
		}
		return ShapeMismatchError{k, -1, -1, r, c}
	}

	return nil
}

// Get returns the parameter given by k, or nil if there is no such parameter.
func (p Params) Get(k ParamKey) *mat.Dense {
	if k.Layer < 1 || k.Layer > len(p) {
		return nil
	}

	if k.Role == Bias {
		return p[k.Layer-1].B
	}

	return p[k.Layer-1].W
}

// Copy returns a deep copy of the Params.
func (p Params) Copy() Params {
	if p == nil {
		return nil
	}

	c := make(Params, len(p))
	for i, l := range p {
		if l.W != nil {
			c[i].W = mat.DenseCopyOf(l.W)
		}
		if l.B != nil {
			c[i].B = mat.DenseCopyOf(l.B)
		}
	}

	return c
}

// Predict returns the output probability and the thresholded label (1 if the probability is at
// least 0.5) for each example, i.e. each column, of x.
func (net *Network) Predict(x mat.Matrix) (probs []float64, labels []int, err error) {
	a, _, err := net.Forward(x)
	if err != nil {
		return nil, nil, err
	}

	probs = mat.Row(nil, 0, a)
	return probs, Threshold(probs), nil
}

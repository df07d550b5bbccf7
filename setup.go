package placenet

import (
	"fmt"

	"github.com/sharnoff/placenet/initializers"
	"gonum.org/v1/gonum/mat"
)

// InitScale is the standard deviation of the normal distribution that initial weights are drawn
// from. Small weights keep the first pre-activations near zero, where the sigmoid is not
// saturated.
const InitScale float64 = 0.01

// Validate returns a ConfigurationError if the LayerSpec has fewer than two layers or any layer
// without units.
func (s LayerSpec) Validate() error {
	if len(s) < 2 {
		return ConfigurationError{"layers", fmt.Sprintf("need at least 2 layers, got %d", len(s))}
	}

	for i, units := range s {
		if units < 1 {
			return ConfigurationError{"layers", fmt.Sprintf("layer %d has %d units", i, units)}
		}
	}

	return nil
}

// NumLayers returns the number of layers that have parameters, i.e. every layer but the input.
func (s LayerSpec) NumLayers() int {
	return len(s) - 1
}

// Shape returns the dimensions of the parameter given by k. Shape will panic if k.Layer is out of
// range.
func (s LayerSpec) Shape(k ParamKey) (rows, cols int) {
	if k.Role == Bias {
		return s[k.Layer], 1
	}

	return s[k.Layer], s[k.Layer-1]
}

// Keys returns the keys of every parameter, layer by layer, with each weight before its bias.
func (s LayerSpec) Keys() []ParamKey {
	keys := make([]ParamKey, 0, 2*s.NumLayers())
	for l := 1; l < len(s); l++ {
		keys = append(keys, ParamKey{Weight, l}, ParamKey{Bias, l})
	}

	return keys
}

// New creates a Network with the given layers. The Network has no parameters until Init or
// SetParams is called; Train will call Init itself if needed.
//
// New returns a ConfigurationError if the LayerSpec is invalid.
func New(spec LayerSpec) (*Network, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	net := &Network{spec: append(LayerSpec(nil), spec...)}
	net.state.Store(int32(Idle))
	return net, nil
}

// InitParams creates a fresh set of parameters for the LayerSpec. Every weight is drawn from gen
// in order (layer by layer, row-major), and every bias is zero. Given the same generator state,
// InitParams always produces identical parameters.
func InitParams(spec LayerSpec, gen initializers.RNG) (Params, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	p := make(Params, spec.NumLayers())
	for l := 1; l < len(spec); l++ {
		rows, cols := spec.Shape(ParamKey{Weight, l})

		ws := make([]float64, rows*cols)
		for i := range ws {
			ws[i] = gen.Gen()
		}

		p[l-1] = Layer{
			W: mat.NewDense(rows, cols, ws),
			B: mat.NewDense(rows, 1, nil),
		}
	}

	return p, nil
}

// Init replaces the parameters of the Network with freshly initialized ones, drawing weights from
// a normal distribution with standard deviation InitScale, seeded by seed.
//
// Init is rejected with ErrAlreadyRunning while the Network is training.
func (net *Network) Init(seed int64) error {
	p, err := InitParams(net.spec, initializers.Normal(seed).SD(InitScale))
	if err != nil {
		return err
	}

	net.mu.Lock()
	defer net.mu.Unlock()

	if net.running.Load() {
		return ErrAlreadyRunning
	}

	net.params = p
	return nil
}

// init is Init for the run that holds the running flag.
func (net *Network) init(seed int64) error {
	p, err := InitParams(net.spec, initializers.Normal(seed).SD(InitScale))
	if err != nil {
		return err
	}

	net.mu.Lock()
	net.params = p
	net.mu.Unlock()
	return nil
}

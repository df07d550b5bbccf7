package placenet

import (
	"math"

	"github.com/pkg/errors"
	"github.com/sharnoff/placenet/optimizers"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// sigmoidClamp bounds pre-activations so that exp never overflows. At ±500 the sigmoid is already
// indistinguishable from 0 or 1 in float64.
const sigmoidClamp float64 = 500

// Sigmoid returns 1 / (1 + e^-z), with z clamped to [-500, 500].
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-clamp(z)))
}

func clamp(z float64) float64 {
	return math.Max(-sigmoidClamp, math.Min(sigmoidClamp, z))
}

// Forward runs x through every layer of p, returning the output activations and the Cache that
// Backward needs. x has one row per input unit and one column per example. Forward does not
// validate shapes; mismatched inputs will cause a panic from gonum. (*Network).Forward validates
// before calling it.
func Forward(p Params, x mat.Matrix) (*mat.Dense, *Cache) {
	c := &Cache{
		Z: make([]*mat.Dense, len(p)+1),
		A: make([]*mat.Dense, len(p)+1),
	}
	c.A[0] = mat.DenseCopyOf(x)

	for i, l := range p {
		z := new(mat.Dense)
		z.Mul(l.W, c.A[i])
		z.Apply(func(r, _ int, v float64) float64 {
			return v + l.B.At(r, 0)
		}, z)

		a := new(mat.Dense)
		a.Apply(func(_, _ int, v float64) float64 {
			if v > sigmoidClamp || v < -sigmoidClamp {
				c.Saturated++
			}
			return Sigmoid(v)
		}, z)

		c.Z[i+1] = z
		c.A[i+1] = a
	}

	return c.A[len(p)], c
}

// Backward returns the gradients of the cross-entropy loss with respect to every parameter, given
// the targets y (one row, one column per example) and the Cache from the forward pass that
// produced the predictions.
//
// For the output layer, the derivative of the loss through the sigmoid simplifies to A - Y. Every
// hidden layer uses the sigmoid derivative A * (1 - A) on its cached activations.
func Backward(p Params, y mat.Matrix, c *Cache) Gradients {
	L := len(p)
	_, m := y.Dims()
	scale := 1 / float64(m)

	g := make(Gradients, L)

	dz := new(mat.Dense)
	dz.Sub(c.A[L], y)

	for i := L; i >= 1; i-- {
		dw := new(mat.Dense)
		dw.Mul(dz, c.A[i-1].T())
		dw.Scale(scale, dw)

		rows, _ := dz.Dims()
		db := mat.NewDense(rows, 1, nil)
		row := make([]float64, m)
		for r := 0; r < rows; r++ {
			db.Set(r, 0, scale*floats.Sum(mat.Row(row, r, dz)))
		}

		g[i-1] = Layer{W: dw, B: db}

		if i == 1 {
			break
		}

		// propagate to the previous layer
		a := c.A[i-1]
		prev := new(mat.Dense)
		prev.Mul(p[i-1].W.T(), dz)
		prev.Apply(func(r, col int, v float64) float64 {
			av := a.At(r, col)
			return v * av * (1 - av)
		}, prev)

		dz = prev
	}

	return g
}

// Update moves every parameter in p against its gradient in g, in place, using plain gradient
// descent. The learning rate must be positive, and g must have the same structure as p.
func Update(p Params, g Gradients, learningRate float64) error {
	if !(learningRate > 0) {
		return ConfigurationError{"learning rate", "must be > 0"}
	} else if len(p) != len(g) {
		return errors.Errorf("Can't update parameters, have %d layers of gradients for %d layers", len(g), len(p))
	}

	opt := optimizers.GradientDescent()
	for i := range p {
		if err := opt.Run(p[i].W, g[i].W, learningRate); err != nil {
			return errors.Wrapf(err, "Failed to update %v", ParamKey{Weight, i + 1})
		}
		if err := opt.Run(p[i].B, g[i].B, learningRate); err != nil {
			return errors.Wrapf(err, "Failed to update %v", ParamKey{Bias, i + 1})
		}
	}

	return nil
}

// Forward validates x against the Network and runs it through the current parameters. It returns
// ErrNotTrained if the Network has no parameters, and type DataShapeError if x does not have one
// row per input unit.
func (net *Network) Forward(x mat.Matrix) (*mat.Dense, *Cache, error) {
	if r, _ := x.Dims(); r != net.spec[0] {
		return nil, nil, DataShapeError{"feature rows", net.spec[0], r}
	}

	net.mu.RLock()
	defer net.mu.RUnlock()

	if net.params == nil {
		return nil, nil, ErrNotTrained
	}

	a, c := Forward(net.params, x)
	return a, c, nil
}

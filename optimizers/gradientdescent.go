package optimizers

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

type gradientdescent int8

// GradientDescent returns the plain gradient descent update: every parameter moves against its
// gradient by the learning rate, with no momentum or decay.
func GradientDescent() gradientdescent {
	return gradientdescent(0)
}

func (g gradientdescent) TypeString() string {
	return "gradient-descent"
}

// Run applies param -= learningRate * grad in place. param and grad must have the same
// dimensions.
func (g gradientdescent) Run(param, grad *mat.Dense, learningRate float64) error {
	pr, pc := param.Dims()
	gr, gc := grad.Dims()
	if pr != gr || pc != gc {
		return errors.Errorf("Can't run gradient descent, gradient is %dx%d but parameter is %dx%d", gr, gc, pr, pc)
	}

	var step mat.Dense
	step.Scale(learningRate, grad)
	param.Sub(param, &step)

	return nil
}

package optimizers

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGradientDescentStep(t *testing.T) {
	p := mat.NewDense(2, 1, []float64{1, -1})
	g := mat.NewDense(2, 1, []float64{0.5, -2})

	if err := GradientDescent().Run(p, g, 0.1); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := mat.NewDense(2, 1, []float64{0.95, -0.8})
	if !mat.EqualApprox(p, want, 1e-12) {
		t.Fatalf("unexpected parameters %v", mat.Formatted(p))
	}
}

func TestGradientDescentRejectsMismatch(t *testing.T) {
	p := mat.NewDense(2, 2, nil)
	g := mat.NewDense(2, 1, nil)

	if err := GradientDescent().Run(p, g, 0.1); err == nil {
		t.Fatalf("expected error for mismatched shapes")
	}
}

package costfuncs

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestCrossEntropyKnownValue(t *testing.T) {
	outs := mat.NewDense(1, 2, []float64{0.8, 0.4})
	targets := mat.NewDense(1, 2, []float64{1, 0})

	want := -(math.Log(0.8) + math.Log(0.6)) / 2
	if got := CrossEntropy().Cost(outs, targets); math.Abs(got-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCrossEntropyClipsCertainMistakes(t *testing.T) {
	outs := mat.NewDense(1, 2, []float64{0, 1})
	targets := mat.NewDense(1, 2, []float64{1, 0})

	c := CrossEntropy()
	got := c.Cost(outs, targets)
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Fatalf("expected finite cost, got %v", got)
	}
	if got < 30 {
		t.Fatalf("expected a large cost for confident mistakes, got %v", got)
	}
	if n := c.Clipped(outs); n != 2 {
		t.Fatalf("expected 2 clipped predictions, got %d", n)
	}
}

func TestCrossEntropyPerfectPrediction(t *testing.T) {
	outs := mat.NewDense(1, 2, []float64{1, 0})
	targets := mat.NewDense(1, 2, []float64{1, 0})

	if got := CrossEntropy().Cost(outs, targets); got > 1e-12 || got < 0 {
		t.Fatalf("expected ~0 cost, got %v", got)
	}
}

func TestEpsilonPanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for epsilon 0")
		}
	}()
	CrossEntropy().Epsilon(0)
}

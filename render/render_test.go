package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/sharnoff/placenet"
	"gonum.org/v1/gonum/mat"
)

func decode(t *testing.T, s string) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		t.Fatalf("base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	return img
}

// rightHalf labels every point with a positive first feature as 1.
func rightHalf(points mat.Matrix) ([]int, error) {
	_, c := points.Dims()
	out := make([]int, c)
	for j := range out {
		if points.At(0, j) > 0 {
			out[j] = 1
		}
	}
	return out, nil
}

func TestBoundary(t *testing.T) {
	g := placenet.Grid{XMin: -1, XMax: 1, YMin: -1, YMax: 1, Steps: 10}
	s, err := Boundary(20).Render(rightHalf, g)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	img := decode(t, s)
	if b := img.Bounds(); b.Dx() != 20 || b.Dy() != 20 {
		t.Fatalf("unexpected image size %v", b)
	}

	left, right := img.At(0, 10), img.At(19, 10)
	if left == right {
		t.Fatalf("expected the two halves to be colored differently")
	}
	if img.At(0, 0) != left || img.At(19, 19) != right {
		t.Fatalf("expected colors to depend only on the first feature")
	}
}

func TestBoundaryOverlay(t *testing.T) {
	g := placenet.Grid{XMin: -1, XMax: 1, YMin: -1, YMax: 1, Steps: 4}
	x := mat.NewDense(2, 2, []float64{-0.5, 0.5, 0.5, -0.5})
	y := mat.NewDense(1, 2, []float64{0, 1})

	plain, _ := Boundary(16).Render(rightHalf, g)
	over, err := Boundary(16).Overlay(x, y).Render(rightHalf, g)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if plain == over {
		t.Fatalf("overlay did not change the image")
	}

	if _, err := Boundary(16).Overlay(x, mat.NewDense(1, 3, nil)).Render(rightHalf, g); err == nil {
		t.Fatalf("expected error for mismatched labels")
	}
}

func TestBoundaryErrors(t *testing.T) {
	g := placenet.Grid{XMin: -1, XMax: 1, YMin: -1, YMax: 1, Steps: 4}
	failing := func(mat.Matrix) ([]int, error) { return nil, errors.New("no model") }
	if _, err := Boundary(8).Render(failing, g); err == nil {
		t.Fatalf("expected prediction error to be returned")
	}
	if _, err := Boundary(0).Render(rightHalf, g); err == nil {
		t.Fatalf("expected error for zero size")
	}
	g.Steps = 1
	if _, err := Boundary(8).Render(rightHalf, g); err == nil {
		t.Fatalf("expected error for a single grid step")
	}
}

func TestScatterAndBars(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{1, 2, 3, 10, 20, 30})
	y := mat.NewDense(1, 3, []float64{0, 1, 1})
	s, err := Scatter(x, y, 32)
	if err != nil {
		t.Fatalf("Scatter: %v", err)
	}
	if b := decode(t, s).Bounds(); b.Dx() != 32 {
		t.Fatalf("unexpected scatter size %v", b)
	}

	s, err = Bars([]float64{1, 0, 3}, 30, 10)
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	img := decode(t, s)
	if img.At(25, 0) != img.At(25, 9) {
		t.Fatalf("tallest bar should reach the top")
	}
	if img.At(15, 9) == img.At(25, 9) {
		t.Fatalf("empty bar should not be drawn")
	}

	if _, err := Bars(nil, 10, 10); err == nil {
		t.Fatalf("expected error for no counts")
	}
}

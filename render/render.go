// Package render draws images of the placement data and of the decision boundary of a
// placenet.Network. Every image is returned as a base64-encoded PNG.
package render

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"

	"github.com/pkg/errors"
	"github.com/sharnoff/placenet"
	"github.com/sharnoff/placenet/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Region and point colors, indexed by label.
var (
	regionColors = [2]color.RGBA{{R: 250, G: 205, B: 205, A: 255}, {R: 205, G: 240, B: 210, A: 255}}
	pointColors  = [2]color.RGBA{{R: 200, G: 30, B: 30, A: 255}, {R: 20, G: 140, B: 50, A: 255}}
	background   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	barColor     = color.RGBA{R: 90, G: 150, B: 210, A: 255}
)

const rowsPerThread int = 16

type boundary struct {
	size int

	x mat.Matrix
	y mat.Matrix
}

// Boundary returns a placenet.Renderer that draws size × size images, coloring each pixel by the
// label predicted for the nearest point of the Grid.
func Boundary(size int) *boundary {
	return &boundary{size: size}
}

// Overlay sets the labelled points to draw on top of the boundary. x must have the same two
// features as the Grid.
func (b *boundary) Overlay(x, y mat.Matrix) *boundary {
	b.x, b.y = x, y
	return b
}

// Render is the implementation of placenet.Renderer for Boundary.
func (b *boundary) Render(predict placenet.PredictFunc, g placenet.Grid) (string, error) {
	if b.size < 1 {
		return "", errors.Errorf("Can't render boundary with size %d", b.size)
	} else if g.Steps < 2 {
		return "", errors.Errorf("Can't render boundary with %d grid steps", g.Steps)
	}

	labels, err := predict(g.Points())
	if err != nil {
		return "", errors.Wrapf(err, "Failed to predict grid labels")
	} else if len(labels) != g.Steps*g.Steps {
		return "", errors.Errorf("Predicted %d labels for %d grid points", len(labels), g.Steps*g.Steps)
	}

	img := image.NewRGBA(image.Rect(0, 0, b.size, b.size))
	utils.MultiThread(0, b.size, func(py int) {
		// image rows go down, the grid goes up
		gy := (b.size - 1 - py) * g.Steps / b.size
		for px := 0; px < b.size; px++ {
			gx := px * g.Steps / b.size
			img.SetRGBA(px, py, regionColors[labels[gy*g.Steps+gx]&1])
		}
	}, rowsPerThread)

	if b.x != nil {
		if err := plotPoints(img, b.x, b.y, [2]float64{g.XMin, g.XMax}, [2]float64{g.YMin, g.YMax}); err != nil {
			return "", err
		}
	}

	return encode(img)
}

// Scatter draws the points of x (two features, one column per example) colored by their labels
// y, scaled to fit a size × size image.
func Scatter(x, y mat.Matrix, size int) (string, error) {
	if size < 1 {
		return "", errors.Errorf("Can't render scatter plot with size %d", size)
	}
	if r, c := x.Dims(); r != 2 || c == 0 {
		return "", errors.Errorf("Can't render scatter plot of %dx%d features", r, c)
	}

	f0, f1 := mat.Row(nil, 0, x), mat.Row(nil, 1, x)
	xr := pad(floats.Min(f0), floats.Max(f0))
	yr := pad(floats.Min(f1), floats.Max(f1))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	fill(img, background)
	if err := plotPoints(img, x, y, xr, yr); err != nil {
		return "", err
	}

	return encode(img)
}

// Bars draws a bar chart of counts, one bar per count, scaled so the largest reaches the top of a
// width × height image.
func Bars(counts []float64, width, height int) (string, error) {
	if width < 1 || height < 1 {
		return "", errors.Errorf("Can't render %dx%d bar chart", width, height)
	} else if len(counts) == 0 {
		return "", errors.New("Can't render bar chart of no counts")
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill(img, background)

	top := floats.Max(counts)
	if top <= 0 {
		return encode(img)
	}

	for px := 0; px < width; px++ {
		i := px * len(counts) / width
		h := int(counts[i] / top * float64(height))
		for py := height - h; py < height; py++ {
			img.SetRGBA(px, py, barColor)
		}
	}

	return encode(img)
}

// plotPoints draws 3x3 dots for every column of x within the given ranges.
func plotPoints(img *image.RGBA, x, y mat.Matrix, xr, yr [2]float64) error {
	r, c := x.Dims()
	if r != 2 {
		return errors.Errorf("Can't plot points with %d features", r)
	} else if y == nil {
		return errors.New("Can't plot points without labels")
	} else if _, yc := y.Dims(); yc != c {
		return errors.Errorf("Can't plot %d points with %d labels", c, yc)
	}

	size := img.Bounds().Dx()
	for j := 0; j < c; j++ {
		px := int((x.At(0, j) - xr[0]) / (xr[1] - xr[0]) * float64(size-1))
		py := size - 1 - int((x.At(1, j)-yr[0])/(yr[1]-yr[0])*float64(size-1))

		col := pointColors[0]
		if y.At(0, j) >= 0.5 {
			col = pointColors[1]
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if image.Pt(px+dx, py+dy).In(img.Bounds()) {
					img.SetRGBA(px+dx, py+dy, col)
				}
			}
		}
	}

	return nil
}

func pad(lo, hi float64) [2]float64 {
	if hi == lo {
		return [2]float64{lo - 1, hi + 1}
	}

	p := (hi - lo) * 0.05
	return [2]float64{lo - p, hi + p}
}

func fill(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func encode(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", errors.Wrapf(err, "Failed to encode PNG")
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

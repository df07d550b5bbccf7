package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sharnoff/placenet/scaler"
	"gonum.org/v1/gonum/mat"
)

// DefaultTestFraction is the share of Records held out for testing.
const DefaultTestFraction float64 = 0.2

// Split is a Dataset divided into training and test sets, scaled by a Scaler fit only on the
// training set. Every matrix has one column per example.
type Split struct {
	XTrain, YTrain *mat.Dense
	XTest, YTest   *mat.Dense

	Scaler *scaler.Standard

	// TestFraction is the fraction that was requested, for display.
	TestFraction float64
}

// Prepare shuffles the Records with seed, holds out testFraction of them (at least one, and
// leaving at least one for training), and scales both sets.
func (d *Dataset) Prepare(testFraction float64, seed int64) (*Split, error) {
	n := len(d.Records)
	if n < 2 {
		return nil, errors.Errorf("Can't split %d records, need at least 2", n)
	} else if !(testFraction > 0 && testFraction < 1) {
		return nil, errors.Errorf("Test fraction must be within (0, 1), got %v", testFraction)
	}

	nTest := int(math.Round(float64(n) * testFraction))
	if nTest < 1 {
		nTest = 1
	} else if nTest > n-1 {
		nTest = n - 1
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	train := make([]Record, 0, n-nTest)
	test := make([]Record, 0, nTest)
	for i, j := range perm {
		if i < nTest {
			test = append(test, d.Records[j])
		} else {
			train = append(train, d.Records[j])
		}
	}

	xTrain, yTrain := matrices(train)
	xTest, yTest := matrices(test)

	sc, err := scaler.Fit(xTrain)
	if err != nil {
		return nil, err
	}

	return &Split{
		XTrain:       sc.TransformMatrix(xTrain),
		YTrain:       yTrain,
		XTest:        sc.TransformMatrix(xTest),
		YTest:        yTest,
		Scaler:       sc,
		TestFraction: testFraction,
	}, nil
}

// SplitLabel formats a test fraction as e.g. "80/20".
func SplitLabel(testFraction float64) string {
	test := math.Round(testFraction * 100)
	return fmt.Sprintf("%.0f/%.0f", 100-test, test)
}

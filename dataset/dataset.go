// Package dataset loads the placement data and prepares it for training.
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sharnoff/placenet"
	"gonum.org/v1/gonum/mat"
)

// Column names expected in the header of a placement CSV.
const (
	ColCGPA      = "cgpa"
	ColIQ        = "iq"
	ColPlacement = "placement"
)

// Record is a single student.
type Record struct {
	CGPA      float64 `json:"cgpa"`
	IQ        float64 `json:"iq"`
	Placement float64 `json:"placement"`
}

// Dataset is an ordered set of Records.
type Dataset struct {
	Records []Record
}

// LoadCSV opens path and reads it with ReadCSV.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open dataset")
	}
	defer f.Close()

	d, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read dataset %s", path)
	}

	return d, nil
}

// ReadCSV reads a CSV with a header naming at least the columns "cgpa", "iq" and "placement", in
// any order. Other columns (like an unnamed index) are ignored. Placement must be 0 or 1.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("Dataset is empty")
	} else if err != nil {
		return nil, errors.Wrapf(err, "Failed to read header")
	}

	cols := map[string]int{ColCGPA: -1, ColIQ: -1, ColPlacement: -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := cols[name]; ok {
			cols[name] = i
		}
	}
	for name, i := range cols {
		if i < 0 {
			return nil, errors.Errorf("Header is missing column %q", name)
		}
	}

	d := new(Dataset)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, errors.Wrapf(err, "Failed to read line %d", line)
		}

		var rec Record
		fields := []struct {
			name string
			dst  *float64
		}{{ColCGPA, &rec.CGPA}, {ColIQ, &rec.IQ}, {ColPlacement, &rec.Placement}}

		for _, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[cols[f.name]]), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "Line %d: bad %s", line, f.name)
			} else if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.Errorf("Line %d: %s is not finite", line, f.name)
			}
			*f.dst = v
		}

		if rec.Placement != 0 && rec.Placement != 1 {
			return nil, errors.Errorf("Line %d: placement must be 0 or 1, got %v", line, rec.Placement)
		}

		d.Records = append(d.Records, rec)
	}

	if len(d.Records) == 0 {
		return nil, errors.New("Dataset has no rows")
	}

	return d, nil
}

// Synthetic generates n Records resembling the placement data: CGPA around 6.5 and IQ around 120,
// with placement more likely for higher values of both. The same seed always gives the same
// Dataset.
func Synthetic(n int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))

	d := &Dataset{Records: make([]Record, n)}
	for i := range d.Records {
		cgpa := math.Max(3, math.Min(10, 6.5+1.2*rng.NormFloat64()))
		iq := math.Max(40, math.Min(200, 120+25*rng.NormFloat64()))

		cgpa = math.Round(cgpa*10) / 10
		iq = math.Round(iq)

		score := 1.5*(cgpa-6.5)/1.2 + 0.4*(iq-120)/25 + 0.5*rng.NormFloat64()
		var placed float64
		if score > 0 {
			placed = 1
		}

		d.Records[i] = Record{cgpa, iq, placed}
	}

	return d
}

// Len returns the number of Records.
func (d *Dataset) Len() int {
	return len(d.Records)
}

// Matrices returns the features (one row per feature, one column per Record) and labels of the
// Dataset, unscaled.
func (d *Dataset) Matrices() (x, y *mat.Dense) {
	return matrices(d.Records)
}

func matrices(rs []Record) (x, y *mat.Dense) {
	table := make([][]float64, len(rs))
	ys := make([]float64, len(rs))
	for i, r := range rs {
		table[i] = []float64{r.CGPA, r.IQ}
		ys[i] = r.Placement
	}

	return placenet.Examples(table), placenet.Labels(ys)
}

// column returns one field of every Record.
func (d *Dataset) column(f func(Record) float64) []float64 {
	out := make([]float64, len(d.Records))
	for i, r := range d.Records {
		out[i] = f(r)
	}

	return out
}

// Open loads the CSV at path, or generates syntheticSize Records with seed if path is empty.
func Open(path string, syntheticSize int, seed int64) (*Dataset, error) {
	if path == "" {
		return Synthetic(syntheticSize, seed), nil
	}

	return LoadCSV(path)
}

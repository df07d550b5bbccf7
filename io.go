package placenet

import (
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// String returns the name the parameter is stored under: "W" or "b" followed by the layer, e.g.
// "W1" or "b2".
func (k ParamKey) String() string {
	if k.Role == Bias {
		return "b" + strconv.Itoa(k.Layer)
	}

	return "W" + strconv.Itoa(k.Layer)
}

// ParseParamKey is the inverse of ParamKey.String.
func ParseParamKey(s string) (ParamKey, error) {
	if len(s) < 2 {
		return ParamKey{}, errors.Errorf("Invalid parameter name %q", s)
	}

	var k ParamKey
	switch s[0] {
	case 'W':
		k.Role = Weight
	case 'b':
		k.Role = Bias
	default:
		return ParamKey{}, errors.Errorf("Invalid parameter name %q, must start with 'W' or 'b'", s)
	}

	l, err := strconv.Atoi(s[1:])
	if err != nil || l < 1 {
		return ParamKey{}, errors.Errorf("Invalid parameter name %q, bad layer index", s)
	}

	k.Layer = l
	if k.String() != s {
		return ParamKey{}, errors.Errorf("Invalid parameter name %q, did you mean %q?", s, k.String())
	}

	return k, nil
}

// Export converts the Params into plain nested slices, keyed by parameter name, for serializers.
// Each matrix is given as a slice of rows.
func (p Params) Export() map[string][][]float64 {
	out := make(map[string][][]float64, 2*len(p))
	for i, l := range p {
		out[ParamKey{Weight, i + 1}.String()] = rows(l.W)
		out[ParamKey{Bias, i + 1}.String()] = rows(l.B)
	}

	return out
}

func rows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}

	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}

	return out
}

// ImportParams is the inverse of Params.Export. Every parameter of spec must be present with the
// right shape, and no others may be; otherwise ImportParams returns type ShapeMismatchError (or a
// plain error for unrecognizable names).
func ImportParams(spec LayerSpec, values map[string][][]float64) (Params, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	for name := range values {
		k, err := ParseParamKey(name)
		if err != nil {
			return nil, err
		}

		if k.Layer > spec.NumLayers() {
			return nil, ShapeMismatchError{k, -1, -1, len(values[name]), 0}
		}
	}

	p := make(Params, spec.NumLayers())
	for _, k := range spec.Keys() {
		er, ec := spec.Shape(k)

		vs, ok := values[k.String()]
		if !ok {
			return nil, ShapeMismatchError{k, er, ec, -1, -1}
		} else if len(vs) != er {
			return nil, ShapeMismatchError{k, er, ec, len(vs), ec}
		}

		data := make([]float64, 0, er*ec)
		for _, row := range vs {
			if len(row) != ec {
				return nil, ShapeMismatchError{k, er, ec, er, len(row)}
			}
			data = append(data, row...)
		}

		m := mat.NewDense(er, ec, data)
		if k.Role == Bias {
			p[k.Layer-1].B = m
		} else {
			p[k.Layer-1].W = m
		}
	}

	return p, nil
}

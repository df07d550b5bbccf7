// Package store persists trained models as JSON files and archives training sessions in SQLite.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sharnoff/placenet"
	"github.com/sharnoff/placenet/scaler"
)

// Model is the file format for a trained Network and the Scaler its inputs must go through.
type Model struct {
	Layers       []int                  `json:"layers"`
	Parameters   map[string][][]float64 `json:"parameters"`
	Scaler       *ScalerState           `json:"scaler,omitempty"`
	LearningRate float64                `json:"learning_rate,omitempty"`
	SavedAt      time.Time              `json:"saved_at"`
}

// ScalerState is the fitted state of a scaler.Standard.
type ScalerState struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// NewModel collects everything needed to restore a Network. sc may be nil.
func NewModel(spec placenet.LayerSpec, p placenet.Params, sc *scaler.Standard, learningRate float64) *Model {
	m := &Model{
		Layers:       append([]int(nil), spec...),
		Parameters:   p.Export(),
		LearningRate: learningRate,
		SavedAt:      time.Now().UTC(),
	}
	if sc != nil {
		m.Scaler = &ScalerState{Mean: sc.Mean(), Scale: sc.Scale()}
	}

	return m
}

// Params returns the parameters of the Model, checked against its layers.
func (m *Model) Params() (placenet.Params, error) {
	return placenet.ImportParams(placenet.LayerSpec(m.Layers), m.Parameters)
}

// Standard returns the scaler of the Model, or nil if it was saved without one.
func (m *Model) Standard() (*scaler.Standard, error) {
	if m.Scaler == nil {
		return nil, nil
	}

	return scaler.New(m.Scaler.Mean, m.Scaler.Scale)
}

// SaveModel writes m to path as JSON. The file is written in full before it replaces anything
// already at path.
func SaveModel(path string, m *Model) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "Failed to encode model")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "Failed to create model directory")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "Failed to write model")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "Failed to replace model file %s", path)
	}

	return nil
}

// LoadModel reads a Model written by SaveModel. The parameters are validated against the layers,
// so a successful LoadModel can always be used to restore a Network.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read model")
	}

	m := new(Model)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode model %s", path)
	}

	if _, err := m.Params(); err != nil {
		return nil, errors.Wrapf(err, "Invalid model %s", path)
	}
	if _, err := m.Standard(); err != nil {
		return nil, errors.Wrapf(err, "Invalid model %s", path)
	}

	return m, nil
}

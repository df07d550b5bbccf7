package placenet

import (
	"fmt"
)

// Error is a wrapper for specific types of errors for which there is no additional information
// necessary. These errors are defined as global variables, and can be compared directly against
// the result of errors.Cause().
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

// These are the global errors that may be returned.
var (
	// ErrNotTrained is returned when parameters are requested before the Network has been
	// initialized or given parameters. It is the NotTrainedError of the error taxonomy.
	ErrNotTrained = Error{"Network has not been initialized or trained"}

	// ErrAlreadyRunning is returned by Train when another run on the same Network has not
	// finished yet.
	ErrAlreadyRunning = Error{"Network is already training"}
)

// ConfigurationError documents invalid hyperparameters or an invalid LayerSpec. It is always
// returned before any state has been changed.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (err ConfigurationError) Error() string {
	return fmt.Sprintf("Invalid configuration for %s: %s", err.Field, err.Reason)
}

// DataShapeError documents features and labels that do not fit the Network, or each other. What
// names the dimension that was checked, e.g. "feature rows" or "label columns".
type DataShapeError struct {
	What     string
	Expected int
	Got      int
}

func (err DataShapeError) Error() string {
	return fmt.Sprintf("Data shape mismatch in %s: expected %d, got %d", err.What, err.Expected, err.Got)
}

// ShapeMismatchError documents an externally supplied parameter whose shape disagrees with the
// LayerSpec of the Network. Rows and Cols of -1 mean the parameter was missing entirely;
// ExpectedRows and ExpectedCols of -1 mean the parameter should not exist.
type ShapeMismatchError struct {
	Key ParamKey

	ExpectedRows, ExpectedCols int
	Rows, Cols                 int
}

func (err ShapeMismatchError) Error() string {
	if err.ExpectedRows < 0 {
		return fmt.Sprintf("Parameter %v is not part of the network", err.Key)
	} else if err.Rows < 0 {
		return fmt.Sprintf("Parameter %v is missing (expected %dx%d)", err.Key, err.ExpectedRows, err.ExpectedCols)
	}

	return fmt.Sprintf("Parameter %v has shape %dx%d, expected %dx%d", err.Key, err.Rows, err.Cols, err.ExpectedRows, err.ExpectedCols)
}

// NumericInstabilityWarning reports values that would have overflowed (or produced infinite logs)
// had they not been clamped. It is never returned as a failure; Train hands it to TrainArgs.Warn
// once per epoch in which anything was clamped.
type NumericInstabilityWarning struct {
	Epoch int

	// Saturated is the number of pre-activations clamped to [-500, 500] before the sigmoid.
	Saturated int

	// Clipped is the number of predicted probabilities clipped before taking logarithms.
	Clipped int
}

func (w NumericInstabilityWarning) Error() string {
	return fmt.Sprintf("Numeric instability at epoch %d: %d saturated pre-activations, %d clipped probabilities", w.Epoch, w.Saturated, w.Clipped)
}

package qvz

import (
	"fmt"

	"github.com/Krlucete/qvz/alphabet"
	"github.com/Krlucete/qvz/distortion"
)

// ErrInvalidConfig reports a rejected configuration value.
//
// The original underlying error (if any) can be accessed via
// errors.Unwrap.
type ErrInvalidConfig struct {
	Field string
	Value any
	cause error
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s = %v", e.Field, e.Value)
}

func (e *ErrInvalidConfig) Unwrap() error { return e.cause }

func validateOptions(o *options) error {
	if o.alphabetSize < 1 || o.alphabetSize > alphabet.MaxSize {
		return &ErrInvalidConfig{Field: "alphabet_size", Value: o.alphabetSize}
	}
	if o.comp < 0 {
		return &ErrInvalidConfig{Field: "comp", Value: o.comp}
	}
	if o.clusters < 1 || o.clusters > 255 {
		return &ErrInvalidConfig{Field: "clusters", Value: o.clusters}
	}
	switch o.distortion {
	case distortion.MSE, distortion.Manhattan, distortion.Lorentz:
	default:
		return &ErrInvalidConfig{Field: "distortion_measure", Value: o.distortion}
	}
	return nil
}
